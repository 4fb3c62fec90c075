package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// loginRequest is the credentials payload for Login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userEnvelope struct {
	User *User `json:"user"`
}

// Login authenticates and returns the signed-in user together with the session
// token extracted from the backend's session cookie. The token is installed on
// the client for subsequent requests.
func (c *Client) Login(ctx context.Context, email, password string) (*User, string, error) {
	data, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", newError(resp.StatusCode, respBody)
	}

	var env userEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, "", fmt.Errorf("unmarshal response: %w", err)
	}
	if env.User == nil {
		return nil, "", fmt.Errorf("login response missing user")
	}

	token := ""
	for _, cookie := range resp.Cookies() {
		if cookie.Name == SessionCookie {
			token = cookie.Value
		}
	}
	if token == "" {
		return nil, "", fmt.Errorf("login response missing session cookie")
	}

	c.token = token
	return env.User, token, nil
}

// Logout invalidates the current session token on the server.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// Me returns the signed-in user. A null user in the response means the
// session token is no longer valid and yields ErrSessionExpired.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var env userEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &env); err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, ErrSessionExpired
	}
	return env.User, nil
}

// MyQuota returns the caller's daily page quota.
func (c *Client) MyQuota(ctx context.Context) (*Quota, error) {
	var quota Quota
	if err := c.do(ctx, http.MethodGet, "/api/users/me/quota", nil, &quota); err != nil {
		return nil, err
	}
	return &quota, nil
}

// MyProviders returns the provider configs the caller's group grants, in
// preference order, with credentials redacted by the server.
func (c *Client) MyProviders(ctx context.Context) ([]ProviderConfig, error) {
	var providers []ProviderConfig
	if err := c.do(ctx, http.MethodGet, "/api/users/me/providers", nil, &providers); err != nil {
		return nil, err
	}
	return providers, nil
}
