// Package api provides a typed HTTP client for the doctran backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

// SessionCookie is the backend's session cookie name. The same token value is
// accepted as a "token" query parameter on websocket endpoints.
const SessionCookie = "pdftranslate_session"

// Client is a typed REST client for the doctran backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new client for the given server base URL.
// If baseURL is empty, uses the DOCTRAN_SERVER_URL env var or defaults to
// localhost:8000. The request timeout can be configured via
// DOCTRAN_CLIENT_TIMEOUT (default 30s; uploads get their own, longer budget
// from the caller's context).
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("DOCTRAN_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := 30 * time.Second
	if t := os.Getenv("DOCTRAN_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the server base URL the client was configured with.
func (c *Client) BaseURL() string { return c.baseURL }

// Token returns the current session token ("" when not logged in).
func (c *Client) Token() string { return c.token }

// SetToken replaces the session token used on subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// do issues a JSON request and decodes the JSON response into out (out may be
// nil for responses whose body the caller does not need).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

// send attaches the session cookie, executes the request, and decodes the
// response. Non-2xx responses become *Error values.
func (c *Client) send(req *http.Request, out any) error {
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: c.token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// multipartField is one form field of a multipart upload.
type multipartField struct {
	name  string
	value string
}

// doMultipart posts a multipart form with a single file part plus form fields.
func (c *Client) doMultipart(ctx context.Context, path, fileName string, file io.Reader, fields []multipartField, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("write field %s: %w", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.send(req, out)
}

// WebSocketURL converts an API path into the matching ws:// or wss:// URL,
// appending the session token as a query parameter the way the backend's
// socket endpoints expect.
func (c *Client) WebSocketURL(path string) string {
	wsURL := c.baseURL
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL += path
	if c.token != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		wsURL += sep + "token=" + c.token
	}
	return wsURL
}
