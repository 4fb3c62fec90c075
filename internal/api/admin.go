package api

import (
	"context"
	"net/http"
)

// Admin endpoints. All of these require an admin session; the backend enforces
// the role check.

// ListProviders returns every provider config, newest first.
func (c *Client) ListProviders(ctx context.Context) ([]ProviderConfig, error) {
	var providers []ProviderConfig
	if err := c.do(ctx, http.MethodGet, "/api/admin/providers", nil, &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

// CreateProviderInput is the payload for CreateProvider.
type CreateProviderInput struct {
	Name         string         `json:"name"`
	ProviderType string         `json:"providerType"`
	Description  string         `json:"description,omitempty"`
	IsActive     bool           `json:"isActive"`
	Settings     map[string]any `json:"settings"`
}

// CreateProvider registers a new provider config.
func (c *Client) CreateProvider(ctx context.Context, input CreateProviderInput) (*ProviderConfig, error) {
	var provider ProviderConfig
	if err := c.do(ctx, http.MethodPost, "/api/admin/providers", input, &provider); err != nil {
		return nil, err
	}
	return &provider, nil
}

// UpdateProviderInput carries partial updates; nil fields are left unchanged.
type UpdateProviderInput struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	IsActive    *bool          `json:"isActive,omitempty"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// UpdateProvider patches an existing provider config.
func (c *Client) UpdateProvider(ctx context.Context, id string, input UpdateProviderInput) (*ProviderConfig, error) {
	var provider ProviderConfig
	if err := c.do(ctx, http.MethodPatch, "/api/admin/providers/"+id, input, &provider); err != nil {
		return nil, err
	}
	return &provider, nil
}

// DeleteProvider removes a provider config.
func (c *Client) DeleteProvider(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/providers/"+id, nil, nil)
}

// ListUsers returns all accounts.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/api/admin/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUserInput is the payload for CreateUser.
type CreateUserInput struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	Password       string `json:"password"`
	Role           string `json:"role,omitempty"`
	GroupID        string `json:"groupId,omitempty"`
	DailyPageLimit int    `json:"dailyPageLimit,omitempty"`
}

// CreateUser registers a new account.
func (c *Client) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/api/admin/users", input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUserInput carries partial account updates; nil fields are left alone.
type UpdateUserInput struct {
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
	GroupID  *string `json:"groupId,omitempty"`
}

// UpdateUser patches an account.
func (c *Client) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPatch, "/api/admin/users/"+id, input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/users/"+id, nil, nil)
}

type updateQuotaRequest struct {
	DailyPageLimit int `json:"dailyPageLimit"`
}

// UpdateUserQuota changes a user's daily page limit.
func (c *Client) UpdateUserQuota(ctx context.Context, id string, dailyPageLimit int) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPatch, "/api/admin/users/"+id+"/quota", updateQuotaRequest{DailyPageLimit: dailyPageLimit}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListGroups returns all groups.
func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.do(ctx, http.MethodGet, "/api/admin/groups", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

type createGroupRequest struct {
	Name string `json:"name"`
}

// CreateGroup creates a named group.
func (c *Client) CreateGroup(ctx context.Context, name string) (*Group, error) {
	var group Group
	if err := c.do(ctx, http.MethodPost, "/api/admin/groups", createGroupRequest{Name: name}, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// ListGroupAccess returns a group's provider grants ordered by preference.
func (c *Client) ListGroupAccess(ctx context.Context, groupID string) ([]GroupProviderAccess, error) {
	var access []GroupProviderAccess
	if err := c.do(ctx, http.MethodGet, "/api/admin/groups/"+groupID+"/access", nil, &access); err != nil {
		return nil, err
	}
	return access, nil
}

type grantAccessRequest struct {
	ProviderConfigID string `json:"providerConfigId"`
	SortOrder        int    `json:"sortOrder,omitempty"`
}

// GrantGroupAccess grants a group access to a provider config.
func (c *Client) GrantGroupAccess(ctx context.Context, groupID, providerConfigID string, sortOrder int) (*GroupProviderAccess, error) {
	var access GroupProviderAccess
	req := grantAccessRequest{ProviderConfigID: providerConfigID, SortOrder: sortOrder}
	if err := c.do(ctx, http.MethodPost, "/api/admin/groups/"+groupID+"/access", req, &access); err != nil {
		return nil, err
	}
	return &access, nil
}

// RevokeGroupAccess removes a provider grant from a group.
func (c *Client) RevokeGroupAccess(ctx context.Context, groupID, providerConfigID string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/groups/"+groupID+"/access/"+providerConfigID, nil, nil)
}

type reorderRequest struct {
	ProviderIDs []string `json:"providerIds"`
}

// ReorderGroupAccess submits the full provider id list in its new order.
func (c *Client) ReorderGroupAccess(ctx context.Context, groupID string, providerIDs []string) error {
	return c.do(ctx, http.MethodPost, "/api/admin/groups/"+groupID+"/access/reorder", reorderRequest{ProviderIDs: providerIDs}, nil)
}
