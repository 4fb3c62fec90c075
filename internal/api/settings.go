package api

import (
	"context"
	"net/http"
)

// System, email, S3, and performance settings. Update payloads use pointer
// fields: nil leaves the server value unchanged, mirroring the backend's
// partial-update semantics.

// GetSystemSettings returns registration-related settings.
func (c *Client) GetSystemSettings(ctx context.Context) (*SystemSettings, error) {
	var settings SystemSettings
	if err := c.do(ctx, http.MethodGet, "/api/admin/settings/system", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSystemSettingsInput carries partial system settings updates.
type UpdateSystemSettingsInput struct {
	AllowRegistration    *bool    `json:"allowRegistration,omitempty"`
	AllowedEmailSuffixes []string `json:"allowedEmailSuffixes,omitempty"`
}

// UpdateSystemSettings patches system settings.
func (c *Client) UpdateSystemSettings(ctx context.Context, input UpdateSystemSettingsInput) error {
	return c.do(ctx, http.MethodPut, "/api/admin/settings/system", input, nil)
}

// GetEmailSettings returns the SMTP configuration (password omitted).
func (c *Client) GetEmailSettings(ctx context.Context) (*EmailSettings, error) {
	var settings EmailSettings
	if err := c.do(ctx, http.MethodGet, "/api/admin/settings/email", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateEmailSettingsInput carries partial SMTP updates. An empty password is
// ignored server-side, so the stored secret survives a no-change submit.
type UpdateEmailSettingsInput struct {
	SMTPHost      *string `json:"smtpHost,omitempty"`
	SMTPPort      *int    `json:"smtpPort,omitempty"`
	SMTPUsername  *string `json:"smtpUsername,omitempty"`
	SMTPPassword  *string `json:"smtpPassword,omitempty"`
	SMTPUseTLS    *bool   `json:"smtpUseTLS,omitempty"`
	SMTPFromEmail *string `json:"smtpFromEmail,omitempty"`
}

// UpdateEmailSettings patches the SMTP configuration.
func (c *Client) UpdateEmailSettings(ctx context.Context, input UpdateEmailSettingsInput) error {
	return c.do(ctx, http.MethodPut, "/api/admin/settings/email", input, nil)
}

type testEmailRequest struct {
	To string `json:"to"`
}

// SendTestEmail asks the backend to send a test message to the given address.
func (c *Client) SendTestEmail(ctx context.Context, to string) error {
	return c.do(ctx, http.MethodPost, "/api/admin/settings/email/test", testEmailRequest{To: to}, nil)
}

// GetS3Settings returns the object storage configuration (secret key omitted).
func (c *Client) GetS3Settings(ctx context.Context) (*S3Settings, error) {
	var settings S3Settings
	if err := c.do(ctx, http.MethodGet, "/api/admin/settings/s3", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateS3Settings replaces the object storage configuration.
func (c *Client) UpdateS3Settings(ctx context.Context, settings S3Settings) error {
	return c.do(ctx, http.MethodPut, "/api/admin/settings/s3", settings, nil)
}

// TestS3Connection asks the backend to verify the given storage credentials.
func (c *Client) TestS3Connection(ctx context.Context, settings S3Settings) error {
	return c.do(ctx, http.MethodPost, "/api/admin/settings/s3/test", settings, nil)
}

// GetPerformanceSettings returns the backend scheduler configuration.
func (c *Client) GetPerformanceSettings(ctx context.Context) (*PerformanceSettings, error) {
	var settings PerformanceSettings
	if err := c.do(ctx, http.MethodGet, "/api/admin/settings/performance", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdatePerformanceSettingsInput carries partial scheduler updates.
type UpdatePerformanceSettingsInput struct {
	MaxConcurrentTasks   *int `json:"maxConcurrentTasks,omitempty"`
	TranslationThreads   *int `json:"translationThreads,omitempty"`
	QueueMonitorInterval *int `json:"queueMonitorInterval,omitempty"`
}

// UpdatePerformanceSettings patches the scheduler configuration. The backend
// reloads its task manager when this succeeds.
func (c *Client) UpdatePerformanceSettings(ctx context.Context, input UpdatePerformanceSettingsInput) error {
	return c.do(ctx, http.MethodPut, "/api/admin/settings/performance", input, nil)
}

// GetPerformanceMetrics returns current backend queue pressure.
func (c *Client) GetPerformanceMetrics(ctx context.Context) (*PerformanceMetrics, error) {
	var metrics PerformanceMetrics
	if err := c.do(ctx, http.MethodGet, "/api/admin/settings/performance/metrics", nil, &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}
