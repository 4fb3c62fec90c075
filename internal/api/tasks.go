package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

type taskEnvelope struct {
	Task *Task `json:"task"`
}

type tasksEnvelope struct {
	Tasks []Task `json:"tasks"`
}

// ListTasks returns the caller's translation tasks, newest first.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var env tasksEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &env); err != nil {
		return nil, err
	}
	return env.Tasks, nil
}

// GetTask retrieves a single task by id.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var env taskEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+id, nil, &env); err != nil {
		return nil, err
	}
	if env.Task == nil {
		return nil, fmt.Errorf("task response missing task")
	}
	return env.Task, nil
}

// CreateTaskInput is the payload for CreateTask. File and DocumentName are
// required; the remaining fields default server-side.
type CreateTaskInput struct {
	File             io.Reader
	FileName         string
	DocumentName     string
	SourceLang       string
	TargetLang       string
	Engine           string
	Priority         Priority
	Notes            string
	ProviderConfigID string

	// IdempotencyKey is forwarded as a form field so a retried upload can be
	// deduplicated server-side. Empty means no key.
	IdempotencyKey string
}

// CreateTask uploads a document and submits a new translation task.
func (c *Client) CreateTask(ctx context.Context, input CreateTaskInput) (*Task, error) {
	fields := []multipartField{
		{"documentName", input.DocumentName},
		{"sourceLang", input.SourceLang},
		{"targetLang", input.TargetLang},
		{"engine", input.Engine},
	}
	if input.Priority != "" {
		fields = append(fields, multipartField{"priority", string(input.Priority)})
	}
	if input.Notes != "" {
		fields = append(fields, multipartField{"notes", input.Notes})
	}
	if input.ProviderConfigID != "" {
		fields = append(fields, multipartField{"providerConfigId", input.ProviderConfigID})
	}
	if input.IdempotencyKey != "" {
		fields = append(fields, multipartField{"idempotencyKey", input.IdempotencyKey})
	}

	var env taskEnvelope
	if err := c.doMultipart(ctx, "/api/tasks", input.FileName, input.File, fields, &env); err != nil {
		return nil, err
	}
	if env.Task == nil {
		return nil, fmt.Errorf("task response missing task")
	}
	return env.Task, nil
}

// TaskAction is a state-transition request on an existing task.
type TaskAction string

const (
	ActionRetry  TaskAction = "retry"  // valid only from failed
	ActionCancel TaskAction = "cancel" // valid only from queued or processing
)

type taskActionRequest struct {
	Action TaskAction `json:"action"`
}

// MutateTask applies a retry or cancel action and returns the updated task.
func (c *Client) MutateTask(ctx context.Context, id string, action TaskAction) (*Task, error) {
	var env taskEnvelope
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+id, taskActionRequest{Action: action}, &env); err != nil {
		return nil, err
	}
	if env.Task == nil {
		return nil, fmt.Errorf("task response missing task")
	}
	return env.Task, nil
}
