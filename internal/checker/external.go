package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/toolgate/toolgate/pkg/types"
)

// ExternalClient invokes external checkers over their HTTP side channel. The
// contract is a POST of the checker name plus serialized call context; the
// checker must answer within the configured timeout. Any transport error,
// timeout or non-2xx status is a failure (fail-closed).
type ExternalClient struct {
	client *http.Client
}

// NewExternalClient builds a client for external checker calls.
func NewExternalClient() *ExternalClient {
	return &ExternalClient{client: &http.Client{Timeout: 30 * time.Second}}
}

// External is one resolved external checker endpoint.
type External struct {
	name     string
	endpoint string
	timeout  time.Duration
	required []string
	client   *http.Client
}

const defaultExternalTimeout = 10 * time.Second

// Resolve validates an external checker config and binds it to the client.
func (c *ExternalClient) Resolve(cfg Config) (*External, error) {
	raw, _ := cfg.Config["url"].(string)
	if raw == "" {
		return nil, fmt.Errorf("external checker needs a config.url")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid external checker url %q", raw)
	}
	for _, key := range cfg.RequiredContext {
		switch key {
		case "workspace_root", "session_id":
		default:
			return nil, fmt.Errorf("checker %q: required context %q is not available", cfg.Name, key)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultExternalTimeout
	}
	return &External{
		name:     cfg.Name,
		endpoint: raw,
		timeout:  timeout,
		required: cfg.RequiredContext,
		client:   c.client,
	}, nil
}

type externalRequest struct {
	Checker string         `json:"checker"`
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

type externalResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Check posts the call to the checker endpoint. A nil return is a pass.
func (e *External) Check(ctx context.Context, call types.ToolCall, cc CallContext) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// Keys were validated by Resolve.
	reqCtx := map[string]any{}
	for _, key := range e.required {
		switch key {
		case "workspace_root":
			reqCtx[key] = cc.WorkspaceRoot
		case "session_id":
			reqCtx[key] = cc.SessionID
		}
	}

	body, err := json.Marshal(externalRequest{
		Checker: e.name,
		Tool:    call.Name,
		Args:    call.Args,
		Context: reqCtx,
	})
	if err != nil {
		return fmt.Errorf("marshal checker request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build checker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("checker %q call: %w", e.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("checker %q returned status %d", e.name, resp.StatusCode)
	}

	var out externalResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return fmt.Errorf("decode checker %q response: %w", e.name, err)
	}
	if !out.OK {
		reason := out.Reason
		if reason == "" {
			reason = "checker rejected the action"
		}
		return fmt.Errorf("%s", reason)
	}
	return nil
}
