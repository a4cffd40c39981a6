// Package webhook forwards audit events to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/toolgate/toolgate/pkg/types"
)

// Config describes one webhook endpoint.
type Config struct {
	// Name identifies the sink in logs.
	Name string `yaml:"name"`

	// URL is the endpoint events are POSTed to.
	URL string `yaml:"url"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Events filters by event type. Empty or "*" matches everything; a
	// trailing "*" matches by prefix ("confirmation_*").
	Events []string `yaml:"events,omitempty"`

	// Timeout bounds each request. Zero means 10s.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// RetryCount is the number of retries after a failed delivery.
	RetryCount int `yaml:"retry_count,omitempty"`

	// RetryDelay is the pause between retries. Zero means 1s.
	RetryDelay time.Duration `yaml:"retry_delay,omitempty"`
}

// Sink delivers events matching its filter to a single endpoint. Delivery is
// synchronous with retries; a sink that cannot deliver logs and gives up
// rather than failing the decision that produced the event.
type Sink struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewSink validates the config and builds a sink.
func NewSink(cfg Config, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("webhook %q: invalid url %q", cfg.Name, cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Sink{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// AppendEvent posts the event as JSON when its type matches the filter.
func (s *Sink) AppendEvent(ctx context.Context, ev types.Event) error {
	if !s.matches(ev.Type) {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = s.post(ctx, body); lastErr == nil {
			return nil
		}
	}
	s.logger.Warn("webhook delivery failed",
		"webhook", s.cfg.Name, "type", ev.Type, "error", lastErr)
	return nil
}

func (s *Sink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return nil
}

func (s *Sink) matches(eventType string) bool {
	if len(s.cfg.Events) == 0 {
		return true
	}
	for _, pattern := range s.cfg.Events {
		if pattern == "*" || pattern == eventType {
			return true
		}
		if strings.HasSuffix(pattern, "*") &&
			strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*")) {
			return true
		}
	}
	return false
}
