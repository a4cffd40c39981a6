package confirm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/toolgate/toolgate/pkg/types"
)

// DiffSurface is an external surface (typically an IDE companion) that can
// show an edit-kind action as a diff and collect the user's choice there
// instead of the local confirmation queue.
type DiffSurface interface {
	// Connected reports whether the surface can currently take offers.
	Connected() bool
	// OfferEdit presents the edit and blocks until the user chooses or the
	// surface disconnects.
	OfferEdit(ctx context.Context, call types.ToolCall) (types.ConfirmationOutcome, error)
	// StatusChanges delivers connection-status transitions. The coordinator
	// re-subscribes on each change so provider switching is live.
	StatusChanges() <-chan bool
}

// WSDiffSurface talks to the companion over a websocket. One offer at a time;
// a disconnect fails the in-flight offer so the caller can fall back.
type WSDiffSurface struct {
	url    string
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	status    chan bool
	connected bool
}

func NewWSDiffSurface(url string, logger *slog.Logger) *WSDiffSurface {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSDiffSurface{
		url:    url,
		logger: logger,
		status: make(chan bool, 8),
	}
}

// Connect dials the companion. Safe to call again after a disconnect.
func (s *WSDiffSurface) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial diff surface: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.notify(true)
	return nil
}

func (s *WSDiffSurface) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *WSDiffSurface) StatusChanges() <-chan bool {
	return s.status
}

type editOffer struct {
	Type string         `json:"type"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type editChoice struct {
	Outcome types.ConfirmationOutcome `json:"outcome"`
}

func (s *WSDiffSurface) OfferEdit(ctx context.Context, call types.ToolCall) (types.ConfirmationOutcome, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return "", fmt.Errorf("diff surface is not connected")
	}

	msg, err := json.Marshal(editOffer{Type: "edit_offer", Tool: call.Name, Args: call.Args})
	if err != nil {
		return "", fmt.Errorf("marshal edit offer: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		s.markDisconnected()
		return "", fmt.Errorf("send edit offer: %w", err)
	}

	type read struct {
		choice editChoice
		err    error
	}
	ch := make(chan read, 1)
	go func() {
		var c editChoice
		_, data, err := conn.ReadMessage()
		if err == nil {
			err = json.Unmarshal(data, &c)
		}
		ch <- read{choice: c, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			s.markDisconnected()
			return "", fmt.Errorf("read edit choice: %w", r.err)
		}
		return r.choice.Outcome, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *WSDiffSurface) markDisconnected() {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()
	if wasConnected {
		s.notify(false)
	}
}

func (s *WSDiffSurface) notify(up bool) {
	select {
	case s.status <- up:
	default:
		s.logger.Debug("diff surface status change dropped", "connected", up)
	}
}
