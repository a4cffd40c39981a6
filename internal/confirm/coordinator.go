package confirm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/toolgate/toolgate/internal/events"
	"github.com/toolgate/toolgate/internal/session"
	"github.com/toolgate/toolgate/pkg/types"
)

// Pending is the UI view of one queued confirmation. Index is the 1-based
// queue position; both fields are recomputed whenever the queue changes so
// ordering stays correct under concurrent proposals.
type Pending struct {
	CallID        string         `json:"call_id"`
	CorrelationID string         `json:"correlation_id"`
	Tool          string         `json:"tool"`
	Kind          types.ToolKind `json:"kind,omitempty"`
	Args          map[string]any `json:"args,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	Index         int            `json:"index"`
	Total         int            `json:"total"`
}

type entry struct {
	callID    string
	call      types.ToolCall
	createdAt time.Time
	// offered marks entries currently presented on the external diff
	// surface; they stay in the queue until resolved so a disconnect never
	// loses them.
	offered bool
}

// Coordinator turns ask_user decisions into queued, correlated confirmation
// requests and routes each response back to the caller that proposed the
// action. Every pending entry is resolved at most once; duplicate confirm or
// cancel calls are no-ops.
type Coordinator struct {
	bus       *Bus
	allowlist *session.Allowlist
	surface   DiffSurface
	emit      events.Emitter
	logger    *slog.Logger
	sessionID string

	mu    sync.Mutex
	queue []*entry
}

// NewCoordinator wires the coordinator. surface may be nil; emit may be nil
// for audit-less use.
func NewCoordinator(bus *Bus, allowlist *session.Allowlist, surface DiffSurface, emit events.Emitter, sessionID string, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if emit == nil {
		emit = events.Nop{}
	}
	return &Coordinator{
		bus:       bus,
		allowlist: allowlist,
		surface:   surface,
		emit:      emit,
		logger:    logger,
		sessionID: sessionID,
	}
}

// Request enqueues the call and suspends until its correlated response
// arrives or ctx is cancelled. Cancellation drops the pending entry without
// publishing anything.
func (c *Coordinator) Request(ctx context.Context, call types.ToolCall) (types.ConfirmationResponse, error) {
	ch, unsubscribe := c.bus.Subscribe(call.CorrelationID)
	defer unsubscribe()

	pending := c.Enqueue(call)

	if call.Kind == types.KindEdit && c.surface != nil && c.surface.Connected() {
		c.offerEntry(ctx, pending.CallID)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		c.drop(pending.CallID)
		return types.ConfirmationResponse{}, ctx.Err()
	}
}

// Enqueue appends a pending confirmation and returns its queue snapshot.
func (c *Coordinator) Enqueue(call types.ToolCall) Pending {
	e := &entry{
		callID:    "call-" + uuid.NewString(),
		call:      call,
		createdAt: time.Now().UTC(),
	}

	c.mu.Lock()
	c.queue = append(c.queue, e)
	p := c.pendingLocked(len(c.queue) - 1)
	c.mu.Unlock()

	ctx := context.Background()
	_ = c.emit.Emit(ctx, types.Event{
		ID:        uuid.NewString(),
		Timestamp: e.createdAt,
		Type:      types.EventConfirmationEnqueued,
		SessionID: c.sessionID,
		CallID:    e.callID,
		Tool:      call.Name,
	})
	return p
}

// ListPending returns the queue in FIFO order with fresh index/total.
func (c *Coordinator) ListPending() []Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Pending, 0, len(c.queue))
	for i := range c.queue {
		out = append(out, c.pendingLocked(i))
	}
	return out
}

// Confirm resolves a pending entry with the user's outcome. Returns false
// (and does nothing else) when the id is unknown or already resolved.
func (c *Coordinator) Confirm(callID string, outcome types.ConfirmationOutcome) bool {
	return c.resolve(callID, outcome, nil)
}

// ConfirmWithPayload is Confirm with an opaque payload forwarded to the
// waiting caller (e.g. user-modified edit content).
func (c *Coordinator) ConfirmWithPayload(callID string, outcome types.ConfirmationOutcome, payload any) bool {
	return c.resolve(callID, outcome, payload)
}

// Cancel resolves a pending entry as cancelled.
func (c *Coordinator) Cancel(callID string) bool {
	return c.resolve(callID, types.OutcomeCancel, nil)
}

// WatchSurface re-offers queued edit entries whenever the external diff
// surface reconnects. Run it in its own goroutine; it stops with ctx.
func (c *Coordinator) WatchSurface(ctx context.Context) {
	if c.surface == nil {
		return
	}
	for {
		select {
		case up, ok := <-c.surface.StatusChanges():
			if !ok {
				return
			}
			if !up {
				c.reclaimOffered()
				continue
			}
			for _, callID := range c.unofferedEdits() {
				c.offerEntry(ctx, callID)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) resolve(callID string, outcome types.ConfirmationOutcome, payload any) bool {
	c.mu.Lock()
	var e *entry
	for i, cand := range c.queue {
		if cand.callID == callID {
			e = cand
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if e == nil {
		c.logger.Debug("confirm/cancel on unknown or already-resolved call", "call_id", callID)
		return false
	}

	if e.call.Kind == types.KindShell && outcome.RemembersCommand() && c.allowlist != nil {
		c.allowlist.Add(e.call.Command())
	}

	// Every response published here went through the queue; responses
	// synthesized for auto-approved calls never reach resolve, so the flag
	// distinguishes the two on the wire.
	c.bus.Publish(types.ConfirmationResponse{
		Type:                     types.TypeToolConfirmationResponse,
		CorrelationID:            e.call.CorrelationID,
		Confirmed:                outcome.Proceed(),
		Outcome:                  outcome,
		RequiresUserConfirmation: true,
		Payload:                  payload,
	})

	_ = c.emit.Emit(context.Background(), types.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      types.EventConfirmationResolved,
		SessionID: c.sessionID,
		CallID:    e.callID,
		Tool:      e.call.Name,
		Outcome:   string(outcome),
	})
	return true
}

// drop removes a pending entry without publishing a response. Used when the
// proposing caller's context is cancelled or the session ends.
func (c *Coordinator) drop(callID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cand := range c.queue {
		if cand.callID == callID {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
}

// DropAll discards every in-flight confirmation (session teardown).
func (c *Coordinator) DropAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = nil
}

// offerEntry presents one queued entry on the diff surface. The entry stays
// queued; a surface failure just returns it to the local queue.
func (c *Coordinator) offerEntry(ctx context.Context, callID string) {
	c.mu.Lock()
	var e *entry
	for _, cand := range c.queue {
		if cand.callID == callID && !cand.offered {
			cand.offered = true
			e = cand
			break
		}
	}
	c.mu.Unlock()
	if e == nil {
		return
	}

	go func() {
		outcome, err := c.surface.OfferEdit(ctx, e.call)
		if err != nil {
			c.logger.Debug("diff surface offer failed, falling back to local queue",
				"call_id", e.callID, "error", err)
			c.mu.Lock()
			e.offered = false
			c.mu.Unlock()
			return
		}
		c.resolve(e.callID, outcome, nil)
	}()
}

func (c *Coordinator) reclaimOffered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.queue {
		e.offered = false
	}
}

func (c *Coordinator) unofferedEdits() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for _, e := range c.queue {
		if e.call.Kind == types.KindEdit && !e.offered {
			ids = append(ids, e.callID)
		}
	}
	return ids
}

func (c *Coordinator) pendingLocked(i int) Pending {
	e := c.queue[i]
	return Pending{
		CallID:        e.callID,
		CorrelationID: e.call.CorrelationID,
		Tool:          e.call.Name,
		Kind:          e.call.Kind,
		Args:          e.call.Args,
		CreatedAt:     e.createdAt,
		Index:         i + 1,
		Total:         len(c.queue),
	}
}
