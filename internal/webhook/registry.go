package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/mattjoyce/hookgate/internal/hookerr"
)

// Handler processes one delivery of the event type it is registered for.
// A returned error is a handler fault and becomes a 500.
type Handler interface {
	Handle(ctx context.Context, d Delivery) (Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, d Delivery) (Response, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, d Delivery) (Response, error) {
	return f(ctx, d)
}

// MsgInvalidBody is returned when the body is not a JSON document.
const MsgInvalidBody = "Request body must be valid JSON"

// Registry maps event types to their single handler and dispatches
// validated deliveries. Registration happens during setup.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Register binds handler to event. A second registration for the same event
// is a configuration error and leaves the first handler in place.
func (r *Registry) Register(event string, handler Handler) error {
	if event == "" {
		return hookerr.Configuration("hook event type is empty", nil)
	}
	if handler == nil {
		return hookerr.Configuration(fmt.Sprintf("%s hook handler is nil", event), map[string]any{"event": event})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[event]; exists {
		return hookerr.Configuration(fmt.Sprintf("%s hook already registered", event), map[string]any{"event": event})
	}
	r.handlers[event] = handler
	return nil
}

// MustRegister is Register for setup code that cannot continue on error.
func (r *Registry) MustRegister(event string, handler Handler) {
	if err := r.Register(event, handler); err != nil {
		panic(err)
	}
}

// Events returns the registered event types, sorted.
func (r *Registry) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make([]string, 0, len(r.handlers))
	for e := range r.handlers {
		events = append(events, e)
	}
	sort.Strings(events)
	return events
}

func (r *Registry) handlerFor(event string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[event]
}

// Dispatch checks the delivery headers and body, then runs the handler for
// the event type. Event types without a handler get a 200 "Hook not used".
func (r *Registry) Dispatch(ctx context.Context, header http.Header, body []byte) (Response, error) {
	event := header.Get(HeaderEvent)
	if event == "" {
		return Response{}, hookerr.BadRequest("Missing header: " + HeaderEvent)
	}
	guid := header.Get(HeaderDelivery)
	if guid == "" {
		return Response{}, hookerr.BadRequest("Missing header: " + HeaderDelivery)
	}

	payload, err := parsePayload(body)
	if err != nil {
		return Response{}, hookerr.BadRequest(MsgInvalidBody)
	}

	handler := r.handlerFor(event)
	if handler == nil {
		r.logger.Debug("hook not used", "event", event, "delivery_id", guid)
		return Text(http.StatusOK, notUsedBody), nil
	}

	resp, err := handler.Handle(ctx, Delivery{
		Event:   event,
		ID:      guid,
		Body:    body,
		Payload: payload,
	})
	if err != nil {
		return Response{}, err
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	return resp, nil
}

func parsePayload(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON document")
	}
	if isEmptyPayload(payload) {
		return nil, fmt.Errorf("empty JSON document")
	}
	return payload, nil
}

// isEmptyPayload reports null, false, zero, "" and empty objects or arrays.
func isEmptyPayload(v any) bool {
	switch p := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(p) == 0
	case []any:
		return len(p) == 0
	case string:
		return p == ""
	case bool:
		return !p
	case json.Number:
		f, err := p.Float64()
		return err == nil && f == 0
	}
	return false
}
