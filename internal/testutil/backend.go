package testutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Handler answers one action. A returned error becomes an ok:false envelope
// carrying the error text.
type Handler func(payload json.RawMessage) (any, error)

// RecordedCall is one request received by a FakeBackend.
type RecordedCall struct {
	Action  string
	Payload json.RawMessage
}

// FakeBackend is an httptest server speaking the {action, payload} /
// {ok, data, error} envelope protocol.
//
// Unregistered actions answer ok:false. Thread-safety: all methods are safe
// for concurrent use.
type FakeBackend struct {
	server *httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	statuses map[string]int
	calls    []RecordedCall
}

// NewFakeBackend starts a backend that is closed when the test ends.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	b := &FakeBackend{
		handlers: make(map[string]Handler),
		statuses: make(map[string]int),
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the endpoint to point a client at.
func (b *FakeBackend) URL() string {
	return b.server.URL
}

// Handle registers h for action, replacing any previous handler.
func (b *FakeBackend) Handle(action string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[action] = h
	delete(b.statuses, action)
}

// Respond makes action succeed with data.
func (b *FakeBackend) Respond(action string, data any) {
	b.Handle(action, func(json.RawMessage) (any, error) { return data, nil })
}

// Fail makes action answer ok:false with msg.
func (b *FakeBackend) Fail(action, msg string) {
	b.Handle(action, func(json.RawMessage) (any, error) { return nil, errors.New(msg) })
}

// FailStatus makes action answer with a bare HTTP status.
func (b *FakeBackend) FailStatus(action string, code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[action] = code
}

// Calls returns every request received so far, in arrival order.
func (b *FakeBackend) Calls() []RecordedCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedCall(nil), b.calls...)
}

// CallsFor returns the requests received for one action.
func (b *FakeBackend) CallsFor(action string) []RecordedCall {
	var out []RecordedCall
	for _, c := range b.Calls() {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

func (b *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	var env struct {
		Action  string          `json:"action"`
		Payload json.RawMessage `json:"payload"`
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeEnvelope(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "bad envelope"})
		return
	}

	b.mu.Lock()
	b.calls = append(b.calls, RecordedCall{Action: env.Action, Payload: env.Payload})
	status, forced := b.statuses[env.Action]
	h := b.handlers[env.Action]
	b.mu.Unlock()

	if forced {
		w.WriteHeader(status)
		return
	}
	if h == nil {
		writeEnvelope(w, http.StatusOK, map[string]any{"ok": false, "error": "unknown action " + env.Action})
		return
	}

	data, err := h(env.Payload)
	if err != nil {
		writeEnvelope(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeEnvelope(w, http.StatusOK, map[string]any{"ok": true, "data": data})
}

func writeEnvelope(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
