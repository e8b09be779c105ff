package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Caller issues one RPC action. Client implements it; tests substitute fakes.
type Caller interface {
	Call(ctx context.Context, action Action, payload any, out any) error
}

type envelope struct {
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type response struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// Client posts {action, payload} envelopes to a single backend URL.
// It keeps no state between calls and never retries.
type Client struct {
	httpClient *http.Client
	endpoint   string
	validator  *Validator
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}

// WithValidator enables schema checks on requests and responses.
func WithValidator(v *Validator) Option {
	return func(c *Client) { c.validator = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the backend at endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		endpoint:   strings.TrimSpace(endpoint),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call sends one action and decodes the response data into out (which may be
// nil). Unknown actions and invalid payloads fail before any network traffic.
func (c *Client) Call(ctx context.Context, action Action, payload any, out any) error {
	if _, err := lookup(action); err != nil {
		return err
	}

	body, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("%s: encode payload: %w", action, err)
	}
	if c.validator != nil {
		if err := c.validator.ValidateRequest(action, body); err != nil {
			return err
		}
	}
	if c.endpoint == "" {
		return ErrNoEndpoint
	}

	start := time.Now()
	data, err := c.do(ctx, action, body)
	c.logger.Debug("rpc call", "action", action, "duration", time.Since(start), "error", err)
	if err != nil {
		return err
	}

	if c.validator != nil {
		if err := c.validator.ValidateResponse(action, data); err != nil {
			return err
		}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &SchemaError{Action: action, Direction: "response", Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, action Action, payload []byte) (json.RawMessage, error) {
	b, err := json.Marshal(envelope{Action: action, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("%s: encode envelope: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, &RemoteError{Action: action, Err: err}
	}
	// text/plain keeps the request "simple" for backends that reject CORS
	// preflight.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Action: action, StatusCode: resp.StatusCode, Err: err}
	}

	var r response
	decodeErr := json.Unmarshal(raw, &r)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(r.Error)
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &RemoteError{Action: action, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, &RemoteError{Action: action, StatusCode: resp.StatusCode, Message: "malformed response envelope", Err: decodeErr}
	}
	if !r.OK {
		msg := strings.TrimSpace(r.Error)
		if msg == "" {
			msg = "request failed"
		}
		return nil, &RemoteError{Action: action, StatusCode: resp.StatusCode, Message: msg}
	}
	return r.Data, nil
}

func marshalPayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return []byte("{}"), nil
		}
		return p, nil
	case []byte:
		if len(p) == 0 {
			return []byte("{}"), nil
		}
		return p, nil
	}
	return json.Marshal(payload)
}
