package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAction is returned before any network traffic for an action
	// outside the catalog.
	ErrUnknownAction = errors.New("unknown action")

	// ErrNoEndpoint is returned when the client has no backend URL.
	ErrNoEndpoint = errors.New("remote endpoint not configured")
)

// RemoteError reports a transport failure, a non-success HTTP status, or an
// ok:false response envelope.
type RemoteError struct {
	Action     Action
	StatusCode int    // 0 when no HTTP response was received
	Message    string // server-supplied message when present
	Err        error  // underlying transport error, if any
}

func (e *RemoteError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Action, e.Err)
	case e.StatusCode != 0 && e.StatusCode/100 != 2:
		return fmt.Sprintf("%s: status %d: %s", e.Action, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Action, e.Message)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemoteError reports whether err is (or wraps) a RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// SchemaError reports a payload or response that does not match the action's
// schema. Retrying cannot fix it.
type SchemaError struct {
	Action    Action
	Direction string // "request" or "response"
	Err       error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s %s schema: %v", e.Action, e.Direction, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether retrying the same call can never succeed.
func IsPermanent(err error) bool {
	var se *SchemaError
	return errors.As(err, &se) || errors.Is(err, ErrUnknownAction)
}
