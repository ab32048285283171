package command

import "fmt"

// Kind is the stable error discriminator clients branch on.
type Kind string

const (
	// KindDecodeError marks a malformed or unknown command rejected at
	// the boundary before reaching a handler.
	KindDecodeError Kind = "DecodeError"
	// KindNotFound marks an absent referenced entity id or path.
	KindNotFound Kind = "NotFound"
	// KindConflict marks a violated uniqueness or state precondition.
	KindConflict Kind = "Conflict"
	// KindInvalidParams marks semantically invalid parameters that
	// passed shape validation.
	KindInvalidParams Kind = "InvalidParams"
	// KindJobFailure marks a job that reached terminal Failed state.
	KindJobFailure Kind = "JobFailure"
	// KindInternal marks a programmer or invariant violation. The
	// message is opaque; detail stays in the core's log.
	KindInternal Kind = "Internal"
)

// Error is the typed failure side of an outcome.
type Error struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError creates a typed command error.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a typed command error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a detail key-value pair and returns the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Outcome is the result of dispatching one command: either a
// command-specific success payload or a typed error. An outcome is
// constructed once per dispatched command and never reused.
type Outcome struct {
	OK  any
	Err *Error
}

// Success wraps a payload in a successful outcome.
func Success(payload any) Outcome {
	return Outcome{OK: payload}
}

// Failure wraps a typed error in a failed outcome.
func Failure(err *Error) Outcome {
	return Outcome{Err: err}
}

// IsError reports whether the outcome carries an error.
func (o Outcome) IsError() bool {
	return o.Err != nil
}
