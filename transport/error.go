package transport

import (
	"errors"
	"fmt"
)

// Well-known VK API error codes the call layer cares about.
const (
	CodeUnknown          = 1
	CodeTooManyRequests  = 6
	CodeAccessDenied     = 15
	CodeAuthFailed       = 5
	CodeExecuteRuntime   = 13 // runtime error inside execute code
	CodeInvalidParameter = 100
)

// Error is an error reported by the API platform itself, either as the
// top-level "error" object or as an entry of "execute_errors".
type Error struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
	// Method is set on execute_errors entries: the sub-call that failed.
	Method string `json:"method,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("api error %d on %s: %s", e.Code, e.Method, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// Is makes errors.Is match any two API errors with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

var (
	// ErrNotConnected is returned by a connection-oriented transport when
	// Send is called before Connect, or after the connection dropped.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrClosed is returned for sends attempted after Close, and used to
	// reject replies still pending when the connection goes away.
	ErrClosed = errors.New("transport: closed")
)
