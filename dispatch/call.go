// Package dispatch implements the outbound call queue of the SDK: pending
// calls accumulate in a FIFO buffer, a debounced drain loop merges them into
// execute batches where the platform allows it, and batch replies settle the
// originating calls by position.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/den67rus/vk-io/transport"
)

// MethodExecute is the platform's script-execution method.
const MethodExecute = "execute"

// IsExecuteMethod reports whether method is the script-execution method or a
// stored procedure. The platform forbids running either inside another
// execute call, so they are never bundled.
func IsExecuteMethod(method string) bool {
	return method == MethodExecute || strings.HasPrefix(method, MethodExecute+".")
}

// Call is one caller's in-flight request together with its outcome.
// The outcome settles at most once; resolve/reject on an already-settled
// call is a no-op.
type Call struct {
	method string
	params transport.Params

	mu      sync.Mutex
	settled bool
	done    chan struct{}
	value   json.RawMessage
	err     error
}

// NewCall creates an unsettled call.
func NewCall(method string, params transport.Params) *Call {
	return &Call{
		method: method,
		params: params,
		done:   make(chan struct{}),
	}
}

// Method returns the API method identifier.
func (c *Call) Method() string {
	return c.method
}

// Params returns the call parameters.
func (c *Call) Params() transport.Params {
	return c.params
}

// Done is closed once the call has settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call settles or ctx is done.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome. Valid only after Done is closed; before that
// it reports the call as unsettled.
func (c *Call) Result() (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.settled {
		return nil, fmt.Errorf("call %s is not settled", c.method)
	}
	return c.value, c.err
}

// resolve settles the call with a value. Returns false if already settled.
func (c *Call) resolve(value json.RawMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled {
		return false
	}
	c.settled = true
	c.value = value
	close(c.done)
	return true
}

// reject settles the call with an error. Returns false if already settled.
func (c *Call) reject(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled {
		return false
	}
	c.settled = true
	c.err = err
	close(c.done)
	return true
}

// serialize renders the call as a script expression invoking the remote
// method, valid for embedding inside an execute array literal. Parameter
// objects are JSON, which the script language accepts verbatim.
func (c *Call) serialize() (string, error) {
	if len(c.params) == 0 {
		return "API." + c.method + "({})", nil
	}
	data, err := json.Marshal(map[string]any(c.params))
	if err != nil {
		return "", fmt.Errorf("failed to serialize params of %s: %w", c.method, err)
	}
	return "API." + c.method + "(" + string(data) + ")", nil
}
