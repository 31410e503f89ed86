package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/den67rus/vk-io/transport"
)

var (
	// ErrMalformedBatch means an execute reply was not the expected array.
	ErrMalformedBatch = errors.New("batch response is not an array")

	// ErrBatchLength means an execute reply's length did not match the
	// number of bundled calls.
	ErrBatchLength = errors.New("batch response length mismatch")
)

// failureMarker is the literal the platform substitutes for a sub-call
// whose server-side evaluation failed.
var failureMarker = []byte("false")

// distribute settles every call of the unit from the reply, strictly by
// position. A reply whose shape or length does not match the unit is never
// partially trusted: the whole unit is rejected.
func (d *Dispatcher) distribute(unit *batchUnit, reply *transport.Reply) {
	var items []json.RawMessage
	if err := json.Unmarshal(reply.Response, &items); err != nil {
		d.logger.Error().Err(err).Int("calls", len(unit.calls)).Msg("malformed batch response")
		rejectAll(unit.calls, fmt.Errorf("%w: %v", ErrMalformedBatch, err))
		return
	}
	if len(items) != len(unit.calls) {
		d.logger.Error().
			Int("expected", len(unit.calls)).
			Int("got", len(items)).
			Msg("batch response length mismatch")
		rejectAll(unit.calls, fmt.Errorf("%w: expected %d, got %d", ErrBatchLength, len(unit.calls), len(items)))
		return
	}

	// Failed sub-calls are paired, in order, with the inline errors the
	// platform reported alongside the reply.
	errIdx := 0
	for i, c := range unit.calls {
		if isFailureMarker(items[i]) && errIdx < len(reply.Errors) {
			c.reject(reply.Errors[errIdx])
			errIdx++
			continue
		}
		c.resolve(items[i])
	}
}

// isFailureMarker reports whether an element marks a failed sub-call.
// The marker is indistinguishable from a genuine boolean result at the wire
// level; an element is treated as a failure only while inline errors remain
// to pair it with.
func isFailureMarker(item json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(item), failureMarker)
}

func rejectAll(calls []*Call, err error) {
	for _, c := range calls {
		c.reject(err)
	}
}
