// Package transport defines the wire contract between the call layer and the
// VK API: the narrow Transport interface the dispatcher depends on, the
// decoded reply envelope, and request parameter encoding.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Params holds the parameters of a single API call, keyed by parameter name.
type Params map[string]any

// Transport sends one API call and returns its decoded reply.
// Implementations own authentication, connection management and retries;
// the dispatcher only sees this contract.
type Transport interface {
	Send(ctx context.Context, method string, params Params) (*Reply, error)
}

// Reply is the decoded API response envelope.
// Response carries the raw payload of the "response" field. For execute
// calls, Errors lists the per-sub-call failures the platform reported
// inline, in the order the sub-calls failed.
type Reply struct {
	Response json.RawMessage
	Errors   []*Error
}

// Encode converts params to form values the API endpoint accepts.
// List values are comma-joined, booleans become 1/0, anything else
// falls back to its JSON encoding.
func (p Params) Encode() url.Values {
	values := make(url.Values, len(p))
	for key, value := range p {
		values.Set(key, encodeValue(value))
	}
	return values
}

// Canonical returns a stable textual form of the params, suitable as a
// cache key component. json.Marshal sorts map keys, so equal params
// always produce equal output.
func (p Params) Canonical() string {
	if len(p) == 0 {
		return "{}"
	}
	data, err := json.Marshal(map[string]any(p))
	if err != nil {
		// Unmarshalable values cannot be sent either; the call will fail
		// before caching matters. Keep the key unique to be safe.
		return fmt.Sprintf("!%p", &p)
	}
	return string(data)
}

func encodeValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []string:
		return strings.Join(v, ",")
	case []int:
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = strconv.Itoa(n)
		}
		return strings.Join(parts, ",")
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
