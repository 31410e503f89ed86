package api

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/den67rus/vk-io/dispatch"
	"github.com/den67rus/vk-io/transport"
)

// stubTransport answers every send through a handler and counts sends.
type stubTransport struct {
	mu      sync.Mutex
	count   int
	handler func(method string, params transport.Params) (*transport.Reply, error)
}

func (s *stubTransport) Send(ctx context.Context, method string, params transport.Params) (*transport.Reply, error) {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return s.handler(method, params)
}

func (s *stubTransport) sends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func singleBatchReply(elem string) func(string, transport.Params) (*transport.Reply, error) {
	return func(method string, params transport.Params) (*transport.Reply, error) {
		return &transport.Reply{Response: json.RawMessage(`[` + elem + `]`)}, nil
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New("")
	assert.Error(t, err, "token required without a custom transport")

	_, err = New("token", WithMaxBatchCalls(0))
	assert.Error(t, err)

	_, err = New("token", WithDebounce(-time.Second))
	assert.Error(t, err)

	_, err = New("token", WithCache(10, time.Minute))
	assert.Error(t, err, "cache without cacheable methods")

	_, err = New("token", WithCache(10, 0, "users.get"))
	assert.Error(t, err, "cache without ttl")
}

func TestNew_CustomTransportNeedsNoToken(t *testing.T) {
	st := &stubTransport{handler: singleBatchReply(`1`)}
	c, err := New("", WithTransport(st))
	require.NoError(t, err)
	c.Close()
}

func TestClient_CallThroughBatch(t *testing.T) {
	st := &stubTransport{
		handler: func(method string, params transport.Params) (*transport.Reply, error) {
			return &transport.Reply{Response: json.RawMessage(`["a","b"]`)}, nil
		},
	}
	c, err := New("", WithTransport(st), WithDebounce(time.Hour))
	require.NoError(t, err)
	defer c.Close()

	first := c.Request("users.get", transport.Params{"user_ids": "1"})
	second := c.Request("status.get", nil)
	c.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v1, err := first.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"a"`), v1)

	v2, err := second.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"b"`), v2)

	assert.Equal(t, 1, st.sends())
}

func TestClient_Execute(t *testing.T) {
	var gotMethod string
	var gotCode any
	st := &stubTransport{
		handler: func(method string, params transport.Params) (*transport.Reply, error) {
			gotMethod = method
			gotCode = params["code"]
			return &transport.Reply{Response: json.RawMessage(`7`)}, nil
		},
	}
	c, err := New("", WithTransport(st))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	value, err := c.Execute(ctx, "return 3+4;")
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`7`), value)
	assert.Equal(t, dispatch.MethodExecute, gotMethod)
	assert.Equal(t, "return 3+4;", gotCode)
}

func TestClient_CacheHit(t *testing.T) {
	st := &stubTransport{handler: singleBatchReply(`[{"id":1}]`)}
	c, err := New("",
		WithTransport(st),
		WithCache(16, time.Minute, "users.get"),
	)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	params := transport.Params{"user_ids": "1"}
	v1, err := c.Call(ctx, "users.get", params)
	require.NoError(t, err)

	v2, err := c.Call(ctx, "users.get", transport.Params{"user_ids": "1"})
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, st.sends(), "second call must be served from cache")
}

func TestClient_CacheSkipsOtherMethods(t *testing.T) {
	st := &stubTransport{handler: singleBatchReply(`1`)}
	c, err := New("",
		WithTransport(st),
		WithCache(16, time.Minute, "users.get"),
	)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = c.Call(ctx, "messages.send", nil)
	require.NoError(t, err)
	_, err = c.Call(ctx, "messages.send", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, st.sends())
}

func TestClient_CloseRejectsQueued(t *testing.T) {
	st := &stubTransport{handler: singleBatchReply(`1`)}
	c, err := New("", WithTransport(st), WithDebounce(time.Hour))
	require.NoError(t, err)

	queued := c.Request("users.get", nil)
	c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = queued.Wait(ctx)
	assert.ErrorIs(t, err, dispatch.ErrDispatcherClosed)
}
