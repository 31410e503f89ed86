package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTPServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTP_Send(t *testing.T) {
	srv := newHTTPServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users.get", r.URL.Path)
		assert.Equal(t, "token-1", r.FormValue("access_token"))
		assert.Equal(t, DefaultVersion, r.FormValue("v"))
		assert.Equal(t, "1,2", r.FormValue("user_ids"))
		w.Write([]byte(`{"response":[{"id":1},{"id":2}]}`))
	})

	tr := NewHTTP(HTTPConfig{Token: "token-1", BaseURL: srv.URL})
	reply, err := tr.Send(context.Background(), "users.get", Params{"user_ids": []int{1, 2}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1},{"id":2}]`, string(reply.Response))
	assert.Empty(t, reply.Errors)
}

func TestHTTP_SendAPIError(t *testing.T) {
	srv := newHTTPServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"error_code":5,"error_msg":"User authorization failed"}}`))
	})

	tr := NewHTTP(HTTPConfig{Token: "bad", BaseURL: srv.URL})
	_, err := tr.Send(context.Background(), "users.get", nil)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeAuthFailed, apiErr.Code)
}

func TestHTTP_SendExecuteErrors(t *testing.T) {
	srv := newHTTPServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "return [API.users.get({})];", r.FormValue("code"))
		w.Write([]byte(`{"response":[false],"execute_errors":[{"method":"users.get","error_code":113,"error_msg":"Invalid user id"}]}`))
	})

	tr := NewHTTP(HTTPConfig{Token: "t", BaseURL: srv.URL})
	reply, err := tr.Send(context.Background(), "execute", Params{"code": "return [API.users.get({})];"})
	require.NoError(t, err)

	assert.Equal(t, json.RawMessage(`[false]`), json.RawMessage(reply.Response))
	require.Len(t, reply.Errors, 1)
	assert.Equal(t, 113, reply.Errors[0].Code)
	assert.Equal(t, "users.get", reply.Errors[0].Method)
}

func TestHTTP_SendBadStatus(t *testing.T) {
	srv := newHTTPServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	tr := NewHTTP(HTTPConfig{Token: "t", BaseURL: srv.URL})
	_, err := tr.Send(context.Background(), "users.get", nil)
	assert.Error(t, err)
}

func TestHTTP_SendMalformedBody(t *testing.T) {
	srv := newHTTPServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	tr := NewHTTP(HTTPConfig{Token: "t", BaseURL: srv.URL})
	_, err := tr.Send(context.Background(), "users.get", nil)
	assert.Error(t, err)
}

func TestHTTP_ContextCanceled(t *testing.T) {
	srv := newHTTPServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	tr := NewHTTP(HTTPConfig{Token: "t", BaseURL: srv.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.Send(ctx, "users.get", nil)
	assert.Error(t, err)
}
