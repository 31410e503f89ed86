package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	m, err := NewMemory(10, time.Minute)
	require.NoError(t, err)
	defer m.Close()

	m.Set("users.get:{}", json.RawMessage(`[{"id":1}]`))

	data, ok := m.Get("users.get:{}")
	require.True(t, ok)
	assert.Equal(t, json.RawMessage(`[{"id":1}]`), data)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMemory_Expiry(t *testing.T) {
	m, err := NewMemory(10, 20*time.Millisecond)
	require.NoError(t, err)
	defer m.Close()

	m.Set("k", json.RawMessage(`1`))
	_, ok := m.Get("k")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = m.Get("k")
	assert.False(t, ok, "expired entry must not be served")
}

func TestMemory_EvictsOldest(t *testing.T) {
	m, err := NewMemory(2, time.Minute)
	require.NoError(t, err)
	defer m.Close()

	m.Set("a", json.RawMessage(`1`))
	m.Set("b", json.RawMessage(`2`))
	m.Set("c", json.RawMessage(`3`))

	_, ok := m.Get("a")
	assert.False(t, ok, "oldest entry evicted at capacity")
	_, ok = m.Get("c")
	assert.True(t, ok)
}

func TestMemory_BadSize(t *testing.T) {
	_, err := NewMemory(0, time.Minute)
	assert.Error(t, err)
}

func TestMethods_Contains(t *testing.T) {
	set := NewMethods("users.get", "groups.getById")

	assert.True(t, set.Contains("users.get"))
	assert.True(t, set.Contains("groups.getById"))
	assert.False(t, set.Contains("messages.send"))
	assert.False(t, Methods(nil).Contains("users.get"))
}
