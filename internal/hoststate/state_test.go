package hoststate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxy-wasm/wasmtester/abi"
)

func TestSetDefaultTickPeriodSticksUntilReset(t *testing.T) {
	s := New(abi.AbiVersion0_2_0)
	s.SetTickPeriodMillis(100)
	assert.EqualValues(t, 100, s.TickPeriodMillis)

	// sticky across an unrelated mutation
	s.SetHeaderMapPairs(abi.MapTypeHttpRequestHeaders, []abi.HeaderPair{{Key: "a", Value: "b"}})
	assert.EqualValues(t, 100, s.TickPeriodMillis)

	s.Reset(abi.AbiVersion0_2_0)
	assert.EqualValues(t, 0, s.TickPeriodMillis)
}

func TestHeaderMapAddReplaceRemoveReadAfterWrite(t *testing.T) {
	s := New(abi.AbiVersion0_2_0)
	s.SetHeaderMapPairs(abi.MapTypeHttpRequestHeaders, []abi.HeaderPair{{Key: ":path", Value: "/a"}})

	s.AddHeaderMapValue(abi.MapTypeHttpRequestHeaders, "x-extra", "1")
	v, ok := s.HeaderMapValue(abi.MapTypeHttpRequestHeaders, "x-extra")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	s.ReplaceHeaderMapValue(abi.MapTypeHttpRequestHeaders, ":path", "/b")
	v, ok = s.HeaderMapValue(abi.MapTypeHttpRequestHeaders, ":path")
	require.True(t, ok)
	assert.Equal(t, "/b", v)

	s.RemoveHeaderMapValue(abi.MapTypeHttpRequestHeaders, "x-extra")
	_, ok = s.HeaderMapValue(abi.MapTypeHttpRequestHeaders, "x-extra")
	assert.False(t, ok)
}

func TestSharedDataCasMismatch(t *testing.T) {
	s := New(abi.AbiVersion0_2_0)
	require.Equal(t, abi.StatusOK, s.SetSharedData("k", "v1", 0))

	_, cas, status := s.GetSharedData("k")
	require.Equal(t, abi.StatusOK, status)

	assert.Equal(t, abi.StatusCasMismatch, s.SetSharedData("k", "v2", cas+1))
	assert.Equal(t, abi.StatusOK, s.SetSharedData("k", "v2", cas))

	v, _, status := s.GetSharedData("k")
	require.Equal(t, abi.StatusOK, status)
	assert.Equal(t, "v2", v)
}

func TestSharedQueueRegisterResolveEnqueueDequeue(t *testing.T) {
	s := New(abi.AbiVersion0_2_0)
	token := s.RegisterSharedQueue("my-queue")

	resolved, status := s.ResolveSharedQueue("", "my-queue")
	require.Equal(t, abi.StatusOK, status)
	assert.Equal(t, token, resolved)

	require.Equal(t, abi.StatusOK, s.EnqueueSharedQueue(token, []byte("hello")))
	item, status := s.DequeueSharedQueue(token)
	require.Equal(t, abi.StatusOK, status)
	assert.Equal(t, []byte("hello"), item)

	_, status = s.DequeueSharedQueue(token)
	assert.Equal(t, abi.StatusEmpty, status)
}

func TestResolveUnknownSharedQueueNotFound(t *testing.T) {
	s := New(abi.AbiVersion0_2_0)
	_, status := s.ResolveSharedQueue("", "nope")
	assert.Equal(t, abi.StatusNotFound, status)
}
