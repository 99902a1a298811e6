package wasmmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxy-wasm/wasmtester/abi"
)

func TestBridgeReadWriteU32RoundTrip(t *testing.T) {
	mod := newFakeModule(64)
	b := New(context.Background(), mod)

	require.NoError(t, b.WriteU32(8, 0xdeadbeef))
	got, err := b.ReadU32(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), got)
}

func TestBridgeReadWriteU32OutOfBounds(t *testing.T) {
	mod := newFakeModule(4)
	b := New(context.Background(), mod)

	_, err := b.ReadU32(1)
	require.Error(t, err)
	var oob *OutOfBoundsError
	require.ErrorAs(t, err, &oob)
	assert.Equal(t, "read_u32", oob.Op)

	err = b.WriteU32(1, 1)
	require.Error(t, err)
}

func TestBridgeReadWriteU64RoundTrip(t *testing.T) {
	mod := newFakeModule(64)
	b := New(context.Background(), mod)

	require.NoError(t, b.WriteU64(8, 0x1122334455667788))
	got, err := b.ReadU64(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), got)
}

func TestBridgeReadWriteBytesRoundTrip(t *testing.T) {
	mod := newFakeModule(32)
	b := New(context.Background(), mod)

	want := []byte("hello world")
	require.NoError(t, b.WriteBytes(4, want))

	got, err := b.ReadBytes(4, uint32(len(want)))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	s, err := b.ReadString(4, uint32(len(want)))
	require.NoError(t, err)
	assert.Equal(t, "hello world", s)
}

func TestSerializeDeserializeHeaderMapRoundTrip(t *testing.T) {
	pairs := []abi.HeaderPair{
		{Key: ":method", Value: "GET"},
		{Key: ":path", Value: "/hello"},
		{Key: ":authority", Value: "developer"},
	}

	encoded := SerializeHeaderMap(pairs)
	decoded, err := DeserializeHeaderMap(encoded)
	require.NoError(t, err)
	assert.Equal(t, pairs, decoded)
}

func TestSerializeHeaderMapEmpty(t *testing.T) {
	encoded := SerializeHeaderMap(nil)
	assert.Equal(t, []byte{0, 0, 0, 0}, encoded)

	decoded, err := DeserializeHeaderMap(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDeserializeHeaderMapTruncated(t *testing.T) {
	_, err := DeserializeHeaderMap([]byte{1, 0, 0, 0})
	require.Error(t, err)
}

func TestBridgeSerializedHeaderMapThroughMemory(t *testing.T) {
	mod := newFakeModule(256)
	b := New(context.Background(), mod)

	pairs := []abi.HeaderPair{{Key: "Hello", Value: "World"}, {Key: "Powered-By", Value: "proxy-wasm"}}
	encoded := SerializeHeaderMap(pairs)
	require.NoError(t, b.WriteBytes(16, encoded))

	raw, err := b.ReadBytes(16, uint32(len(encoded)))
	require.NoError(t, err)
	decoded, err := DeserializeHeaderMap(raw)
	require.NoError(t, err)
	assert.Equal(t, pairs, decoded)
}
