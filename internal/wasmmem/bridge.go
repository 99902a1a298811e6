// Package wasmmem bridges the harness and a guest's linear memory: fixed
// width integers, length-prefixed byte strings, and serialized header maps.
package wasmmem

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/proxy-wasm/wasmtester/abi"
)

// OutOfBoundsError is returned whenever a guest-supplied pointer/length pair
// falls outside the current linear memory size. It is always fatal.
type OutOfBoundsError struct {
	Op     string
	Offset uint32
	Length uint32
	Size   uint32
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("%s: offset %d length %d out of bounds of memory size %d", e.Op, e.Offset, e.Length, e.Size)
}

// Bridge reads and writes a single guest module's linear memory, scoped to
// the context of the in-flight callback.
type Bridge struct {
	ctx context.Context
	mod api.Module
}

// New returns a Bridge over the given instantiated module for the duration
// of ctx (normally the context passed into the current host-call handler).
func New(ctx context.Context, mod api.Module) *Bridge {
	return &Bridge{ctx: ctx, mod: mod}
}

// ReadU32 reads a little-endian uint32 at offset.
func (b *Bridge) ReadU32(offset uint32) (uint32, error) {
	v, ok := b.mod.Memory().ReadUint32Le(offset)
	if !ok {
		return 0, &OutOfBoundsError{Op: "read_u32", Offset: offset, Length: 4, Size: b.mod.Memory().Size()}
	}
	return v, nil
}

// WriteU32 writes a little-endian uint32 at offset.
func (b *Bridge) WriteU32(offset, value uint32) error {
	if !b.mod.Memory().WriteUint32Le(offset, value) {
		return &OutOfBoundsError{Op: "write_u32", Offset: offset, Length: 4, Size: b.mod.Memory().Size()}
	}
	return nil
}

// ReadU64 reads a little-endian uint64 at offset.
func (b *Bridge) ReadU64(offset uint32) (uint64, error) {
	v, ok := b.mod.Memory().ReadUint64Le(offset)
	if !ok {
		return 0, &OutOfBoundsError{Op: "read_u64", Offset: offset, Length: 8, Size: b.mod.Memory().Size()}
	}
	return v, nil
}

// WriteU64 writes a little-endian uint64 at offset.
func (b *Bridge) WriteU64(offset uint32, value uint64) error {
	if !b.mod.Memory().WriteUint64Le(offset, value) {
		return &OutOfBoundsError{Op: "write_u64", Offset: offset, Length: 8, Size: b.mod.Memory().Size()}
	}
	return nil
}

// ReadBytes returns a copy of length bytes starting at offset.
func (b *Bridge) ReadBytes(offset, length uint32) ([]byte, error) {
	buf, ok := b.mod.Memory().Read(offset, length)
	if !ok {
		return nil, &OutOfBoundsError{Op: "read_bytes", Offset: offset, Length: length, Size: b.mod.Memory().Size()}
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// ReadString reads a byte string of the given length and returns it as a Go
// string.
func (b *Bridge) ReadString(offset, length uint32) (string, error) {
	buf, err := b.ReadBytes(offset, length)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteBytes writes data to offset.
func (b *Bridge) WriteBytes(offset uint32, data []byte) error {
	if !b.mod.Memory().Write(offset, data) {
		return &OutOfBoundsError{Op: "write_bytes", Offset: offset, Length: uint32(len(data)), Size: b.mod.Memory().Size()}
	}
	return nil
}

// AllocInGuest asks the guest's own exported allocator for length bytes and
// returns the address it handed back. Real proxy-wasm SDKs export this
// under different names depending on the compiler; the first exported
// candidate wins.
func (b *Bridge) AllocInGuest(length uint32) (uint32, error) {
	for _, name := range []string{"proxy_on_memory_allocate", "malloc"} {
		fn := b.mod.ExportedFunction(name)
		if fn == nil {
			continue
		}
		results, err := fn.Call(b.ctx, uint64(length))
		if err != nil {
			return 0, fmt.Errorf("alloc_in_guest: calling %s: %w", name, err)
		}
		if len(results) == 0 {
			return 0, fmt.Errorf("alloc_in_guest: %s returned no result", name)
		}
		return uint32(results[0]), nil
	}
	return 0, fmt.Errorf("alloc_in_guest: guest exports no allocator (tried proxy_on_memory_allocate, malloc)")
}

// SerializeHeaderMap encodes an ordered list of header pairs using the
// Proxy-ABI wire format:
//
//	u32 count; [u32 key_len, u32 value_len] x count; (key 0x00 value 0x00) x count
func SerializeHeaderMap(pairs []abi.HeaderPair) []byte {
	size := 4
	for _, p := range pairs {
		size += 8 + len(p.Key) + 1 + len(p.Value) + 1
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf, uint32(len(pairs)))
	pos := 4
	for _, p := range pairs {
		binary.LittleEndian.PutUint32(buf[pos:], uint32(len(p.Key)))
		pos += 4
		binary.LittleEndian.PutUint32(buf[pos:], uint32(len(p.Value)))
		pos += 4
	}
	for _, p := range pairs {
		pos += copy(buf[pos:], p.Key)
		buf[pos] = 0
		pos++
		pos += copy(buf[pos:], p.Value)
		buf[pos] = 0
		pos++
	}
	return buf
}

// DeserializeHeaderMap decodes the inverse of SerializeHeaderMap.
func DeserializeHeaderMap(buf []byte) ([]abi.HeaderPair, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("deserialize_header_map: buffer too short for count")
	}
	count := binary.LittleEndian.Uint32(buf)
	lens := make([][2]uint32, count)
	pos := 4
	for i := uint32(0); i < count; i++ {
		if pos+8 > len(buf) {
			return nil, fmt.Errorf("deserialize_header_map: buffer too short for length table")
		}
		keyLen := binary.LittleEndian.Uint32(buf[pos:])
		valLen := binary.LittleEndian.Uint32(buf[pos+4:])
		lens[i] = [2]uint32{keyLen, valLen}
		pos += 8
	}
	pairs := make([]abi.HeaderPair, count)
	for i := uint32(0); i < count; i++ {
		keyLen, valLen := lens[i][0], lens[i][1]
		if pos+int(keyLen)+1+int(valLen)+1 > len(buf) {
			return nil, fmt.Errorf("deserialize_header_map: buffer too short for pair %d", i)
		}
		key := string(buf[pos : pos+int(keyLen)])
		pos += int(keyLen) + 1
		val := string(buf[pos : pos+int(valLen)])
		pos += int(valLen) + 1
		pairs[i] = abi.HeaderPair{Key: key, Value: val}
	}
	return pairs, nil
}
