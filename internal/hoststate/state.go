// Package hoststate holds the mock host's default state: the values a guest
// reads when no expectation overrides them for the current callback.
package hoststate

import (
	"fmt"

	"github.com/proxy-wasm/wasmtester/abi"
)

type sharedDataEntry struct {
	Value string
	CAS   uint32
}

type sharedQueue struct {
	name  string
	items [][]byte
}

// State is shared across every callback invocation of one test. It is not
// mutated by the matching process itself (I5), only by explicit
// SetDefault* calls and by the documented side effects of the write-type
// host-calls (set_tick_period_milliseconds, the set/add/replace/remove
// header map family, set_buffer_bytes, send_local_response, set_shared_data,
// the shared queue family).
type State struct {
	abiVersion abi.AbiVersion

	TickPeriodMillis uint64
	Buffers          map[abi.BufferType][]byte
	HeaderMaps       map[abi.MapType][]abi.HeaderPair

	sharedData   map[string]sharedDataEntry
	queues       map[uint32]*sharedQueue
	queueTokens  map[string]uint32
	nextToken    uint32
	localRespSet bool
}

// New returns a State reset for the given ABI version.
func New(v abi.AbiVersion) *State {
	s := &State{}
	s.Reset(v)
	return s
}

// Reset re-initializes every default from scratch for the given ABI
// version. Phase-sensitive maps (header/trailer maps, buffers) start empty;
// the test is expected to supply them via Expect*/SetDefault* before each
// callback that reads them.
func (s *State) Reset(v abi.AbiVersion) {
	s.abiVersion = v
	s.TickPeriodMillis = 0
	s.Buffers = make(map[abi.BufferType][]byte)
	s.HeaderMaps = make(map[abi.MapType][]abi.HeaderPair)
	s.sharedData = make(map[string]sharedDataEntry)
	s.queues = make(map[uint32]*sharedQueue)
	s.queueTokens = make(map[string]uint32)
	s.nextToken = 1
	s.localRespSet = false
}

// AbiVersion reports the ABI version this State was last reset for.
func (s *State) AbiVersion() abi.AbiVersion { return s.abiVersion }

/* ----------------------------- tick period ----------------------------- */

// SetTickPeriodMillis is the sticky default set by SetDefaultTickPeriodMillis,
// and the side effect of a matched set_tick_period_milliseconds host-call.
func (s *State) SetTickPeriodMillis(millis uint64) { s.TickPeriodMillis = millis }

// ResetTickPeriodMillis restores the tick period to its zero default.
func (s *State) ResetTickPeriodMillis() { s.TickPeriodMillis = 0 }

/* -------------------------------- buffers ------------------------------- */

// SetBufferBytes sets the sticky default contents of a named buffer.
func (s *State) SetBufferBytes(bt abi.BufferType, data []byte) { s.Buffers[bt] = data }

// ResetBufferBytes clears every buffer default.
func (s *State) ResetBufferBytes() { s.Buffers = make(map[abi.BufferType][]byte) }

/* ------------------------------ header maps ------------------------------ */

// SetHeaderMapPairs sets the sticky default ordered pairs of a header map.
func (s *State) SetHeaderMapPairs(mt abi.MapType, pairs []abi.HeaderPair) {
	s.HeaderMaps[mt] = append([]abi.HeaderPair(nil), pairs...)
}

// ResetHeaderMapPairs clears every header map default.
func (s *State) ResetHeaderMapPairs() { s.HeaderMaps = make(map[abi.MapType][]abi.HeaderPair) }

// HeaderMapValue looks up a single key in a default header map.
func (s *State) HeaderMapValue(mt abi.MapType, key string) (string, bool) {
	for _, p := range s.HeaderMaps[mt] {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// AddHeaderMapValue appends a (key, value) pair, the side effect of a
// matched add_header_map_value host-call (read-after-write).
func (s *State) AddHeaderMapValue(mt abi.MapType, key, value string) {
	s.HeaderMaps[mt] = append(s.HeaderMaps[mt], abi.HeaderPair{Key: key, Value: value})
}

// ReplaceHeaderMapValue replaces the first pair with a matching key, or
// appends one if absent.
func (s *State) ReplaceHeaderMapValue(mt abi.MapType, key, value string) {
	pairs := s.HeaderMaps[mt]
	for i, p := range pairs {
		if p.Key == key {
			pairs[i].Value = value
			return
		}
	}
	s.HeaderMaps[mt] = append(pairs, abi.HeaderPair{Key: key, Value: value})
}

// RemoveHeaderMapValue removes every pair with a matching key.
func (s *State) RemoveHeaderMapValue(mt abi.MapType, key string) {
	pairs := s.HeaderMaps[mt]
	out := pairs[:0]
	for _, p := range pairs {
		if p.Key != key {
			out = append(out, p)
		}
	}
	s.HeaderMaps[mt] = out
}

/* ----------------------------- local response ---------------------------- */

// NoteLocalResponseSent records that send_local_response fired. The flag is
// not cleared between callbacks, only by Reset.
func (s *State) NoteLocalResponseSent() { s.localRespSet = true }

// LocalResponseSent reports whether send_local_response fired since the
// last Reset.
func (s *State) LocalResponseSent() bool { return s.localRespSet }

/* ------------------------------ shared data ------------------------------ */

// SetSharedData stores value under key if cas is 0 or matches the stored
// CAS, bumping the CAS counter on success. Mirrors proxy_set_shared_data.
func (s *State) SetSharedData(key, value string, cas uint32) abi.Status {
	entry, ok := s.sharedData[key]
	if ok && cas != 0 && cas != entry.CAS {
		return abi.StatusCasMismatch
	}
	s.sharedData[key] = sharedDataEntry{Value: value, CAS: entry.CAS + 1}
	return abi.StatusOK
}

// GetSharedData returns the stored value and CAS for key.
func (s *State) GetSharedData(key string) (value string, cas uint32, status abi.Status) {
	entry, ok := s.sharedData[key]
	if !ok {
		return "", 0, abi.StatusNotFound
	}
	return entry.Value, entry.CAS, abi.StatusOK
}

/* ----------------------------- shared queues ------------------------------ */

// RegisterSharedQueue allocates a token for a named queue, returning the
// existing token if already registered under that name.
func (s *State) RegisterSharedQueue(name string) uint32 {
	if token, ok := s.queueTokens[name]; ok {
		return token
	}
	token := s.nextToken
	s.nextToken++
	s.queueTokens[name] = token
	s.queues[token] = &sharedQueue{name: name}
	return token
}

// ResolveSharedQueue looks up the token for a named queue registered by
// another (mock) VM; vmID is accepted but not validated since this harness
// mocks a single host process.
func (s *State) ResolveSharedQueue(vmID, name string) (uint32, abi.Status) {
	token, ok := s.queueTokens[name]
	if !ok {
		return 0, abi.StatusNotFound
	}
	return token, abi.StatusOK
}

// EnqueueSharedQueue appends data to the named queue's FIFO.
func (s *State) EnqueueSharedQueue(token uint32, data []byte) abi.Status {
	q, ok := s.queues[token]
	if !ok {
		return abi.StatusNotFound
	}
	q.items = append(q.items, data)
	return abi.StatusOK
}

// DequeueSharedQueue pops the oldest entry from the named queue's FIFO.
func (s *State) DequeueSharedQueue(token uint32) ([]byte, abi.Status) {
	q, ok := s.queues[token]
	if !ok {
		return nil, abi.StatusNotFound
	}
	if len(q.items) == 0 {
		return nil, abi.StatusEmpty
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, abi.StatusOK
}

// String renders the current defaults for PrintHostSettings.
func (s *State) String() string {
	return fmt.Sprintf("tick_period_ms=%d buffers=%d header_maps=%d shared_data=%d queues=%d",
		s.TickPeriodMillis, len(s.Buffers), len(s.HeaderMaps), len(s.sharedData), len(s.queues))
}
