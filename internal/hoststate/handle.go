package hoststate

import "github.com/proxy-wasm/wasmtester/abi"

// Handle is the Tester-owned reference to the live mock host state, kept
// indirect so the host-call closures registered at link time and the
// façade's SetDefault* methods observe the same State value across Reset.
type Handle struct {
	state *State
}

// NewHandle returns a Handle reset for the given ABI version.
func NewHandle(v abi.AbiVersion) *Handle {
	return &Handle{state: New(v)}
}

// State returns the live mock host state.
func (h *Handle) State() *State { return h.state }

// Reset re-initializes the mock host state for the detected ABI version.
func (h *Handle) Reset() { h.state.Reset(h.state.abiVersion) }

// SetAbiVersion re-initializes the mock host state for v. Used once, after
// the guest module is instantiated and its ABI version detected, since the
// host module handlers must already be linked (and so already hold this
// Handle) before that detection can happen.
func (h *Handle) SetAbiVersion(v abi.AbiVersion) { h.state.Reset(v) }
