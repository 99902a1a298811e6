package callback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/proxy-wasm/wasmtester/abi"
)

// fakeFuncDef reports a fixed parameter count, enough to exercise ABI
// arity detection without a compiled guest module.
type fakeFuncDef struct {
	api.FunctionDefinition
	params []api.ValueType
}

func (d *fakeFuncDef) ParamTypes() []api.ValueType { return d.params }

// fakeFunc records the params it was called with and returns a scripted result.
type fakeFunc struct {
	api.Function
	def        *fakeFuncDef
	result     []uint64
	lastParams []uint64
}

func (f *fakeFunc) Definition() api.FunctionDefinition { return f.def }

func (f *fakeFunc) Call(_ context.Context, params ...uint64) ([]uint64, error) {
	f.lastParams = params
	return f.result, nil
}

// fakeModule exposes a fixed set of exported functions by name.
type fakeModule struct {
	api.Module
	funcs map[string]*fakeFunc
}

func (m *fakeModule) ExportedFunction(name string) api.Function {
	fn, ok := m.funcs[name]
	if !ok {
		return nil
	}
	return fn
}

func newI32Params(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = api.ValueTypeI32
	}
	return out
}

func TestDetectAbiVersionFromRequestHeadersArity(t *testing.T) {
	v1Mod := &fakeModule{funcs: map[string]*fakeFunc{
		"proxy_on_request_headers": {def: &fakeFuncDef{params: newI32Params(2)}},
	}}
	assert.Equal(t, abi.AbiVersion0_1_0, DetectAbiVersion(v1Mod))

	v2Mod := &fakeModule{funcs: map[string]*fakeFunc{
		"proxy_on_request_headers": {def: &fakeFuncDef{params: newI32Params(3)}},
	}}
	assert.Equal(t, abi.AbiVersion0_2_0, DetectAbiVersion(v2Mod))

	noExportMod := &fakeModule{funcs: map[string]*fakeFunc{}}
	assert.Equal(t, abi.AbiVersionUnknown, DetectAbiVersion(noExportMod))
}

func TestDriverInvokeTrimsArgsToVersionedArity(t *testing.T) {
	mod := &fakeModule{funcs: map[string]*fakeFunc{
		"proxy_on_request_headers": {
			def:    &fakeFuncDef{params: newI32Params(2)},
			result: []uint64{uint64(abi.ActionPause)},
		},
	}}

	d := NewDriver(abi.AbiVersion0_1_0)
	req := RequestHeaders(7, 3, 1) // v2-shaped request; driver must trim end_of_stream for v0.1.0
	hasReturn, value, err := d.Invoke(context.Background(), mod, req)
	require.NoError(t, err)
	require.True(t, hasReturn)
	assert.Equal(t, int32(abi.ActionPause), value)
	assert.Len(t, mod.funcs["proxy_on_request_headers"].lastParams, 2)
}

func TestDriverInvokeMissingExportFails(t *testing.T) {
	mod := &fakeModule{funcs: map[string]*fakeFunc{}}
	d := NewDriver(abi.AbiVersion0_2_0)

	_, _, err := d.Invoke(context.Background(), mod, Log(1))
	require.Error(t, err)
	var notFound *ErrExportNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestDriverInvokeNoneReturnKindIgnoresResult(t *testing.T) {
	mod := &fakeModule{funcs: map[string]*fakeFunc{
		"proxy_on_log": {def: &fakeFuncDef{params: newI32Params(1)}, result: nil},
	}}
	d := NewDriver(abi.AbiVersion0_2_0)

	hasReturn, _, err := d.Invoke(context.Background(), mod, Log(1))
	require.NoError(t, err)
	assert.False(t, hasReturn)
}
