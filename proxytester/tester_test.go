package proxytester

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxy-wasm/wasmtester/abi"
	"github.com/proxy-wasm/wasmtester/internal/callback"
	"github.com/proxy-wasm/wasmtester/internal/expect"
	"github.com/proxy-wasm/wasmtester/internal/wasmmem"
)

func TestCheckReturnNoneIgnoresValue(t *testing.T) {
	req := callback.Start()
	require.NoError(t, checkReturn(req, true, 42, abi.ReturnNone()))
	require.NoError(t, checkReturn(req, false, 0, abi.ReturnNone()))
}

func TestCheckReturnBoolMismatchFails(t *testing.T) {
	req := callback.VmStart(1, 0)
	err := checkReturn(req, true, 0, abi.ReturnBool(true))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpectation)
}

func TestCheckReturnBoolMatches(t *testing.T) {
	req := callback.VmStart(1, 0)
	require.NoError(t, checkReturn(req, true, 1, abi.ReturnBool(true)))
	require.NoError(t, checkReturn(req, true, 0, abi.ReturnBool(false)))
}

func TestCheckReturnActionMismatchFails(t *testing.T) {
	req := callback.RequestHeaders(2, 0, 0)
	err := checkReturn(req, true, int32(abi.ActionContinue), abi.ReturnAction(abi.ActionPause))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpectation)
}

func TestCheckReturnMissingValueFails(t *testing.T) {
	req := callback.RequestHeaders(2, 0, 0)
	err := checkReturn(req, false, 0, abi.ReturnAction(abi.ActionContinue))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExpectation)
}

func TestClassifyFatalMemoryErrorWrapsErrMemory(t *testing.T) {
	err := classifyFatal(&wasmmem.OutOfBoundsError{Op: "read_u32", Offset: 4, Length: 4, Size: 4})
	assert.ErrorIs(t, err, ErrMemory)
}

func TestClassifyFatalMismatchWrapsErrExpectation(t *testing.T) {
	err := classifyFatal(&expect.MismatchError{Expected: "log(...)", Observed: "log(...)"})
	assert.ErrorIs(t, err, ErrExpectation)
}

func TestWrapLoadPropagatesSentinelAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := wrapLoad("compiling", cause)
	assert.ErrorIs(t, err, ErrLoad)
	assert.Contains(t, err.Error(), "boom")
}
