package expect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxy-wasm/wasmtester/abi"
)

func TestHandleMatchesInDeclarationOrder(t *testing.T) {
	h := NewHandle()
	h.Staged.Add(&Expectation{Kind: KindLog, Level: abi.LogLevelTrace, Message: "first"})
	h.Staged.Add(&Expectation{Kind: KindLog, Level: abi.LogLevelTrace, Message: "second"})
	h.Promote()

	_, err := h.Match(&Expectation{Kind: KindLog, Level: abi.LogLevelTrace, Message: "first"})
	require.NoError(t, err)
	_, err = h.Match(&Expectation{Kind: KindLog, Level: abi.LogLevelTrace, Message: "second"})
	require.NoError(t, err)
	require.NoError(t, h.Assert())
}

func TestHandleOutOfOrderCallsFail(t *testing.T) {
	h := NewHandle()
	h.Staged.Add(&Expectation{Kind: KindLog, Message: "first"})
	h.Staged.Add(&Expectation{Kind: KindGetHeaderMapValue, MapType: abi.MapTypeHttpRequestHeaders, Key: ":path"})
	h.Promote()

	// Guest reverses the order: calls get_header_map_value before log.
	_, err := h.Match(&Expectation{Kind: KindGetHeaderMapValue, MapType: abi.MapTypeHttpRequestHeaders, Key: ":path"})
	require.Error(t, err)
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, mismatch.Expected, "log")
	assert.Contains(t, mismatch.Observed, "get_header_map_value")
}

func TestHandleArgumentMismatchFails(t *testing.T) {
	h := NewHandle()
	h.Staged.Add(&Expectation{Kind: KindLog, Level: abi.LogLevelTrace, Message: "expected"})
	h.Promote()

	_, err := h.Match(&Expectation{Kind: KindLog, Level: abi.LogLevelTrace, Message: "actual"})
	require.Error(t, err)
}

func TestHandleUnconsumedExpectationFails(t *testing.T) {
	h := NewHandle()
	h.Staged.Add(&Expectation{Kind: KindLog, Message: "never called"})
	h.Promote()

	err := h.Assert()
	require.Error(t, err)
	var unconsumed *UnconsumedError
	require.ErrorAs(t, err, &unconsumed)
	assert.Equal(t, 1, unconsumed.Unconsumed)
}

func TestHandleUnanticipatedCallFallsBackByDefault(t *testing.T) {
	h := NewHandle()
	h.Promote() // empty stage: nothing staged for this callback

	matched, err := h.Match(&Expectation{Kind: KindGetCurrentTimeNanos})
	require.NoError(t, err)
	assert.Nil(t, matched)
}

func TestHandleUnanticipatedCallFailsWhenStrict(t *testing.T) {
	h := NewHandle()
	h.MarkStrict(KindSendLocalResponse)
	h.Promote()

	_, err := h.Match(&Expectation{Kind: KindSendLocalResponse, StatusCode: 500})
	require.Error(t, err)
	var unexpected *UnexpectedCallError
	require.ErrorAs(t, err, &unexpected)
}

func TestHandleUpdateStageResetsForNextStep(t *testing.T) {
	h := NewHandle()
	h.Staged.Add(&Expectation{Kind: KindLog, Message: "x"})
	h.Promote()
	_, err := h.Match(&Expectation{Kind: KindLog, Message: "x"})
	require.NoError(t, err)
	require.NoError(t, h.Assert())

	h.UpdateStage()
	assert.Nil(t, h.Active)
	assert.Empty(t, h.Staged.Entries())
}

func TestHeaderMapPairsExpectationMatchesOrderedList(t *testing.T) {
	h := NewHandle()
	pairs := []abi.HeaderPair{{Key: ":method", Value: "GET"}, {Key: ":path", Value: "/hello"}}
	h.Staged.Add(&Expectation{Kind: KindGetHeaderMapPairs, MapType: abi.MapTypeHttpRequestHeaders, HasReturn: true, ReturnPairs: pairs})
	h.Promote()

	matched, err := h.Match(&Expectation{Kind: KindGetHeaderMapPairs, MapType: abi.MapTypeHttpRequestHeaders})
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, pairs, matched.ReturnPairs)
}
