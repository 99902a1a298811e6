package proxytester

import (
	"github.com/proxy-wasm/wasmtester/abi"
	"github.com/proxy-wasm/wasmtester/internal/expect"
)

// stage appends a fully-built expectation directly, for host-calls with no
// scripted response (match-only).
func (t *Tester) stage(e *expect.Expectation) *Tester {
	t.exp.Staged.Add(e)
	return t
}

func (t *Tester) ExpectLog(level abi.LogLevel, message string) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindLog, Level: level, Message: message})
}

func (t *Tester) ExpectSetHeaderMapPairs(mt abi.MapType, pairs []abi.HeaderPair) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindSetHeaderMapPairs, MapType: mt, Pairs: pairs})
}

func (t *Tester) ExpectAddHeaderMapValue(mt abi.MapType, key, value string) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindAddHeaderMapValue, MapType: mt, Key: key, Value: value})
}

func (t *Tester) ExpectReplaceHeaderMapValue(mt abi.MapType, key, value string) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindReplaceHeaderMapValue, MapType: mt, Key: key, Value: value})
}

func (t *Tester) ExpectRemoveHeaderMapValue(mt abi.MapType, key string) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindRemoveHeaderMapValue, MapType: mt, Key: key})
}

func (t *Tester) ExpectSendLocalResponse(statusCode int32, body *string, headers []abi.HeaderPair, grpcStatus int32) *Tester {
	return t.stage(&expect.Expectation{
		Kind: expect.KindSendLocalResponse, StatusCode: statusCode, Body: body,
		Headers: headers, GRPCStatus: grpcStatus,
	})
}

func (t *Tester) ExpectSetTickPeriodMillis(millis uint64) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindSetTickPeriodMillis, Millis: millis})
}

func (t *Tester) ExpectSetBufferBytes(bt abi.BufferType, offset, length uint32) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindSetBufferBytes, BufferType: bt, Offset: offset, Length: length})
}

func (t *Tester) ExpectSetSharedData(key, value string, cas uint32) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindSetSharedData, Key: key, Value: value, CAS: cas})
}

func (t *Tester) ExpectGetSharedData(key string) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindGetSharedData, Key: key})
}

func (t *Tester) ExpectRegisterSharedQueue(name string) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindRegisterSharedQueue, QueueName: name})
}

func (t *Tester) ExpectResolveSharedQueue(vmID, name string) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindResolveSharedQueue, VMID: vmID, QueueName: name})
}

func (t *Tester) ExpectEnqueueSharedQueue(token uint32) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindEnqueueSharedQueue, Token: token})
}

func (t *Tester) ExpectDequeueSharedQueue(token uint32) *Tester {
	return t.stage(&expect.Expectation{Kind: expect.KindDequeueSharedQueue, Token: token})
}

/* ------------------------ scripted-response sub-builders ------------------------ */

// open marks a sub-builder as outstanding; ExecuteAndExpect refuses to run
// while the flag is set, catching an Expect*(...) call a test forgot to
// finalize with Returning(...). The flag is a single bool that any
// Returning clears, so an unfinalized sub-builder followed by a finalized
// one is not caught.
func (t *Tester) open() { t.openSubBuilder = true }

func (t *Tester) close(e *expect.Expectation) *Tester {
	t.exp.Staged.Add(e)
	t.openSubBuilder = false
	return t
}

// ExpectGetHeaderMapValue begins a scripted proxy_get_header_map_value
// expectation; finalize with Returning.
func (t *Tester) ExpectGetHeaderMapValue(mt abi.MapType, key string) *ExpectGetHeaderMapValue {
	t.open()
	return &ExpectGetHeaderMapValue{t: t, e: &expect.Expectation{Kind: expect.KindGetHeaderMapValue, MapType: mt, Key: key}}
}

type ExpectGetHeaderMapValue struct {
	t *Tester
	e *expect.Expectation
}

// Returning scripts the value the mock host returns for this call.
func (b *ExpectGetHeaderMapValue) Returning(value string) *Tester {
	b.e.HasReturn = true
	b.e.ReturnValue = value
	return b.t.close(b.e)
}

// ExpectGetHeaderMapPairs begins a scripted proxy_get_header_map_pairs
// expectation; finalize with Returning.
func (t *Tester) ExpectGetHeaderMapPairs(mt abi.MapType) *ExpectGetHeaderMapPairs {
	t.open()
	return &ExpectGetHeaderMapPairs{t: t, e: &expect.Expectation{Kind: expect.KindGetHeaderMapPairs, MapType: mt}}
}

type ExpectGetHeaderMapPairs struct {
	t *Tester
	e *expect.Expectation
}

func (b *ExpectGetHeaderMapPairs) Returning(pairs []abi.HeaderPair) *Tester {
	b.e.HasReturn = true
	b.e.ReturnPairs = pairs
	return b.t.close(b.e)
}

// ExpectGetBufferBytes begins a scripted proxy_get_buffer_bytes
// expectation; finalize with Returning.
func (t *Tester) ExpectGetBufferBytes(bt abi.BufferType, offset, length uint32) *ExpectGetBufferBytes {
	t.open()
	return &ExpectGetBufferBytes{t: t, e: &expect.Expectation{Kind: expect.KindGetBufferBytes, BufferType: bt, Offset: offset, Length: length}}
}

type ExpectGetBufferBytes struct {
	t *Tester
	e *expect.Expectation
}

func (b *ExpectGetBufferBytes) Returning(data []byte) *Tester {
	b.e.HasReturn = true
	b.e.ReturnBytes = data
	return b.t.close(b.e)
}

// ExpectHttpCall begins a scripted proxy_http_call expectation; finalize
// with Returning to script the callout token the mock host hands back.
func (t *Tester) ExpectHttpCall(upstream string, headers []abi.HeaderPair, body *string, trailers []abi.HeaderPair, timeoutMillis uint64) *ExpectHttpCall {
	t.open()
	return &ExpectHttpCall{t: t, e: &expect.Expectation{
		Kind: expect.KindHttpCall, Upstream: upstream, Headers: headers, Body: body,
		Trailers: trailers, TimeoutMillis: timeoutMillis,
	}}
}

type ExpectHttpCall struct {
	t *Tester
	e *expect.Expectation
}

func (b *ExpectHttpCall) Returning(calloutID uint32) *Tester {
	b.e.HasReturn = true
	b.e.ReturnCalloutID = calloutID
	return b.t.close(b.e)
}

// ExpectGetCurrentTimeNanos begins a scripted
// proxy_get_current_time_nanoseconds expectation; finalize with Returning.
func (t *Tester) ExpectGetCurrentTimeNanos() *ExpectGetCurrentTimeNanos {
	t.open()
	return &ExpectGetCurrentTimeNanos{t: t, e: &expect.Expectation{Kind: expect.KindGetCurrentTimeNanos}}
}

type ExpectGetCurrentTimeNanos struct {
	t *Tester
	e *expect.Expectation
}

func (b *ExpectGetCurrentTimeNanos) Returning(nanos int64) *Tester {
	b.e.HasReturn = true
	b.e.ReturnTimeNanos = nanos
	return b.t.close(b.e)
}

/* ----------------------------- sticky host defaults ----------------------------- */

func (t *Tester) SetDefaultTickPeriodMillis(millis uint64) *Tester {
	t.host.State().SetTickPeriodMillis(millis)
	return t
}

func (t *Tester) ResetDefaultTickPeriodMillis() *Tester {
	t.host.State().ResetTickPeriodMillis()
	return t
}

func (t *Tester) SetDefaultBufferBytes(bt abi.BufferType, data []byte) *Tester {
	t.host.State().SetBufferBytes(bt, data)
	return t
}

func (t *Tester) ResetDefaultBufferBytes() *Tester {
	t.host.State().ResetBufferBytes()
	return t
}

func (t *Tester) SetDefaultHeaderMapPairs(mt abi.MapType, pairs []abi.HeaderPair) *Tester {
	t.host.State().SetHeaderMapPairs(mt, pairs)
	return t
}

func (t *Tester) ResetDefaultHeaderMapPairs() *Tester {
	t.host.State().ResetHeaderMapPairs()
	return t
}
