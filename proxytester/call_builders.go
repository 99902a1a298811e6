package proxytester

import (
	"github.com/proxy-wasm/wasmtester/abi"
	"github.com/proxy-wasm/wasmtester/internal/callback"
)

// Each Call* method queues the named callback's invocation. Chain Expect*
// calls before it (or after - order between the two doesn't matter, since
// Call* only records the pending request and Expect* only appends to the
// staged expectation list) and finish the step
// with ExecuteAndExpect.

func (t *Tester) CallStart() *Tester { return t.queue(callback.Start()) }

func (t *Tester) CallContextCreate(rootCtx, parentCtx int32) *Tester {
	return t.queue(callback.ContextCreate(rootCtx, parentCtx))
}

func (t *Tester) CallDone(ctxID int32) *Tester { return t.queue(callback.Done(ctxID)) }

func (t *Tester) CallLog(ctxID int32) *Tester { return t.queue(callback.Log(ctxID)) }

func (t *Tester) CallDelete(ctxID int32) *Tester { return t.queue(callback.Delete(ctxID)) }

func (t *Tester) CallVmStart(ctxID, vmConfigSize int32) *Tester {
	return t.queue(callback.VmStart(ctxID, vmConfigSize))
}

func (t *Tester) CallConfigure(ctxID, pluginConfigSize int32) *Tester {
	return t.queue(callback.Configure(ctxID, pluginConfigSize))
}

func (t *Tester) CallTick(ctxID int32) *Tester { return t.queue(callback.Tick(ctxID)) }

func (t *Tester) CallQueueReady(ctxID, queueID int32) *Tester {
	return t.queue(callback.QueueReady(ctxID, queueID))
}

func (t *Tester) CallNewConnection(ctxID int32) *Tester {
	return t.queue(callback.NewConnection(ctxID))
}

func (t *Tester) CallDownstreamData(ctxID, dataSize, endOfStream int32) *Tester {
	return t.queue(callback.DownstreamData(ctxID, dataSize, endOfStream))
}

func (t *Tester) CallDownstreamConnectionClose(ctxID int32, peer abi.PeerType) *Tester {
	return t.queue(callback.DownstreamConnectionClose(ctxID, peer))
}

func (t *Tester) CallUpstreamData(ctxID, dataSize, endOfStream int32) *Tester {
	return t.queue(callback.UpstreamData(ctxID, dataSize, endOfStream))
}

func (t *Tester) CallUpstreamConnectionClose(ctxID int32, peer abi.PeerType) *Tester {
	return t.queue(callback.UpstreamConnectionClose(ctxID, peer))
}

func (t *Tester) CallRequestHeaders(ctxID, numHeaders, endOfStream int32) *Tester {
	return t.queue(callback.RequestHeaders(ctxID, numHeaders, endOfStream))
}

func (t *Tester) CallRequestBody(ctxID, bodySize, endOfStream int32) *Tester {
	return t.queue(callback.RequestBody(ctxID, bodySize, endOfStream))
}

func (t *Tester) CallRequestTrailers(ctxID, numTrailers int32) *Tester {
	return t.queue(callback.RequestTrailers(ctxID, numTrailers))
}

func (t *Tester) CallResponseHeaders(ctxID, numHeaders, endOfStream int32) *Tester {
	return t.queue(callback.ResponseHeaders(ctxID, numHeaders, endOfStream))
}

func (t *Tester) CallResponseBody(ctxID, bodySize, endOfStream int32) *Tester {
	return t.queue(callback.ResponseBody(ctxID, bodySize, endOfStream))
}

func (t *Tester) CallResponseTrailers(ctxID, numTrailers int32) *Tester {
	return t.queue(callback.ResponseTrailers(ctxID, numTrailers))
}

func (t *Tester) CallHttpCallResponse(ctxID, calloutID, numHeaders, bodySize, numTrailers int32) *Tester {
	return t.queue(callback.HttpCallResponse(ctxID, calloutID, numHeaders, bodySize, numTrailers))
}

func (t *Tester) CallForeignFunction(rootCtxID, functionID, dataSize int32) *Tester {
	return t.queue(callback.ForeignFunction(rootCtxID, functionID, dataSize))
}
