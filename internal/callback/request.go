// Package callback drives exported guest callbacks: it knows each
// callback's exported name, how many scalar arguments to pass, which ABI
// version's arity applies to callbacks that evolved across ABI revisions,
// and how to interpret the returned value against its declared ReturnKind.
package callback

import (
	"fmt"

	"github.com/proxy-wasm/wasmtester/abi"
)

// RequestKind names one exported callback the façade can invoke. Callbacks
// whose arity changed between ABI revisions (request/response headers) keep
// a single logical Kind here; the Driver resolves the version-correct arity
// at load time so the façade never has to expose two call shapes.
type RequestKind int

const (
	RequestKindStart RequestKind = iota
	RequestKindContextCreate
	RequestKindDone
	RequestKindLog
	RequestKindDelete
	RequestKindVmStart
	RequestKindConfigure
	RequestKindTick
	RequestKindQueueReady
	RequestKindNewConnection
	RequestKindDownstreamData
	RequestKindDownstreamConnectionClose
	RequestKindUpstreamData
	RequestKindUpstreamConnectionClose
	RequestKindRequestHeaders
	RequestKindRequestBody
	RequestKindRequestTrailers
	RequestKindResponseHeaders
	RequestKindResponseBody
	RequestKindResponseTrailers
	RequestKindHttpCallResponse
	RequestKindForeignFunction
)

var requestKindNames = map[RequestKind]string{
	RequestKindStart:                     "_start",
	RequestKindContextCreate:             "proxy_on_context_create",
	RequestKindDone:                      "proxy_on_done",
	RequestKindLog:                       "proxy_on_log",
	RequestKindDelete:                    "proxy_on_delete",
	RequestKindVmStart:                   "proxy_on_vm_start",
	RequestKindConfigure:                 "proxy_on_configure",
	RequestKindTick:                      "proxy_on_tick",
	RequestKindQueueReady:                "proxy_on_queue_ready",
	RequestKindNewConnection:             "proxy_on_new_connection",
	RequestKindDownstreamData:            "proxy_on_downstream_data",
	RequestKindDownstreamConnectionClose: "proxy_on_downstream_connection_close",
	RequestKindUpstreamData:              "proxy_on_upstream_data",
	RequestKindUpstreamConnectionClose:   "proxy_on_upstream_connection_close",
	RequestKindRequestHeaders:            "proxy_on_request_headers",
	RequestKindRequestBody:               "proxy_on_request_body",
	RequestKindRequestTrailers:           "proxy_on_request_trailers",
	RequestKindResponseHeaders:           "proxy_on_response_headers",
	RequestKindResponseBody:              "proxy_on_response_body",
	RequestKindResponseTrailers:          "proxy_on_response_trailers",
	RequestKindHttpCallResponse:          "proxy_on_http_call_response",
	RequestKindForeignFunction:           "proxy_on_foreign_function",
}

func (k RequestKind) String() string {
	if name, ok := requestKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("RequestKind(%d)", int(k))
}

// maxArgs is the widest scalar argument tuple among all callbacks
// (proxy_on_http_call_response takes 5).
const maxArgs = 5

// Request is a pending callback invocation: which export to call and its
// scalar argument tuple. Args beyond NArgs are never read; for
// ABI-versioned callbacks NArgs itself is decided by the Driver, not by the
// caller, so the façade can always populate the widest (v2) tuple.
type Request struct {
	Kind  RequestKind
	Args  [maxArgs]int32
	NArgs int
}

func newRequest(kind RequestKind, args ...int32) Request {
	var r Request
	r.Kind = kind
	r.NArgs = len(args)
	copy(r.Args[:], args)
	return r
}

func Start() Request { return newRequest(RequestKindStart) }

func ContextCreate(rootCtx, parentCtx int32) Request {
	return newRequest(RequestKindContextCreate, rootCtx, parentCtx)
}

func Done(ctxID int32) Request { return newRequest(RequestKindDone, ctxID) }

func Log(ctxID int32) Request { return newRequest(RequestKindLog, ctxID) }

func Delete(ctxID int32) Request { return newRequest(RequestKindDelete, ctxID) }

func VmStart(ctxID, vmConfigSize int32) Request {
	return newRequest(RequestKindVmStart, ctxID, vmConfigSize)
}

func Configure(ctxID, pluginConfigSize int32) Request {
	return newRequest(RequestKindConfigure, ctxID, pluginConfigSize)
}

func Tick(ctxID int32) Request { return newRequest(RequestKindTick, ctxID) }

func QueueReady(ctxID, queueID int32) Request {
	return newRequest(RequestKindQueueReady, ctxID, queueID)
}

func NewConnection(ctxID int32) Request { return newRequest(RequestKindNewConnection, ctxID) }

func DownstreamData(ctxID, dataSize, endOfStream int32) Request {
	return newRequest(RequestKindDownstreamData, ctxID, dataSize, endOfStream)
}

func DownstreamConnectionClose(ctxID int32, peer abi.PeerType) Request {
	return newRequest(RequestKindDownstreamConnectionClose, ctxID, int32(peer))
}

func UpstreamData(ctxID, dataSize, endOfStream int32) Request {
	return newRequest(RequestKindUpstreamData, ctxID, dataSize, endOfStream)
}

func UpstreamConnectionClose(ctxID int32, peer abi.PeerType) Request {
	return newRequest(RequestKindUpstreamConnectionClose, ctxID, int32(peer))
}

// RequestHeaders always carries the v2-shaped tuple; the Driver trims the
// trailing end_of_stream argument when the module was detected as v0.1.0.
func RequestHeaders(ctxID, numHeaders, endOfStream int32) Request {
	return newRequest(RequestKindRequestHeaders, ctxID, numHeaders, endOfStream)
}

func RequestBody(ctxID, bodySize, endOfStream int32) Request {
	return newRequest(RequestKindRequestBody, ctxID, bodySize, endOfStream)
}

func RequestTrailers(ctxID, numTrailers int32) Request {
	return newRequest(RequestKindRequestTrailers, ctxID, numTrailers)
}

// ResponseHeaders mirrors RequestHeaders. It carries its own Kind, distinct
// from RequestKindRequestHeaders, so a response-headers invocation is never
// recorded under the request-headers tag.
func ResponseHeaders(ctxID, numHeaders, endOfStream int32) Request {
	return newRequest(RequestKindResponseHeaders, ctxID, numHeaders, endOfStream)
}

func ResponseBody(ctxID, bodySize, endOfStream int32) Request {
	return newRequest(RequestKindResponseBody, ctxID, bodySize, endOfStream)
}

func ResponseTrailers(ctxID, numTrailers int32) Request {
	return newRequest(RequestKindResponseTrailers, ctxID, numTrailers)
}

func HttpCallResponse(ctxID, calloutID, numHeaders, bodySize, numTrailers int32) Request {
	return newRequest(RequestKindHttpCallResponse, ctxID, calloutID, numHeaders, bodySize, numTrailers)
}

func ForeignFunction(rootCtxID, functionID, dataSize int32) Request {
	return newRequest(RequestKindForeignFunction, rootCtxID, functionID, dataSize)
}
