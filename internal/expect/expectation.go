package expect

import (
	"fmt"
	"strings"

	"github.com/proxy-wasm/wasmtester/abi"
)

// Expectation is a single anticipated host-call, or (when constructed by a
// host-call handler mid-execution) the observed call being checked against
// one. Only the fields relevant to Kind are meaningful; the rest are zero.
type Expectation struct {
	Kind Kind

	// constraint fields
	Level         abi.LogLevel
	Message       string
	MapType       abi.MapType
	Key           string
	Value         string
	Pairs         []abi.HeaderPair
	Millis        uint64
	BufferType    abi.BufferType
	Offset        uint32
	Length        uint32
	Bytes         []byte
	StatusCode    int32
	Body          *string
	Headers       []abi.HeaderPair
	Trailers      []abi.HeaderPair
	GRPCStatus    int32
	Upstream      string
	TimeoutMillis uint64
	CAS           uint32
	QueueName     string
	VMID          string
	Token         uint32

	// scripted response, set by the Tester's sub-builders via Returning(...)
	HasReturn       bool
	ReturnValue     string
	ReturnPairs     []abi.HeaderPair
	ReturnBytes     []byte
	ReturnCalloutID uint32
	ReturnTimeNanos int64

	consumed bool
}

// Consumed reports whether this expectation has already been matched.
func (e *Expectation) Consumed() bool { return e.consumed }

// Describe renders a human-readable form of the expectation or observed
// call, used in failure messages (and in PrintExpectations).
func (e *Expectation) Describe() string {
	switch e.Kind {
	case KindLog:
		return fmt.Sprintf("log(%s, %q)", e.Level, e.Message)
	case KindGetHeaderMapPairs:
		return fmt.Sprintf("get_header_map_pairs(%s)", e.MapType)
	case KindSetHeaderMapPairs:
		return fmt.Sprintf("set_header_map_pairs(%s, %s)", e.MapType, describePairs(e.Pairs))
	case KindGetHeaderMapValue:
		return fmt.Sprintf("get_header_map_value(%s, %q)", e.MapType, e.Key)
	case KindAddHeaderMapValue:
		return fmt.Sprintf("add_header_map_value(%s, %q, %q)", e.MapType, e.Key, e.Value)
	case KindReplaceHeaderMapValue:
		return fmt.Sprintf("replace_header_map_value(%s, %q, %q)", e.MapType, e.Key, e.Value)
	case KindRemoveHeaderMapValue:
		return fmt.Sprintf("remove_header_map_value(%s, %q)", e.MapType, e.Key)
	case KindSendLocalResponse:
		body := "<nil>"
		if e.Body != nil {
			body = fmt.Sprintf("%q", *e.Body)
		}
		return fmt.Sprintf("send_local_response(%d, %s, %s, %d)", e.StatusCode, body, describePairs(e.Headers), e.GRPCStatus)
	case KindSetTickPeriodMillis:
		return fmt.Sprintf("set_tick_period_milliseconds(%d)", e.Millis)
	case KindGetCurrentTimeNanos:
		return "get_current_time_nanoseconds()"
	case KindGetBufferBytes:
		return fmt.Sprintf("get_buffer_bytes(%s, %d, %d)", e.BufferType, e.Offset, e.Length)
	case KindSetBufferBytes:
		return fmt.Sprintf("set_buffer_bytes(%s, %d, %d)", e.BufferType, e.Offset, e.Length)
	case KindHttpCall:
		return fmt.Sprintf("http_call(%q, %s, timeout=%dms)", e.Upstream, describePairs(e.Headers), e.TimeoutMillis)
	case KindSetSharedData:
		return fmt.Sprintf("set_shared_data(%q, %q, cas=%d)", e.Key, e.Value, e.CAS)
	case KindGetSharedData:
		return fmt.Sprintf("get_shared_data(%q)", e.Key)
	case KindRegisterSharedQueue:
		return fmt.Sprintf("register_shared_queue(%q)", e.QueueName)
	case KindResolveSharedQueue:
		return fmt.Sprintf("resolve_shared_queue(%q, %q)", e.VMID, e.QueueName)
	case KindEnqueueSharedQueue:
		return fmt.Sprintf("enqueue_shared_queue(%d)", e.Token)
	case KindDequeueSharedQueue:
		return fmt.Sprintf("dequeue_shared_queue(%d)", e.Token)
	default:
		return e.Kind.String()
	}
}

func describePairs(pairs []abi.HeaderPair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s=%s", p.Key, p.Value)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// matches reports whether an observed call (o) satisfies the constraints
// declared by this expectation. Both must share Kind; the caller checks that
// separately so that a kind mismatch can be reported distinctly from an
// argument mismatch.
func (e *Expectation) matches(o *Expectation) bool {
	switch e.Kind {
	case KindLog:
		return e.Level == o.Level && e.Message == o.Message
	case KindGetHeaderMapPairs:
		return e.MapType == o.MapType
	case KindSetHeaderMapPairs:
		return e.MapType == o.MapType && headerPairsEqual(e.Pairs, o.Pairs)
	case KindGetHeaderMapValue:
		return e.MapType == o.MapType && e.Key == o.Key
	case KindAddHeaderMapValue, KindReplaceHeaderMapValue:
		return e.MapType == o.MapType && e.Key == o.Key && e.Value == o.Value
	case KindRemoveHeaderMapValue:
		return e.MapType == o.MapType && e.Key == o.Key
	case KindSendLocalResponse:
		return e.StatusCode == o.StatusCode && bodyEqual(e.Body, o.Body) &&
			headerPairsEqual(e.Headers, o.Headers) && e.GRPCStatus == o.GRPCStatus
	case KindSetTickPeriodMillis:
		return e.Millis == o.Millis
	case KindGetCurrentTimeNanos:
		return true
	case KindGetBufferBytes, KindSetBufferBytes:
		return e.BufferType == o.BufferType && e.Offset == o.Offset && e.Length == o.Length
	case KindHttpCall:
		return e.Upstream == o.Upstream && headerPairsEqual(e.Headers, o.Headers) &&
			bodyEqual(e.Body, o.Body) && headerPairsEqual(e.Trailers, o.Trailers) &&
			e.TimeoutMillis == o.TimeoutMillis
	case KindSetSharedData:
		return e.Key == o.Key && e.Value == o.Value && e.CAS == o.CAS
	case KindGetSharedData:
		return e.Key == o.Key
	case KindRegisterSharedQueue:
		return e.QueueName == o.QueueName
	case KindResolveSharedQueue:
		return e.VMID == o.VMID && e.QueueName == o.QueueName
	case KindEnqueueSharedQueue, KindDequeueSharedQueue:
		return e.Token == o.Token
	default:
		return false
	}
}

func headerPairsEqual(a, b []abi.HeaderPair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func bodyEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
