package expect

import "fmt"

// Kind names one host-call family a guest can invoke. These mirror the
// `proxy_*` imports the harness is able to link, one-to-one.
type Kind int

const (
	KindLog Kind = iota
	KindGetHeaderMapPairs
	KindSetHeaderMapPairs
	KindGetHeaderMapValue
	KindAddHeaderMapValue
	KindReplaceHeaderMapValue
	KindRemoveHeaderMapValue
	KindSendLocalResponse
	KindSetTickPeriodMillis
	KindGetCurrentTimeNanos
	KindGetBufferBytes
	KindSetBufferBytes
	KindHttpCall
	KindSetSharedData
	KindGetSharedData
	KindRegisterSharedQueue
	KindResolveSharedQueue
	KindEnqueueSharedQueue
	KindDequeueSharedQueue
)

var kindNames = map[Kind]string{
	KindLog:                   "log",
	KindGetHeaderMapPairs:     "get_header_map_pairs",
	KindSetHeaderMapPairs:     "set_header_map_pairs",
	KindGetHeaderMapValue:     "get_header_map_value",
	KindAddHeaderMapValue:     "add_header_map_value",
	KindReplaceHeaderMapValue: "replace_header_map_value",
	KindRemoveHeaderMapValue:  "remove_header_map_value",
	KindSendLocalResponse:     "send_local_response",
	KindSetTickPeriodMillis:   "set_tick_period_milliseconds",
	KindGetCurrentTimeNanos:   "get_current_time_nanoseconds",
	KindGetBufferBytes:        "get_buffer_bytes",
	KindSetBufferBytes:        "set_buffer_bytes",
	KindHttpCall:              "http_call",
	KindSetSharedData:         "set_shared_data",
	KindGetSharedData:         "get_shared_data",
	KindRegisterSharedQueue:   "register_shared_queue",
	KindResolveSharedQueue:    "resolve_shared_queue",
	KindEnqueueSharedQueue:    "enqueue_shared_queue",
	KindDequeueSharedQueue:    "dequeue_shared_queue",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}
