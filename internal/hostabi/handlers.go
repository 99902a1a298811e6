package hostabi

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/proxy-wasm/wasmtester/abi"
	"github.com/proxy-wasm/wasmtester/internal/expect"
	"github.com/proxy-wasm/wasmtester/internal/wasmmem"
)

// mustMatch checks observed against the active expectation stage. A fatal
// mismatch is recorded on e and nil is returned so the caller can still
// produce a well-formed (if meaningless) response and let the guest run to
// completion; the recorded error fails the test once the callback returns.
func mustMatch(e *Env, observed *expect.Expectation) *expect.Expectation {
	e.trace.Call(observed.Kind.String())
	e.trace.Args("%s", observed.Describe())
	matched, err := e.exp.Match(observed)
	if err != nil {
		e.recordErr(err)
		return nil
	}
	return matched
}

func readString(e *Env, b *wasmmem.Bridge, addr, length uint32) string {
	s, err := b.ReadString(addr, length)
	if err != nil {
		e.recordErr(err)
		return ""
	}
	return s
}

func readBytes(e *Env, b *wasmmem.Bridge, addr, length uint32) []byte {
	data, err := b.ReadBytes(addr, length)
	if err != nil {
		e.recordErr(err)
		return nil
	}
	return data
}

func readHeaderMap(e *Env, b *wasmmem.Bridge, addr, length uint32) []abi.HeaderPair {
	if length == 0 {
		return nil
	}
	raw := readBytes(e, b, addr, length)
	if e.FirstError() != nil {
		return nil
	}
	pairs, err := wasmmem.DeserializeHeaderMap(raw)
	if err != nil {
		e.recordErr(err)
		return nil
	}
	return pairs
}

// writeOutBytes allocates len(data) bytes in the guest, writes data into it,
// and writes the (addr, len) pair to the two guest-supplied out pointers.
func writeOutBytes(e *Env, b *wasmmem.Bridge, data []byte, outAddrAddr, outSizeAddr uint32) {
	addr, err := b.AllocInGuest(uint32(len(data)))
	if err != nil {
		e.recordErr(err)
		return
	}
	if err := b.WriteBytes(addr, data); err != nil {
		e.recordErr(err)
		return
	}
	if err := b.WriteU32(outAddrAddr, addr); err != nil {
		e.recordErr(err)
		return
	}
	if err := b.WriteU32(outSizeAddr, uint32(len(data))); err != nil {
		e.recordErr(err)
		return
	}
}

func writeU32(e *Env, b *wasmmem.Bridge, addr, value uint32) {
	if err := b.WriteU32(addr, value); err != nil {
		e.recordErr(err)
	}
}

func respond(e *Env, status abi.Status) uint32 {
	e.trace.Return("%s", status)
	return uint32(status)
}

/* --------------------------------- log ---------------------------------- */

func registerLog(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, level int32, msgAddr, msgLen uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		msg := readString(e, b, msgAddr, msgLen)
		mustMatch(e, &expect.Expectation{Kind: expect.KindLog, Level: abi.LogLevel(level), Message: msg})
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_log")
}

/* ------------------------------ header maps ------------------------------ */

func registerGetHeaderMapValue(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, mapType int32, keyAddr, keyLen, outValueAddrAddr, outValueSizeAddr uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		key := readString(e, b, keyAddr, keyLen)
		mt := abi.MapType(mapType)

		matched := mustMatch(e, &expect.Expectation{Kind: expect.KindGetHeaderMapValue, MapType: mt, Key: key})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}

		value, ok := "", false
		if matched != nil && matched.HasReturn {
			value, ok = matched.ReturnValue, true
		} else {
			value, ok = e.host.State().HeaderMapValue(mt, key)
		}
		if !ok {
			return respond(e, abi.StatusNotFound)
		}
		writeOutBytes(e, b, []byte(value), outValueAddrAddr, outValueSizeAddr)
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_get_header_map_value")
}

func registerGetHeaderMapPairs(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, mapType int32, outAddrAddr, outSizeAddr uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		mt := abi.MapType(mapType)

		matched := mustMatch(e, &expect.Expectation{Kind: expect.KindGetHeaderMapPairs, MapType: mt})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}

		var pairs []abi.HeaderPair
		if matched != nil && matched.HasReturn {
			pairs = matched.ReturnPairs
		} else {
			pairs = e.host.State().HeaderMaps[mt]
		}
		writeOutBytes(e, b, wasmmem.SerializeHeaderMap(pairs), outAddrAddr, outSizeAddr)
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_get_header_map_pairs")
}

func registerSetHeaderMapPairs(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, mapType int32, addr, length uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		mt := abi.MapType(mapType)
		pairs := readHeaderMap(e, b, addr, length)

		mustMatch(e, &expect.Expectation{Kind: expect.KindSetHeaderMapPairs, MapType: mt, Pairs: pairs})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		e.host.State().SetHeaderMapPairs(mt, pairs)
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_set_header_map_pairs")
}

func registerAddHeaderMapValue(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, mapType int32, keyAddr, keyLen, valueAddr, valueLen uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		mt := abi.MapType(mapType)
		key := readString(e, b, keyAddr, keyLen)
		value := readString(e, b, valueAddr, valueLen)

		mustMatch(e, &expect.Expectation{Kind: expect.KindAddHeaderMapValue, MapType: mt, Key: key, Value: value})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		e.host.State().AddHeaderMapValue(mt, key, value)
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_add_header_map_value")
}

func registerReplaceHeaderMapValue(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, mapType int32, keyAddr, keyLen, valueAddr, valueLen uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		mt := abi.MapType(mapType)
		key := readString(e, b, keyAddr, keyLen)
		value := readString(e, b, valueAddr, valueLen)

		mustMatch(e, &expect.Expectation{Kind: expect.KindReplaceHeaderMapValue, MapType: mt, Key: key, Value: value})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		e.host.State().ReplaceHeaderMapValue(mt, key, value)
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_replace_header_map_value")
}

func registerRemoveHeaderMapValue(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, mapType int32, keyAddr, keyLen uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		mt := abi.MapType(mapType)
		key := readString(e, b, keyAddr, keyLen)

		mustMatch(e, &expect.Expectation{Kind: expect.KindRemoveHeaderMapValue, MapType: mt, Key: key})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		e.host.State().RemoveHeaderMapValue(mt, key)
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_remove_header_map_value")
}

/* ---------------------------- local response ----------------------------- */

func registerSendLocalResponse(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, statusCode int32, statusMsgAddr, statusMsgLen, bodyAddr, bodyLen, headersAddr, headersLen uint32, grpcStatus int32) uint32 {
		b := wasmmem.New(ctx, mod)
		_ = readString(e, b, statusMsgAddr, statusMsgLen) // accepted but not part of the match tuple

		var body *string
		if bodyLen > 0 {
			s := readString(e, b, bodyAddr, bodyLen)
			body = &s
		}
		headers := readHeaderMap(e, b, headersAddr, headersLen)

		mustMatch(e, &expect.Expectation{
			Kind: expect.KindSendLocalResponse, StatusCode: statusCode, Body: body,
			Headers: headers, GRPCStatus: grpcStatus,
		})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		e.host.State().NoteLocalResponseSent()
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_send_local_response")
}

/* ------------------------------- tick period ------------------------------ */

func registerSetTickPeriodMillis(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(_ context.Context, _ api.Module, millis uint32) uint32 {
		mustMatch(e, &expect.Expectation{Kind: expect.KindSetTickPeriodMillis, Millis: uint64(millis)})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		e.host.State().SetTickPeriodMillis(uint64(millis))
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_set_tick_period_milliseconds")
}

/* -------------------------------- clock ----------------------------------- */

func registerGetCurrentTimeNanos(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, outAddr uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		matched := mustMatch(e, &expect.Expectation{Kind: expect.KindGetCurrentTimeNanos})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		var nanos int64
		if matched != nil && matched.HasReturn {
			nanos = matched.ReturnTimeNanos
		}
		if err := b.WriteU64(outAddr, uint64(nanos)); err != nil {
			e.recordErr(err)
			return respond(e, abi.StatusInternalFailure)
		}
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_get_current_time_nanoseconds")
}

/* -------------------------------- buffers ---------------------------------- */

func registerGetBufferBytes(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, bufferType int32, offset, length, outAddrAddr, outSizeAddr uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		bt := abi.BufferType(bufferType)

		matched := mustMatch(e, &expect.Expectation{Kind: expect.KindGetBufferBytes, BufferType: bt, Offset: offset, Length: length})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}

		var data []byte
		if matched != nil && matched.HasReturn {
			data = matched.ReturnBytes
		} else {
			buf := e.host.State().Buffers[bt]
			end := uint64(offset) + uint64(length)
			if end > uint64(len(buf)) {
				return respond(e, abi.StatusBadArgument)
			}
			data = buf[offset:end]
		}
		writeOutBytes(e, b, data, outAddrAddr, outSizeAddr)
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_get_buffer_bytes")
}

func registerSetBufferBytes(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, bufferType int32, offset, length, dataAddr, dataLen uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		bt := abi.BufferType(bufferType)
		data := readBytes(e, b, dataAddr, dataLen)

		mustMatch(e, &expect.Expectation{Kind: expect.KindSetBufferBytes, BufferType: bt, Offset: offset, Length: length})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}

		buf := e.host.State().Buffers[bt]
		end := uint64(offset) + uint64(length)
		if end > uint64(len(buf)) {
			grown := make([]byte, end)
			copy(grown, buf)
			buf = grown
		}
		copy(buf[offset:end], data)
		e.host.State().SetBufferBytes(bt, buf)
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_set_buffer_bytes")
}

/* ------------------------------- http call --------------------------------- */

func registerHttpCall(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, upstreamAddr, upstreamLen, headersAddr, headersLen, bodyAddr, bodyLen, trailersAddr, trailersLen, timeoutMillis, outTokenAddr uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		upstream := readString(e, b, upstreamAddr, upstreamLen)
		headers := readHeaderMap(e, b, headersAddr, headersLen)
		trailers := readHeaderMap(e, b, trailersAddr, trailersLen)
		var body *string
		if bodyLen > 0 {
			s := readString(e, b, bodyAddr, bodyLen)
			body = &s
		}

		matched := mustMatch(e, &expect.Expectation{
			Kind: expect.KindHttpCall, Upstream: upstream, Headers: headers, Body: body,
			Trailers: trailers, TimeoutMillis: uint64(timeoutMillis),
		})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}

		var calloutID uint32
		if matched != nil && matched.HasReturn {
			calloutID = matched.ReturnCalloutID
		}
		writeU32(e, b, outTokenAddr, calloutID)
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_http_call")
}

/* ------------------------------- shared data -------------------------------- */

func registerSetSharedData(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, keyAddr, keyLen, valueAddr, valueLen, cas uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		key := readString(e, b, keyAddr, keyLen)
		value := readString(e, b, valueAddr, valueLen)

		mustMatch(e, &expect.Expectation{Kind: expect.KindSetSharedData, Key: key, Value: value, CAS: cas})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		return respond(e, e.host.State().SetSharedData(key, value, cas))
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_set_shared_data")
}

func registerGetSharedData(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, keyAddr, keyLen, outValueAddrAddr, outValueSizeAddr, outCasAddr uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		key := readString(e, b, keyAddr, keyLen)

		mustMatch(e, &expect.Expectation{Kind: expect.KindGetSharedData, Key: key})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}

		value, cas, status := e.host.State().GetSharedData(key)
		if status != abi.StatusOK {
			return respond(e, status)
		}
		writeOutBytes(e, b, []byte(value), outValueAddrAddr, outValueSizeAddr)
		writeU32(e, b, outCasAddr, cas)
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_get_shared_data")
}

/* ------------------------------ shared queues -------------------------------- */

func registerRegisterSharedQueue(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, nameAddr, nameLen, outTokenAddr uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		name := readString(e, b, nameAddr, nameLen)

		mustMatch(e, &expect.Expectation{Kind: expect.KindRegisterSharedQueue, QueueName: name})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		token := e.host.State().RegisterSharedQueue(name)
		writeU32(e, b, outTokenAddr, token)
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_register_shared_queue")
}

func registerResolveSharedQueue(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, vmIDAddr, vmIDLen, nameAddr, nameLen, outTokenAddr uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		vmID := readString(e, b, vmIDAddr, vmIDLen)
		name := readString(e, b, nameAddr, nameLen)

		mustMatch(e, &expect.Expectation{Kind: expect.KindResolveSharedQueue, VMID: vmID, QueueName: name})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		token, status := e.host.State().ResolveSharedQueue(vmID, name)
		if status != abi.StatusOK {
			return respond(e, status)
		}
		writeU32(e, b, outTokenAddr, token)
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_resolve_shared_queue")
}

func registerEnqueueSharedQueue(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, token, dataAddr, dataLen uint32) uint32 {
		b := wasmmem.New(ctx, mod)
		data := readBytes(e, b, dataAddr, dataLen)

		mustMatch(e, &expect.Expectation{Kind: expect.KindEnqueueSharedQueue, Token: token})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		return respond(e, e.host.State().EnqueueSharedQueue(token, data))
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_enqueue_shared_queue")
}

func registerDequeueSharedQueue(e *Env, builder wazero.HostModuleBuilder) {
	fn := func(ctx context.Context, mod api.Module, token, outAddrAddr, outSizeAddr uint32) uint32 {
		b := wasmmem.New(ctx, mod)

		mustMatch(e, &expect.Expectation{Kind: expect.KindDequeueSharedQueue, Token: token})
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		data, status := e.host.State().DequeueSharedQueue(token)
		if status != abi.StatusOK {
			return respond(e, status)
		}
		writeOutBytes(e, b, data, outAddrAddr, outSizeAddr)
		if e.FirstError() != nil {
			return respond(e, abi.StatusInternalFailure)
		}
		return respond(e, abi.StatusOK)
	}
	builder.NewFunctionBuilder().WithFunc(fn).Export("proxy_dequeue_shared_queue")
}
