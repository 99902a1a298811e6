// Package hostabi builds the "env" host module: one Go-backed handler per
// proxy_* host-call a guest may import, each decoding its arguments from
// guest memory, matching the observed call against the active expectation
// stage, and responding from either a scripted return or the mock host
// state's default.
package hostabi

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/proxy-wasm/wasmtester/internal/expect"
	"github.com/proxy-wasm/wasmtester/internal/hoststate"
	"github.com/proxy-wasm/wasmtester/internal/trace"
)

// Env is the shared state every handler closure captures at Link time. A
// handler that hits a fatal condition (expectation mismatch, out-of-bounds
// memory access) records it here instead of panicking across the Wasm call
// boundary, so the façade can inspect it with ordinary error values once
// the callback invocation returns.
type Env struct {
	exp   *expect.Handle
	host  *hoststate.Handle
	trace *trace.Tracer

	firstErr error
}

// recordErr keeps the first fatal error seen during the in-flight callback;
// later ones are discarded and don't override it.
func (e *Env) recordErr(err error) {
	if e.firstErr == nil {
		e.firstErr = err
	}
}

// FirstError returns the first fatal error recorded since the last ClearError.
func (e *Env) FirstError() error { return e.firstErr }

// ClearError resets the recorded error, called before each callback invocation.
func (e *Env) ClearError() { e.firstErr = nil }

// registrar attaches one named host-call's handler to builder.
type registrar func(e *Env, builder wazero.HostModuleBuilder)

// registrars maps each proxy_* import name this harness knows how to serve
// to the function that registers its handler.
var registrars = map[string]registrar{
	"proxy_log":                          registerLog,
	"proxy_get_header_map_value":         registerGetHeaderMapValue,
	"proxy_get_header_map_pairs":         registerGetHeaderMapPairs,
	"proxy_set_header_map_pairs":         registerSetHeaderMapPairs,
	"proxy_add_header_map_value":         registerAddHeaderMapValue,
	"proxy_replace_header_map_value":     registerReplaceHeaderMapValue,
	"proxy_remove_header_map_value":      registerRemoveHeaderMapValue,
	"proxy_send_local_response":          registerSendLocalResponse,
	"proxy_set_tick_period_milliseconds": registerSetTickPeriodMillis,
	"proxy_get_current_time_nanoseconds": registerGetCurrentTimeNanos,
	"proxy_get_buffer_bytes":             registerGetBufferBytes,
	"proxy_set_buffer_bytes":             registerSetBufferBytes,
	"proxy_http_call":                    registerHttpCall,
	"proxy_set_shared_data":              registerSetSharedData,
	"proxy_get_shared_data":              registerGetSharedData,
	"proxy_register_shared_queue":        registerRegisterSharedQueue,
	"proxy_resolve_shared_queue":         registerResolveSharedQueue,
	"proxy_enqueue_shared_queue":         registerEnqueueSharedQueue,
	"proxy_dequeue_shared_queue":         registerDequeueSharedQueue,
}

// UnknownImportError names a guest import this harness has no handler for.
type UnknownImportError struct {
	ModuleName string
	Name       string
}

func (e *UnknownImportError) Error() string {
	return fmt.Sprintf("hostabi: guest imports %s.%s, which this harness does not implement", e.ModuleName, e.Name)
}

// Link inspects the compiled guest's imports and registers a handler for
// every proxy_* host-call it actually declares, leaving everything else
// untouched. An import under the "env" module this harness cannot serve is
// a load-time error.
func Link(ctx context.Context, r wazero.Runtime, compiled wazero.CompiledModule, exp *expect.Handle, host *hoststate.Handle, tr *trace.Tracer) (*Env, api.Module, error) {
	e := &Env{exp: exp, host: host, trace: tr}
	builder := r.NewHostModuleBuilder("env")

	for _, fn := range compiled.ImportedFunctions() {
		moduleName, name, isImport := fn.Import()
		if !isImport || moduleName != "env" {
			continue
		}
		reg, ok := registrars[name]
		if !ok {
			return nil, nil, &UnknownImportError{ModuleName: moduleName, Name: name}
		}
		reg(e, builder)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, nil, err
	}
	return e, mod, nil
}
