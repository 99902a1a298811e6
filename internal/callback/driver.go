package callback

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/proxy-wasm/wasmtester/abi"
)

// exportSpec is the resolved shape of one exported callback: its name, how
// many of Request.Args to pass, and how to read back its result.
type exportSpec struct {
	Name   string
	NArgs  int
	Return abi.ReturnKind
}

// ErrExportNotFound names an exported callback the compiled module does not
// declare.
type ErrExportNotFound struct {
	Name string
}

func (e *ErrExportNotFound) Error() string {
	return fmt.Sprintf("callback: guest module does not export %q", e.Name)
}

// Driver knows each callback's export name, argument count and return
// contract, resolved once at load time for the detected ABI version.
type Driver struct {
	abiVersion abi.AbiVersion
	exports    map[RequestKind]exportSpec
}

// NewDriver builds the export table for v. Callbacks whose arity changed
// between v0.1.0 and v0.2.0 (request/response headers) are pinned to the
// version-correct NArgs here, once, so the façade never has to branch on
// ABI version at call time.
func NewDriver(v abi.AbiVersion) *Driver {
	headerArgs := 3 // ctx, num_headers, end_of_stream (v0.2.0)
	if v == abi.AbiVersion0_1_0 {
		headerArgs = 2 // ctx, num_headers
	}

	d := &Driver{abiVersion: v}
	d.exports = map[RequestKind]exportSpec{
		RequestKindStart:                     {Name: "_start", NArgs: 0, Return: abi.ReturnKindNone},
		RequestKindContextCreate:             {Name: "proxy_on_context_create", NArgs: 2, Return: abi.ReturnKindNone},
		RequestKindDone:                      {Name: "proxy_on_done", NArgs: 1, Return: abi.ReturnKindBool},
		RequestKindLog:                       {Name: "proxy_on_log", NArgs: 1, Return: abi.ReturnKindNone},
		RequestKindDelete:                    {Name: "proxy_on_delete", NArgs: 1, Return: abi.ReturnKindNone},
		RequestKindVmStart:                   {Name: "proxy_on_vm_start", NArgs: 2, Return: abi.ReturnKindBool},
		RequestKindConfigure:                 {Name: "proxy_on_configure", NArgs: 2, Return: abi.ReturnKindBool},
		RequestKindTick:                      {Name: "proxy_on_tick", NArgs: 1, Return: abi.ReturnKindNone},
		RequestKindQueueReady:                {Name: "proxy_on_queue_ready", NArgs: 2, Return: abi.ReturnKindNone},
		RequestKindNewConnection:             {Name: "proxy_on_new_connection", NArgs: 1, Return: abi.ReturnKindAction},
		RequestKindDownstreamData:            {Name: "proxy_on_downstream_data", NArgs: 3, Return: abi.ReturnKindAction},
		RequestKindDownstreamConnectionClose: {Name: "proxy_on_downstream_connection_close", NArgs: 2, Return: abi.ReturnKindNone},
		RequestKindUpstreamData:              {Name: "proxy_on_upstream_data", NArgs: 3, Return: abi.ReturnKindAction},
		RequestKindUpstreamConnectionClose:   {Name: "proxy_on_upstream_connection_close", NArgs: 2, Return: abi.ReturnKindNone},
		RequestKindRequestHeaders:            {Name: "proxy_on_request_headers", NArgs: headerArgs, Return: abi.ReturnKindAction},
		RequestKindRequestBody:               {Name: "proxy_on_request_body", NArgs: 3, Return: abi.ReturnKindAction},
		RequestKindRequestTrailers:           {Name: "proxy_on_request_trailers", NArgs: 2, Return: abi.ReturnKindAction},
		RequestKindResponseHeaders:           {Name: "proxy_on_response_headers", NArgs: headerArgs, Return: abi.ReturnKindAction},
		RequestKindResponseBody:              {Name: "proxy_on_response_body", NArgs: 3, Return: abi.ReturnKindAction},
		RequestKindResponseTrailers:          {Name: "proxy_on_response_trailers", NArgs: 2, Return: abi.ReturnKindAction},
		RequestKindHttpCallResponse:          {Name: "proxy_on_http_call_response", NArgs: 5, Return: abi.ReturnKindNone},
		RequestKindForeignFunction:           {Name: "proxy_on_foreign_function", NArgs: 3, Return: abi.ReturnKindAction},
	}
	return d
}

// DetectAbiVersion inspects the instantiated module's proxy_on_request_headers
// export arity to decide which ABI revision a guest targets: 2 params means
// v0.1.0, 3 means v0.2.0. Absent the export, the version is Unknown and the
// Driver falls back to the v0.2.0 (wider) arity.
func DetectAbiVersion(mod api.Module) abi.AbiVersion {
	fn := mod.ExportedFunction("proxy_on_request_headers")
	if fn == nil {
		return abi.AbiVersionUnknown
	}
	switch len(fn.Definition().ParamTypes()) {
	case 2:
		return abi.AbiVersion0_1_0
	case 3:
		return abi.AbiVersion0_2_0
	default:
		return abi.AbiVersionUnknown
	}
}

// Invoke calls the export backing req and classifies its result by the
// resolved ReturnKind. hasReturn is false for ReturnKindNone callbacks.
func (d *Driver) Invoke(ctx context.Context, mod api.Module, req Request) (hasReturn bool, value int32, err error) {
	spec, ok := d.exports[req.Kind]
	if !ok {
		return false, 0, fmt.Errorf("callback: no export spec registered for %s", req.Kind)
	}
	fn := mod.ExportedFunction(spec.Name)
	if fn == nil {
		return false, 0, &ErrExportNotFound{Name: spec.Name}
	}

	n := spec.NArgs
	if n > req.NArgs {
		n = req.NArgs
	}
	params := make([]uint64, n)
	for i := 0; i < n; i++ {
		params[i] = uint64(uint32(req.Args[i]))
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		return false, 0, fmt.Errorf("callback: invoking %s: %w", spec.Name, err)
	}
	if spec.Return == abi.ReturnKindNone {
		return false, 0, nil
	}
	if len(results) == 0 {
		return false, 0, fmt.Errorf("callback: %s declared a %s return but produced none", spec.Name, spec.Return)
	}
	return true, int32(uint32(results[0])), nil
}
