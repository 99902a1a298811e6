package proxytester

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/proxy-wasm/wasmtester/abi"
	"github.com/proxy-wasm/wasmtester/internal/callback"
	"github.com/proxy-wasm/wasmtester/internal/expect"
	"github.com/proxy-wasm/wasmtester/internal/hostabi"
	"github.com/proxy-wasm/wasmtester/internal/hoststate"
	"github.com/proxy-wasm/wasmtester/internal/trace"
	"github.com/proxy-wasm/wasmtester/internal/wasmmem"
)

// Tester drives one guest module through its proxy-wasm callbacks: stage an
// expectation with Expect*, queue the callback with a Call* method, then run
// it with ExecuteAndExpect. One Tester owns one guest instance; it is not
// safe for concurrent use.
type Tester struct {
	runtime wazero.Runtime
	guest   api.Module

	abiVersion abi.AbiVersion
	driver     *callback.Driver
	exp        *expect.Handle
	host       *hoststate.Handle
	env        *hostabi.Env
	trace      *trace.Tracer

	pendingReq    callback.Request
	pendingStaged bool

	openSubBuilder bool
}

// Test reads, compiles and links the guest at wasmPath, detects its ABI
// version, and instantiates it. Opts is optional; the zero value applies
// harness defaults.
func Test(ctx context.Context, wasmPath string, opts ...*Options) (*Tester, error) {
	o := NewOptions()
	if len(opts) > 0 && opts[0] != nil {
		o = opts[0]
	}

	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, wrapLoad(fmt.Sprintf("reading %s", wasmPath), err)
	}

	r := wazero.NewRuntime(ctx)
	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = r.Close(ctx)
		return nil, wrapLoad("compiling guest module", err)
	}

	tr := trace.New().Enable(o.trace)
	exp := expect.NewHandle()
	host := hoststate.NewHandle(abi.AbiVersionUnknown)

	env, _, err := hostabi.Link(ctx, r, compiled, exp, host, tr)
	if err != nil {
		_ = r.Close(ctx)
		return nil, wrapLoad("linking host module", err)
	}

	guest, err := r.InstantiateModule(ctx, compiled, o.moduleConfig())
	if err != nil {
		_ = r.Close(ctx)
		return nil, wrapLoad("instantiating guest module", err)
	}

	abiVersion := callback.DetectAbiVersion(guest)
	host.SetAbiVersion(abiVersion)
	driver := callback.NewDriver(abiVersion)

	return &Tester{
		runtime:    r,
		guest:      guest,
		abiVersion: abiVersion,
		driver:     driver,
		exp:        exp,
		host:       host,
		env:        env,
		trace:      tr,
	}, nil
}

// AbiVersion reports the ABI version detected for the loaded guest.
func (t *Tester) AbiVersion() abi.AbiVersion { return t.abiVersion }

// queue records the next callback invocation to run. Exported Call* methods
// (call_builders.go) build the Request and call this.
func (t *Tester) queue(req callback.Request) *Tester {
	t.pendingReq = req
	t.pendingStaged = true
	return t
}

// ExecuteAndExpect promotes the staged expectations, invokes the queued
// callback, and checks its observed host-calls and return value against
// what was staged. It always advances to a fresh stage, even on failure, so
// a single bad test step doesn't cascade.
func (t *Tester) ExecuteAndExpect(want abi.ReturnType) error {
	defer t.exp.UpdateStage()

	if t.openSubBuilder {
		t.openSubBuilder = false
		return wrapMisuse("ExecuteAndExpect called with an unfinalized Expect* sub-builder")
	}
	if !t.pendingStaged {
		return wrapMisuse("ExecuteAndExpect called with no Call* queued")
	}
	t.pendingStaged = false

	t.exp.Promote()
	t.env.ClearError()

	hasReturn, value, err := t.driver.Invoke(context.Background(), t.guest, t.pendingReq)
	if err != nil {
		return wrapInvocation(fmt.Sprintf("invoking %s", t.pendingReq.Kind), err)
	}
	if fatalErr := t.env.FirstError(); fatalErr != nil {
		return classifyFatal(fatalErr)
	}

	if err := t.exp.Assert(); err != nil {
		return wrapExpectation(err)
	}

	return checkReturn(t.pendingReq, hasReturn, value, want)
}

// classifyFatal wraps a host-call-recorded fatal error in the sentinel that
// matches its underlying cause.
func classifyFatal(err error) error {
	var oob *wasmmem.OutOfBoundsError
	if errors.As(err, &oob) {
		return wrapMemory(err)
	}
	return wrapExpectation(err)
}

// checkReturn compares a callback's actual return against want, interpreting
// value by want's own kind. The callback's declared ReturnKind is not
// compared with want's kind: a ReturnNone expectation accepts any result,
// and an i32 result is read as a bool or an Action as want asks.
func checkReturn(req callback.Request, hasReturn bool, value int32, want abi.ReturnType) error {
	switch want.Kind() {
	case abi.ReturnKindNone:
		return nil
	case abi.ReturnKindBool:
		if !hasReturn {
			return wrapExpectation(fmt.Errorf("%s produced no return value, wanted bool %v", req.Kind, want.Bool()))
		}
		got := value != 0
		if got != want.Bool() {
			return wrapExpectation(fmt.Errorf("%s returned %v, wanted %v", req.Kind, got, want.Bool()))
		}
	case abi.ReturnKindAction:
		if !hasReturn {
			return wrapExpectation(fmt.Errorf("%s produced no return value, wanted action %s", req.Kind, want.Action()))
		}
		got := abi.Action(value)
		if got != want.Action() {
			return wrapExpectation(fmt.Errorf("%s returned %s, wanted %s", req.Kind, got, want.Action()))
		}
	}
	return nil
}

// ResetHostSettings discards every sticky SetDefault* value and shared-data
// / shared-queue state, reinitializing the mock host for the same ABI
// version.
func (t *Tester) ResetHostSettings() { t.host.Reset() }

// StrictHostCalls marks one or more host-call families as strict: an
// unanticipated call in that family fails the test even against an empty
// active stage, instead of falling back to mock-state defaults.
func (t *Tester) StrictHostCalls(kinds ...expect.Kind) *Tester {
	t.exp.MarkStrict(kinds...)
	return t
}

// PrintExpectations renders the currently staged (not yet executed)
// expectations, in declaration order, for debugging.
func (t *Tester) PrintExpectations() []string { return t.exp.PrintStaged() }

// PrintHostSettings renders a summary of the mock host's current default
// state, for debugging.
func (t *Tester) PrintHostSettings() string { return t.host.State().String() }

// Close releases the guest module and its backing runtime.
func (t *Tester) Close(ctx context.Context) error {
	if err := t.runtime.Close(ctx); err != nil {
		return wrapLoad("closing runtime", err)
	}
	return nil
}
