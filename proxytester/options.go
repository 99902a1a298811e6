package proxytester

import (
	"io"
	"io/fs"

	"github.com/tetratelabs/wazero"
)

// Options configures the guest module instantiation and trace output,
// mirroring the builder-chain shape of wazero.ModuleConfig.
type Options struct {
	stdout io.Writer
	args   []string
	fs     fs.FS
	trace  bool
}

// NewOptions returns the harness defaults: no stdout capture, no args, no
// filesystem, tracing off.
func NewOptions() *Options {
	return &Options{}
}

// WithStdout captures the guest's stdout writes.
func (o *Options) WithStdout(w io.Writer) *Options {
	o.stdout = w
	return o
}

// WithArgs sets the guest's argv, as seen by a WASI _start entrypoint.
func (o *Options) WithArgs(args ...string) *Options {
	o.args = args
	return o
}

// WithFS mounts a filesystem the guest can open paths against.
func (o *Options) WithFS(guestFS fs.FS) *Options {
	o.fs = guestFS
	return o
}

// WithTrace turns on CALL TO:/ARGS:/RETURN: logging for every host-call the
// guest makes. Callback invocations themselves are not traced.
func (o *Options) WithTrace(v bool) *Options {
	o.trace = v
	return o
}

func (o *Options) moduleConfig() wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig()
	if o.stdout != nil {
		cfg = cfg.WithStdout(o.stdout)
	}
	if len(o.args) > 0 {
		cfg = cfg.WithArgs(o.args...)
	}
	if o.fs != nil {
		cfg = cfg.WithFS(o.fs)
	}
	return cfg
}
