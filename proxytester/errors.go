// Package proxytester is the test-facing façade: it compiles a guest module,
// links the mocked proxy-wasm host-call table, drives one callback
// invocation at a time, and asserts the host-calls it made against a
// scripted expectation stage.
package proxytester

import (
	"errors"
	"fmt"
)

// Sentinel errors every failure returned by this package wraps, so callers
// can discriminate with errors.Is/errors.As instead of parsing messages.
var (
	// ErrLoad covers failures compiling, linking or instantiating the guest.
	ErrLoad = errors.New("proxytester: load error")
	// ErrInvocation covers a callback export missing or trapping.
	ErrInvocation = errors.New("proxytester: invocation error")
	// ErrExpectation covers a host-call that didn't match what was staged.
	ErrExpectation = errors.New("proxytester: expectation failure")
	// ErrMemory covers an out-of-bounds guest memory access.
	ErrMemory = errors.New("proxytester: memory error")
	// ErrMisuse covers a caller mistake, such as an unfinalized sub-builder.
	ErrMisuse = errors.New("proxytester: misuse")
)

func wrapLoad(msg string, err error) error {
	return fmt.Errorf("%s: %w: %v", msg, ErrLoad, err)
}

func wrapInvocation(msg string, err error) error {
	return fmt.Errorf("%s: %w: %v", msg, ErrInvocation, err)
}

func wrapExpectation(err error) error {
	return fmt.Errorf("%w: %v", ErrExpectation, err)
}

func wrapMemory(err error) error {
	return fmt.Errorf("%w: %v", ErrMemory, err)
}

func wrapMisuse(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrMisuse)
}
