// Package expect implements the expectation state machine: expectations are
// staged while a test describes the next callback, promoted to active when
// that callback is invoked, matched-and-consumed during guest execution, and
// asserted empty when the callback returns.
package expect

import "fmt"

// Handle is the two-tier expectation buffer for one Tester: a Staged stage
// being built by the current test step, and an Active stage frozen for the
// in-flight callback invocation.
type Handle struct {
	Staged *Stage
	Active *Stage

	strict map[Kind]bool
}

// NewHandle returns a Handle with an empty Staged stage and no Active stage.
func NewHandle() *Handle {
	return &Handle{Staged: NewStage(), strict: make(map[Kind]bool)}
}

// MarkStrict declares a host-call family as strict: an unanticipated call in
// that family is a hard failure even against an empty active stage, instead
// of falling back to mock-state defaults.
func (h *Handle) MarkStrict(kinds ...Kind) {
	for _, k := range kinds {
		h.strict[k] = true
	}
}

// IsStrict reports whether kind was declared strict.
func (h *Handle) IsStrict(kind Kind) bool { return h.strict[kind] }

// Promote freezes Staged into Active for the callback about to run.
func (h *Handle) Promote() {
	h.Active = h.Staged
	h.Active.Promote()
}

// Match matches an observed host-call against the active stage. If the
// active stage is fully drained and the kind is not strict, (nil, nil) is
// returned so the handler can fall back to default mock-state behavior.
func (h *Handle) Match(observed *Expectation) (*Expectation, error) {
	if h.Active == nil {
		return nil, fmt.Errorf("expect: host-call %s observed with no callback in flight", observed.Describe())
	}
	matched, err := h.Active.Match(observed)
	if err != nil {
		return nil, err
	}
	if matched == nil && h.IsStrict(observed.Kind) {
		return nil, &UnexpectedCallError{Observed: observed.Describe()}
	}
	return matched, nil
}

// Assert requires the active stage to be fully consumed.
func (h *Handle) Assert() error {
	if h.Active == nil {
		return nil
	}
	return h.Active.Assert()
}

// UpdateStage clears Active and opens a fresh Staged stage for the next test
// step.
func (h *Handle) UpdateStage() {
	h.Active = nil
	h.Staged = NewStage()
}

// PrintStaged renders the currently staged expectations, in declaration
// order, for debugging.
func (h *Handle) PrintStaged() []string {
	out := make([]string, 0, len(h.Staged.Entries()))
	for _, e := range h.Staged.Entries() {
		out = append(out, e.Describe())
	}
	return out
}
