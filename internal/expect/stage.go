package expect

import "fmt"

// lifecycleState is the state machine each Stage walks through once per
// callback invocation: Building -> Active -> Drained -> (reset) Building.
type lifecycleState int

const (
	stateBuilding lifecycleState = iota
	stateActive
	stateDrained
)

// MismatchError reports that a host-call observed during guest execution did
// not satisfy the next expectation in an active Stage.
type MismatchError struct {
	Expected string
	Observed string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expected, e.Observed)
}

// UnconsumedError reports that a Stage was asserted with expectations left
// unmatched.
type UnconsumedError struct {
	First      string
	Unconsumed int
}

func (e *UnconsumedError) Error() string {
	return fmt.Sprintf("%d expectation(s) never matched; first unconsumed: %s", e.Unconsumed, e.First)
}

// UnexpectedCallError reports a host-call the guest made that no staged
// expectation anticipated, in a family declared strict.
type UnexpectedCallError struct {
	Observed string
}

func (e *UnexpectedCallError) Error() string {
	return fmt.Sprintf("unexpected strict host-call: %s", e.Observed)
}

// Stage is the ordered expectation buffer for one callback invocation.
type Stage struct {
	state   lifecycleState
	entries []*Expectation
	cursor  int
}

// NewStage returns an empty Stage in the Building state.
func NewStage() *Stage {
	return &Stage{state: stateBuilding}
}

// Add appends an expectation while the Stage is being built. It panics if
// called outside Building, which would indicate a façade bug (calling
// Expect* on a stage that ExecuteAndExpect has already promoted).
func (s *Stage) Add(e *Expectation) {
	if s.state != stateBuilding {
		panic("expect: Add called on a Stage that is not Building")
	}
	s.entries = append(s.entries, e)
}

// Promote freezes the staged entries for the in-flight invocation.
func (s *Stage) Promote() {
	s.state = stateActive
	s.cursor = 0
}

// Match checks observed against the next non-consumed entry (the one at the
// cursor) and, if its Kind and constraints are satisfied, consumes it and
// advances the cursor. Later entries are never searched.
//
// If the next entry has a different Kind, that's a mismatch
// (order is significant: I2). If there are no more entries at all, nil is
// returned with no error so the caller can fall back to default behavior.
func (s *Stage) Match(observed *Expectation) (*Expectation, error) {
	if s.cursor >= len(s.entries) {
		return nil, nil
	}
	next := s.entries[s.cursor]
	if next.Kind != observed.Kind {
		return nil, &MismatchError{Expected: next.Describe(), Observed: observed.Describe()}
	}
	if !next.matches(observed) {
		return nil, &MismatchError{Expected: next.Describe(), Observed: observed.Describe()}
	}
	next.consumed = true
	s.cursor++
	return next, nil
}

// Assert requires every entry to have been consumed, transitioning to
// Drained. The error names the first unconsumed entry.
func (s *Stage) Assert() error {
	s.state = stateDrained
	for _, e := range s.entries {
		if !e.consumed {
			remaining := 0
			for _, o := range s.entries {
				if !o.consumed {
					remaining++
				}
			}
			return &UnconsumedError{First: e.Describe(), Unconsumed: remaining}
		}
	}
	return nil
}

// Entries returns the staged/active entries, for PrintExpectations.
func (s *Stage) Entries() []*Expectation { return s.entries }
