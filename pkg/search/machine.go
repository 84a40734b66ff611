package search

import "time"

// QuietPeriod is how long the filter must stay unchanged before a search is issued.
const QuietPeriod = 500 * time.Millisecond

// ErrorMessage is the user-facing message for any failed search.
const ErrorMessage = "No characters found matching those criteria"

// Phase is the controller's position in the search lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDebouncing
	PhaseLoading
	PhaseResults
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDebouncing:
		return "debouncing"
	case PhaseLoading:
		return "loading"
	case PhaseResults:
		return "results"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of the search controller.
type State[R any] struct {
	Phase   Phase
	Filter  Filter
	Results []R
	Loading bool
	Error   string

	// Generation increases on every filter change. Timers and responses
	// carrying an older generation are ignored.
	Generation uint64
}

// Event is an input to Transition.
type Event interface{ isEvent() }

// FilterChanged reports a new filter value.
type FilterChanged struct{ Filter Filter }

// TimerFired reports that the quiet period for Generation elapsed.
type TimerFired struct{ Generation uint64 }

// ResponseReceived reports the outcome of the search issued for Generation.
type ResponseReceived[R any] struct {
	Generation uint64
	Results    []R
	Err        error
}

// RetryRequested asks to repeat a failed search immediately.
type RetryRequested struct{}

func (FilterChanged) isEvent()       {}
func (TimerFired) isEvent()          {}
func (ResponseReceived[R]) isEvent() {}
func (RetryRequested) isEvent()      {}

// Effect is a side effect the driver of Transition must perform.
type Effect interface{ isEffect() }

// CancelTimer stops the pending quiet-period timer, if any.
type CancelTimer struct{}

// StartTimer schedules TimerFired{Generation} after Delay.
type StartTimer struct {
	Generation uint64
	Delay      time.Duration
}

// CancelSearch aborts the in-flight request; its response would be stale.
type CancelSearch struct{}

// IssueSearch sends one request for Filter and reports back with ResponseReceived.
type IssueSearch struct {
	Generation uint64
	Filter     Filter
}

func (CancelTimer) isEffect()  {}
func (StartTimer) isEffect()   {}
func (CancelSearch) isEffect() {}
func (IssueSearch) isEffect()  {}

// Transition computes the next state and the effects to run. It has no side
// effects of its own.
func Transition[R any](s State[R], ev Event) (State[R], []Effect) {
	switch ev := ev.(type) {
	case FilterChanged:
		effects := []Effect{CancelTimer{}}
		if s.Phase == PhaseLoading {
			effects = append(effects, CancelSearch{})
		}

		s.Generation++
		s.Filter = ev.Filter
		s.Loading = false

		if ev.Filter.IsEmpty() {
			s.Phase = PhaseIdle
			s.Results = nil
			s.Error = ""
			return s, effects
		}

		s.Phase = PhaseDebouncing
		return s, append(effects, StartTimer{Generation: s.Generation, Delay: QuietPeriod})

	case TimerFired:
		if ev.Generation != s.Generation || s.Phase != PhaseDebouncing {
			return s, nil
		}
		return startSearch(s)

	case RetryRequested:
		if s.Phase != PhaseError || s.Filter.IsEmpty() {
			return s, nil
		}
		s.Generation++
		return startSearch(s)

	case ResponseReceived[R]:
		if ev.Generation != s.Generation || s.Phase != PhaseLoading {
			return s, nil
		}
		s.Loading = false
		if ev.Err != nil {
			s.Phase = PhaseError
			s.Error = ErrorMessage
			s.Results = nil
			return s, nil
		}
		s.Phase = PhaseResults
		s.Error = ""
		s.Results = ev.Results
		if s.Results == nil {
			s.Results = []R{}
		}
		return s, nil
	}

	return s, nil
}

func startSearch[R any](s State[R]) (State[R], []Effect) {
	s.Phase = PhaseLoading
	s.Loading = true
	s.Error = ""
	return s, []Effect{IssueSearch{Generation: s.Generation, Filter: s.Filter}}
}
