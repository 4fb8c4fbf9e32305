package pipeline

import (
	"errors"

	"github.com/nao1215/autoarchiver/internal/model"
)

// State is the lifecycle position of an item.
type State int

// Item states, in pipeline order.
const (
	StateFed State = iota
	StateExtracting
	StateExtracted
	StateExtractFailed
	StateEnriching
	StateStoring
	StateRecording
	StateDone
	StateAborted
	StateFailed
)

var stateNames = map[State]string{
	StateFed:           "FED",
	StateExtracting:    "EXTRACTING",
	StateExtracted:     "EXTRACTED",
	StateExtractFailed: "EXTRACT_FAILED",
	StateEnriching:     "ENRICHING",
	StateStoring:       "STORING",
	StateRecording:     "RECORDING",
	StateDone:          "DONE",
	StateAborted:       "ABORTED",
	StateFailed:        "FAILED",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StateFailed
}

var (
	// ErrAborted is returned by Run when the context was canceled.
	ErrAborted = errors.New("run aborted")

	// ErrNoArchiver is recorded when no extractor produced a result.
	ErrNoArchiver = errors.New(model.StatusNoArchiver)

	// ErrUnexpected wraps panics raised outside of module calls.
	ErrUnexpected = errors.New("unexpected error")

	// ErrModulePanic wraps panics raised by a module.
	ErrModulePanic = errors.New("module panicked")
)

// Outcome is the result of processing one item.
type Outcome struct {
	// Item is the final item. For cache hits it is the cached result merged
	// with the fed item.
	Item *model.Item
	// State is the terminal state.
	State State
	// Cached reports whether a database answered from its cache.
	Cached bool
	// Err explains FAILED and ABORTED outcomes.
	Err error
}

// Summary is the result of a run.
type Summary struct {
	// Processed counts fed items that entered processing. Zero means there
	// was no work.
	Processed int
	// Outcomes are in feed order.
	Outcomes []Outcome
}

// Count returns how many outcomes ended in state.
func (s *Summary) Count(state State) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}
