package matcher

import (
	"time"

	"github.com/Taff4/conciliador-notas/internal/amount"
)

// Outcome is the terminal state of a search.
type Outcome int

const (
	NotFound Outcome = iota
	Found
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Cancelled:
		return "cancelled"
	default:
		return "not_found"
	}
}

// Result of a search. Combination and Indices are set only when Outcome is
// Found; Indices are ascending positions into Request.Candidates.
type Result struct {
	Outcome     Outcome
	Combination []amount.Amount
	Indices     []int
	Elapsed     time.Duration
	// Depth is the effective combination size bound after clamping.
	Depth int
	// Evaluated counts the combinations whose sum was compared. It is
	// diagnostic only and may vary with worker count.
	Evaluated uint64
}

// Size returns the number of notes in the match.
func (r Result) Size() int { return len(r.Combination) }
