package matcher

import "fmt"

// Progress is emitted once per combination size, before that size is
// evaluated.
type Progress struct {
	Size         int     `json:"size"`
	Fraction     float64 `json:"fraction"`
	Label        string  `json:"label"`
	Combinations uint64  `json:"combinations"`
}

// ProgressSink receives size-level progress. Implementations must not block
// for long; the search waits for Progress to return.
type ProgressSink interface {
	Progress(Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(Progress)

func (f ProgressFunc) Progress(p Progress) { f(p) }

type discardProgress struct{}

func (discardProgress) Progress(Progress) {}

func levelProgress(r, k, n int) Progress {
	return Progress{
		Size:         r,
		Fraction:     float64(r) / float64(k),
		Label:        fmt.Sprintf("analyzing combinations of %d note(s)", r),
		Combinations: binomial(n, r),
	}
}
