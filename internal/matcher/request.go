package matcher

import (
	"errors"
	"fmt"
	"math"

	"github.com/Taff4/conciliador-notas/internal/amount"
)

// ErrInvalidRequest is matched by every *RequestError via errors.Is.
var ErrInvalidRequest = errors.New("invalid request")

// RequestError reports a malformed search request and the field at fault.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidRequest) hold.
func (e *RequestError) Is(target error) bool { return target == ErrInvalidRequest }

// Field names used in RequestError.
const (
	FieldTarget     = "target"
	FieldCandidates = "candidates"
	FieldMaxSize    = "max_combination_size"
)

// Request is one subset-sum search.
type Request struct {
	Target     amount.Amount
	Candidates []amount.Amount
	// MaxSize bounds the combination size. Values above len(Candidates)
	// are clamped.
	MaxSize int
}

// Validate checks the request shape before any enumeration. The magnitudes
// of the target and all candidates must add up within int64, so no partial
// sum of a combination can wrap.
func (r Request) Validate() error {
	if r.Target <= 0 {
		return &RequestError{Field: FieldTarget, Reason: "must be positive"}
	}
	if r.MaxSize < 1 {
		return &RequestError{Field: FieldMaxSize, Reason: "must be at least 1"}
	}

	headroom := uint64(math.MaxInt64) - uint64(r.Target)
	for i, c := range r.Candidates {
		m := magnitude(c)
		if m > headroom {
			return &RequestError{
				Field:  fmt.Sprintf("%s[%d]", FieldCandidates, i),
				Reason: "is too large: the amounts together exceed the exact sum range",
			}
		}
		headroom -= m
	}
	return nil
}

func magnitude(a amount.Amount) uint64 {
	if a < 0 {
		return uint64(-(a + 1)) + 1
	}
	return uint64(a)
}

// effectiveSize is MaxSize clamped to the candidate count.
func (r Request) effectiveSize() int {
	if r.MaxSize > len(r.Candidates) {
		return len(r.Candidates)
	}
	return r.MaxSize
}

// RequestFromFloats builds a Request from major-unit floats, failing on any
// non-finite or out-of-range value before scaling.
func RequestFromFloats(target float64, candidates []float64, maxSize int) (Request, error) {
	t, err := amount.FromFloat(target)
	if err != nil {
		return Request{}, &RequestError{Field: FieldTarget, Reason: err.Error()}
	}
	cands := make([]amount.Amount, len(candidates))
	for i, c := range candidates {
		a, err := amount.FromFloat(c)
		if err != nil {
			return Request{}, &RequestError{
				Field:  fmt.Sprintf("%s[%d]", FieldCandidates, i),
				Reason: err.Error(),
			}
		}
		cands[i] = a
	}
	req := Request{Target: t, Candidates: cands, MaxSize: maxSize}
	return req, req.Validate()
}
