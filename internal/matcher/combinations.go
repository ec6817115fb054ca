package matcher

import (
	"context"
	"math"
	"math/big"

	"github.com/Taff4/conciliador-notas/internal/amount"
)

// checkEvery is how many combinations are evaluated between cancellation
// checks.
const checkEvery = 1024

// CombinationCount returns C(n,1)+C(n,2)+...+C(n,k), the worst-case number
// of combinations a search with depth k visits over n candidates. k is
// clamped to n. The result saturates at math.MaxUint64.
func CombinationCount(n, k int) uint64 {
	if k > n {
		k = n
	}
	total := new(big.Int)
	for r := 1; r <= k; r++ {
		total.Add(total, new(big.Int).Binomial(int64(n), int64(r)))
	}
	if !total.IsUint64() {
		return math.MaxUint64
	}
	return total.Uint64()
}

// binomial returns C(n,r), saturating at math.MaxUint64.
func binomial(n, r int) uint64 {
	b := new(big.Int).Binomial(int64(n), int64(r))
	if !b.IsUint64() {
		return math.MaxUint64
	}
	return b.Uint64()
}

// scanBlock walks, in lexicographic order, every r-combination of positions
// whose smallest position is first, and returns the positions of the first
// one summing to target. ctx is checked on entry and every checkEvery
// combinations. stop, when non-nil, is polled alongside ctx and abandons the
// block without error.
func scanBlock(ctx context.Context, vals []amount.Amount, target amount.Amount, r, first int, stop func() bool) ([]int, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if stop != nil && stop() {
		return nil, 0, nil
	}

	n := len(vals)
	idx := make([]int, r)
	// sums[j] is the sum of vals at idx[0..j].
	sums := make([]amount.Amount, r)

	idx[0] = first
	sums[0] = vals[first]
	for j := 1; j < r; j++ {
		idx[j] = first + j
		sums[j] = sums[j-1] + vals[idx[j]]
	}

	var evaluated uint64
	for {
		evaluated++
		if sums[r-1] == target {
			return idx, evaluated, nil
		}
		if evaluated%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, evaluated, err
			}
			if stop != nil && stop() {
				return nil, evaluated, nil
			}
		}

		// Advance the rightmost position that still has room; idx[0] is
		// fixed for the block.
		j := r - 1
		for j >= 1 && idx[j] == n-r+j {
			j--
		}
		if j < 1 {
			return nil, evaluated, nil
		}
		idx[j]++
		sums[j] = sums[j-1] + vals[idx[j]]
		for m := j + 1; m < r; m++ {
			idx[m] = idx[m-1] + 1
			sums[m] = sums[m-1] + vals[idx[m]]
		}
	}
}
