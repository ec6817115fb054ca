package matcher

import (
	"context"
	"math"

	"github.com/Taff4/conciliador-notas/internal/amount"
)

// minCardinalityDP computes, with a pseudo-polynomial dynamic program over
// reachable sums, the fewest candidates that add up exactly to target.
// It returns 0 when target is unreachable. ok is false when the instance is
// outside the DP lane: a non-positive candidate, or a target above limit.
//
// Memory is O(target) and time O(n * target), hence the limit.
func minCardinalityDP(ctx context.Context, vals []amount.Amount, target, limit amount.Amount) (minSize int, ok bool, err error) {
	if limit <= 0 || target <= 0 || target > limit {
		return 0, false, nil
	}
	for _, v := range vals {
		if v <= 0 {
			return 0, false, nil
		}
	}

	const unreachable = math.MaxInt32
	t := int(target)

	// dp[s] holds the fewest items seen so far whose sum is exactly s.
	dp := make([]int32, t+1)
	for s := 1; s <= t; s++ {
		dp[s] = unreachable
	}

	for _, v := range vals {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		val := int(v)
		if val > t {
			continue
		}
		for s := t; s >= val; s-- {
			if prev := dp[s-val]; prev != unreachable && prev+1 < dp[s] {
				dp[s] = prev + 1
			}
		}
	}

	if dp[t] == unreachable {
		return 0, true, nil
	}
	return int(dp[t]), true, nil
}
