// Package matcher finds which open invoices add up exactly to a received
// payment.
//
// The search is iterative deepening over combination size: every combination
// of one note is tried, then every combination of two, and so on up to the
// requested depth. The first exact match ends the search, so the result
// always uses the fewest notes possible, and among equally sized matches the
// one with the lexicographically smallest positions wins.
//
// All arithmetic is on amount.Amount minor units. The worst case visits
// CombinationCount(n, k) combinations; callers are expected to bound k.
package matcher
