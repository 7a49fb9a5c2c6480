// Package ledger derives account balances from transaction history.
//
// Everything here is a pure function of its input: no stores, no clocks,
// no floating point. Amounts accumulate in int64 minor currency units, so
// arbitrarily long histories sum without rounding drift.
package ledger

import (
	"sort"
	"time"

	"github.com/finsync-io/finsync/internal/domain"
)

// Balance returns the sum of signed minor-unit amounts of all entries that
// still count (posted and pending). Removed entries are excluded. An empty
// set yields zero, not an error.
func Balance(txs []domain.Transaction) int64 {
	var total int64
	for _, t := range txs {
		if t.Counts() {
			total += t.AmountMinor
		}
	}
	return total
}

// BalanceAsOf returns the balance implied by entries dated on or before
// asOf. Callers must pass an ordered history (see Sort) if they also care
// about which entries were cut — the sum itself is order independent.
func BalanceAsOf(txs []domain.Transaction, asOf time.Time) int64 {
	var total int64
	for _, t := range txs {
		if t.Counts() && !t.Date.After(asOf) {
			total += t.AmountMinor
		}
	}
	return total
}

// Sort orders entries by transaction date, ties broken by creation time and
// then by id, matching the store's canonical ordering. The slice is sorted
// in place.
func Sort(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return txs[i].ID < txs[j].ID
	})
}

// Count returns how many entries contribute to the balance.
func Count(txs []domain.Transaction) int {
	n := 0
	for _, t := range txs {
		if t.Counts() {
			n++
		}
	}
	return n
}
