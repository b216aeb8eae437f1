package core

import "sort"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// RankAmounts flattens a per-key total into a slice ordered by amount
// descending, ties broken by name.
func RankAmounts(totals map[string]Money) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(totals))
	for name, amount := range totals {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}
