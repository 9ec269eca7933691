package weather

import (
	"cmp"
	"slices"

	"weatherproxy/internal/types"
)

// sortForecast returns a sorted copy of days. An empty or unknown field
// leaves the upstream order untouched, and descending only applies together
// with a known field. Equal keys keep their relative order.
func sortForecast(days []types.DailyForecast, field string, descending bool) []types.DailyForecast {
	out := slices.Clone(days)
	if !types.IsSortableForecastField(field) {
		return out
	}

	compare := func(a, b types.DailyForecast) int {
		switch field {
		case types.SortByMinTemp:
			return cmp.Compare(a.MinTemp, b.MinTemp)
		case types.SortByMaxTemp:
			return cmp.Compare(a.MaxTemp, b.MaxTemp)
		default:
			return a.Date.Compare(b.Date)
		}
	}
	if descending {
		asc := compare
		compare = func(a, b types.DailyForecast) int { return asc(b, a) }
	}

	slices.SortStableFunc(out, compare)
	return out
}
