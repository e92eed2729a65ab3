package agency

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/tripmill/tripmill/internal/metrics"
	"github.com/tripmill/tripmill/internal/trip"
	"github.com/tripmill/tripmill/internal/weather"
)

// Quote is the combined result for one request: the destination's rate
// multiplier, its forecast, and the price derived from both.
type Quote struct {
	trip.Request
	Multiplier float64
	Condition  weather.Condition
	Price      decimal.Decimal
}

// Failure records why one request produced no quote.
type Failure struct {
	Destination string
	Err         error
}

// Report is the aggregate outcome of one batch. Quotes and Failures together
// account for every request in the batch; their order reflects completion
// order and carries no meaning.
type Report struct {
	Quotes   []Quote
	Failures []Failure
	Metrics  metrics.Report
}

// Processed returns the number of requests that reached a terminal state.
func (r *Report) Processed() int {
	return len(r.Quotes) + len(r.Failures)
}

// TotalPrice sums the prices of all successful quotes.
func (r *Report) TotalPrice() decimal.Decimal {
	return lo.Reduce(r.Quotes, func(sum decimal.Decimal, q Quote, _ int) decimal.Decimal {
		return sum.Add(q.Price)
	}, decimal.Zero)
}

// FailedDestinations returns the destinations of all failed requests.
func (r *Report) FailedDestinations() []string {
	return lo.Map(r.Failures, func(f Failure, _ int) string { return f.Destination })
}

// Conditions returns the distinct forecast conditions seen across all quotes,
// sorted for stable presentation.
func (r *Report) Conditions() []weather.Condition {
	seen := mapset.NewThreadUnsafeSet[weather.Condition]()
	for _, q := range r.Quotes {
		seen.Add(q.Condition)
	}
	conditions := seen.ToSlice()
	slices.Sort(conditions)
	return conditions
}
