// Package trip defines quotation requests and the pricing rules applied to
// them.
package trip

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// Request describes one destination to quote: where, for how long, and for how
// many travelers. Requests are immutable once created.
type Request struct {
	Destination string
	Days        int
	Travelers   int
}

func (r Request) String() string {
	return fmt.Sprintf("%s (%dd, %dp)", r.Destination, r.Days, r.Travelers)
}

// GenerateRequests fabricates n requests with deterministic pseudo-random
// parameters: 1-10 days and 1-5 travelers per destination. The same n and seed
// always produce the same batch.
func GenerateRequests(n int, seed uint64) []Request {
	r := rand.New(rand.NewPCG(seed, 0))
	reqs := make([]Request, n)
	for i := range reqs {
		reqs[i] = Request{
			Destination: fmt.Sprintf("Destination_%d", i+1),
			Days:        1 + r.IntN(10),
			Travelers:   1 + r.IntN(5),
		}
	}
	return reqs
}

// maxFibIndex caps the cost of RateMultiplier at a fixed bound.
const maxFibIndex = 30

// RateMultiplier derives a destination's pricing multiplier from its name.
// The multiplier is a Fibonacci number whose index is hashed from the name,
// computed iteratively so the cost stays linear in the index. Same name, same
// multiplier.
func RateMultiplier(destination string) float64 {
	return fibonacci(hash(destination) % maxFibIndex)
}

func fibonacci(n uint32) float64 {
	var a, b float64 = 0, 1
	for range n {
		a, b = b, a+b
	}
	return a
}

// Price computes the quotation for a request: the base daily rate scaled by
// (1 + multiplier), times days, times travelers. The result is a pure function
// of its inputs.
func Price(base decimal.Decimal, multiplier float64, days, travelers int) decimal.Decimal {
	rate := base.Mul(decimal.NewFromFloat(1 + multiplier))
	return rate.Mul(decimal.NewFromInt(int64(days))).Mul(decimal.NewFromInt(int64(travelers)))
}

func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
