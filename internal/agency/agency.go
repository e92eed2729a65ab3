// Package agency orchestrates travel quotation batches: it fans one task out
// per requested destination, combines each destination's pricing and forecast
// results, and joins on all of them before reporting.
package agency

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tripmill/tripmill/internal/flight"
	"github.com/tripmill/tripmill/internal/gate"
	"github.com/tripmill/tripmill/internal/guard"
	"github.com/tripmill/tripmill/internal/metrics"
	"github.com/tripmill/tripmill/internal/trip"
	"github.com/tripmill/tripmill/internal/weather"
)

// Config carries the tunable parameters of an [Agency].
type Config struct {
	// BaseRate is the per-day, per-traveler price before the destination
	// multiplier applies.
	BaseRate decimal.Decimal
	// ForecastLimit bounds the number of forecast calls in flight at once.
	// A value <= 0 leaves forecast concurrency unlimited.
	ForecastLimit int
}

// Agency owns the shared state of quotation runs: the forecast cache, the
// admission gate on forecast calls, and the run metrics. All of it is
// constructor-injected; there are no package-level mutable singletons.
type Agency struct {
	baseRate  decimal.Decimal
	gate      *gate.Gate
	forecasts *flight.Cache[string, weather.Condition]
	recorder  *metrics.Recorder
	log       *zap.SugaredLogger
}

// New creates an Agency that resolves forecasts through forecaster, at most
// cfg.ForecastLimit at a time, memoizing one result per destination.
func New(cfg Config, forecaster weather.Forecaster, log *zap.SugaredLogger) *Agency {
	var g *gate.Gate
	if cfg.ForecastLimit > 0 {
		g = gate.New(cfg.ForecastLimit)
	}
	return &Agency{
		baseRate:  cfg.BaseRate,
		gate:      g,
		forecasts: flight.NewCache(g, forecaster.Forecast),
		recorder:  &metrics.Recorder{},
		log:       log,
	}
}

// RunBatch quotes every request concurrently and returns once all of them have
// reached a terminal state. A failed request is recorded in the report rather
// than aborting its siblings, so the report always accounts for every request
// in the (coalesced) batch.
//
// RunBatch returns an error for a batch that cannot be run at all: duplicate
// destinations with conflicting parameters, or a ctx that was canceled before
// the join completed. In the latter case the report is still returned, with
// the interrupted requests recorded as failures.
func (a *Agency) RunBatch(ctx context.Context, reqs []trip.Request) (*Report, error) {
	reqs, err := coalesceRequests(reqs)
	if err != nil {
		return nil, err
	}

	start := a.recorder.Start()
	a.log.Infow("starting batch", "requests", len(reqs))

	var (
		mu       sync.Mutex
		quotes   []Quote
		failures []Failure
	)

	var group errgroup.Group
	for _, req := range reqs {
		group.Go(func() error {
			quote, err := a.processOne(ctx, req)
			a.recorder.MarkProcessed()

			mu.Lock()
			if err != nil {
				failures = append(failures, Failure{Destination: req.Destination, Err: err})
			} else {
				quotes = append(quotes, quote)
			}
			mu.Unlock()

			if err != nil {
				a.log.Warnw("request failed", "destination", req.Destination, "error", err)
			} else {
				a.log.Debugw("quoted destination",
					"destination", req.Destination,
					"condition", quote.Condition,
					"price", quote.Price)
			}
			return nil
		})
	}
	group.Wait()

	report := &Report{
		Quotes:   quotes,
		Failures: failures,
		Metrics:  a.recorder.Finish(start),
	}
	a.log.Infow("batch finished",
		"quoted", len(quotes),
		"failed", len(failures),
		"elapsed", report.Metrics.Elapsed)
	return report, ctx.Err()
}

// processOne combines the two independent halves of a quotation: the forecast
// lookup (gated and cached) and the rate multiplier (pure CPU work, never
// gated). The price is computed once both are available.
func (a *Agency) processOne(ctx context.Context, req trip.Request) (Quote, error) {
	return guard.Resolve(func() (Quote, error) {
		type forecast struct {
			condition weather.Condition
			err       error
		}
		pending := make(chan forecast, 1)
		go func() {
			condition, err := a.forecasts.GetOrFetch(ctx, req.Destination)
			pending <- forecast{condition, err}
		}()

		multiplier := trip.RateMultiplier(req.Destination)

		fc := <-pending
		if fc.err != nil {
			return Quote{}, fmt.Errorf("forecast for %s: %w", req.Destination, fc.err)
		}

		return Quote{
			Request:    req,
			Multiplier: multiplier,
			Condition:  fc.condition,
			Price:      trip.Price(a.baseRate, multiplier, req.Days, req.Travelers),
		}, nil
	})
}

// coalesceRequests collapses exact duplicates into a single request and
// reports destinations requested with conflicting parameters.
func coalesceRequests(reqs []trip.Request) ([]trip.Request, error) {
	var errs []error

	coalesced := make([]trip.Request, 0, len(reqs))
	byDestination := make(map[string]trip.Request)
	for _, current := range reqs {
		previous, ok := byDestination[current.Destination]
		if !ok {
			coalesced = append(coalesced, current)
			byDestination[current.Destination] = current
			continue
		}
		if previous != current {
			errs = append(errs, fmt.Errorf("%s requested as both %s and %s",
				current.Destination, current, previous))
		}
	}

	return coalesced, errors.Join(errs...)
}
