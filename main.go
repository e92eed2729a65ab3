// Command tripmill runs one batch of simulated travel quotations: every
// destination is priced and forecast concurrently, with forecast calls capped
// and cached, and the run's timing and resource usage reported at the end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/tripmill/tripmill/internal/agency"
	"github.com/tripmill/tripmill/internal/logging"
	"github.com/tripmill/tripmill/internal/trip"
	"github.com/tripmill/tripmill/internal/weather"
)

var (
	destinations  = pflag.Int("destinations", 50, "Number of destinations to quote")
	forecastLimit = pflag.Int("forecast-limit", 10, "Maximum concurrent forecast calls (0 for unlimited)")
	forecastDelay = pflag.Duration("forecast-delay", 200*time.Millisecond, "Simulated forecast service delay")
	baseRate      = pflag.String("base-rate", "100", "Base price per day per traveler")
	seed          = pflag.Uint64("seed", 1, "Seed for generated trip parameters")
	timeout       = pflag.Duration("timeout", 0, "Abort the batch after this duration (0 for no limit)")
	logLevel      = pflag.String("log-level", "info", "Minimum log level")
	jsonLogs      = pflag.Bool("json-logs", false, "Emit logs as JSON")
)

func main() {
	pflag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tripmill:", err)
		os.Exit(1)
	}
}

func run() error {
	log, err := logging.New(logging.Config{Level: *logLevel, JSON: *jsonLogs})
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	defer log.Sync()

	base, err := decimal.NewFromString(*baseRate)
	if err != nil {
		return fmt.Errorf("parsing base rate: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	ag := agency.New(
		agency.Config{BaseRate: base, ForecastLimit: *forecastLimit},
		weather.NewService(*forecastDelay),
		log,
	)
	reqs := trip.GenerateRequests(*destinations, *seed)

	report, runErr := ag.RunBatch(ctx, reqs)
	if report != nil {
		render(report)
	}
	return runErr
}

func render(report *agency.Report) {
	for _, q := range report.Quotes {
		fmt.Printf("%s\t%s\t$%s\n", q.Request, q.Condition, q.Price.StringFixed(2))
	}
	for _, f := range report.Failures {
		fmt.Printf("%s\tFAILED\t%v\n", f.Destination, f.Err)
	}

	m := report.Metrics
	fmt.Printf("\nprocessed %d destinations in %v (%d quoted, %d failed)\n",
		report.Processed(), m.Elapsed, len(report.Quotes), len(report.Failures))
	fmt.Printf("total quoted: $%s, conditions seen: %v\n",
		report.TotalPrice().StringFixed(2), report.Conditions())
	fmt.Printf("heap delta: %+d bytes, GC runs: %d (%v paused), goroutines: %d -> %d\n",
		m.HeapAllocDelta, m.Collections, m.GCPause, m.GoroutinesStart, m.GoroutinesEnd)
}
