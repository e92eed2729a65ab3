// Package weather simulates a capacity-constrained forecast service.
package weather

import (
	"context"
	"hash/fnv"
	"time"
)

// Condition is one of a fixed set of forecast outcomes.
type Condition string

const (
	Sunny  Condition = "Sunny"
	Cloudy Condition = "Cloudy"
	Rainy  Condition = "Rainy"
	Stormy Condition = "Stormy"
	Snowy  Condition = "Snowy"
	Windy  Condition = "Windy"
	Foggy  Condition = "Foggy"
	Icy    Condition = "Icy"
)

// Conditions is the default set of outcomes a forecast may produce.
var Conditions = []Condition{Sunny, Cloudy, Rainy, Stormy, Snowy, Windy, Foggy, Icy}

// Forecaster produces the forecast for a destination.
type Forecaster interface {
	Forecast(ctx context.Context, destination string) (Condition, error)
}

// Service is a stand-in for a remote forecast service. Each call blocks for a
// fixed delay, then returns a condition chosen deterministically from the
// destination, so repeated calls for one destination always agree.
type Service struct {
	delay      time.Duration
	conditions []Condition
}

// NewService creates a Service with the provided simulated call delay,
// choosing outcomes from the provided conditions, or from [Conditions] when
// none are given.
func NewService(delay time.Duration, conditions ...Condition) *Service {
	if len(conditions) == 0 {
		conditions = Conditions
	}
	return &Service{delay: delay, conditions: conditions}
}

// Forecast returns the forecast for a destination after the service's delay,
// or ctx.Err() if ctx is canceled first.
func (s *Service) Forecast(ctx context.Context, destination string) (Condition, error) {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return s.conditions[int(hash(destination)%uint32(len(s.conditions)))], nil
}

func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
