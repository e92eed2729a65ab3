package weather_test

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmill/tripmill/internal/weather"
)

func TestForecastDeterminism(t *testing.T) {
	svc := weather.NewService(0)
	first, err := svc.Forecast(context.Background(), "Destination_7")
	require.NoError(t, err)
	assert.Contains(t, weather.Conditions, first)

	for range 3 {
		again, err := svc.Forecast(context.Background(), "Destination_7")
		require.NoError(t, err)
		assert.Equal(t, first, again, "Forecast changed between calls")
	}
}

func TestForecastDelay(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		const delay = 200 * time.Millisecond
		svc := weather.NewService(delay)

		start := time.Now()
		_, err := svc.Forecast(context.Background(), "Destination_1")
		require.NoError(t, err)
		assert.Equal(t, delay, time.Since(start))
	})
}

func TestForecastCancellation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		svc := weather.NewService(time.Hour)
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()

		_, err := svc.Forecast(ctx, "Destination_1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestForecastCustomConditions(t *testing.T) {
	svc := weather.NewService(0, weather.Sunny)
	condition, err := svc.Forecast(context.Background(), "anywhere")
	require.NoError(t, err)
	assert.Equal(t, weather.Sunny, condition)
}
