package provider

import (
	"context"
	"time"
)

// SyntheticFetcher generates work locally. Used for development and in
// tests where no upstream exists.
type SyntheticFetcher struct {
	// Units is the batch size every Fetch yields.
	Units float64
	// Delay simulates upstream latency. Fetch returns early with the
	// context error if cancelled mid-delay.
	Delay time.Duration
}

// NewSyntheticFetcher creates a generator yielding units per fetch.
func NewSyntheticFetcher(units float64, delay time.Duration) *SyntheticFetcher {
	return &SyntheticFetcher{Units: units, Delay: delay}
}

// Fetch waits out the configured delay and returns the batch size.
func (f *SyntheticFetcher) Fetch(ctx context.Context) (float64, error) {
	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(f.Delay):
		}
	}
	return f.Units, nil
}
