package scheduler

import (
	"context"
	"time"
)

// Pinger keeps a remote service from idling out
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// Warmer precomputes cached views
type Warmer interface {
	Warm(ctx context.Context) error
}

// KeepAliveJob pings the verification API
func KeepAliveJob(schedule string, p Pinger) Job {
	return Job{
		Name:     "verification-keepalive",
		Schedule: schedule,
		Timeout:  15 * time.Second,
		Run: func(ctx context.Context) error {
			_, err := p.Ping(ctx)
			return err
		},
	}
}

// WarmUpJob refreshes the opportunity list cache
func WarmUpJob(schedule string, w Warmer) Job {
	return Job{
		Name:     "opportunity-warmup",
		Schedule: schedule,
		Timeout:  45 * time.Second,
		Run:      w.Warm,
	}
}
