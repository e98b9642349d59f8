// Package sweeper periodically removes expired reservations.
package sweeper

import (
	"context"
	"log"
	"time"
)

// Target is the part of the booking service the sweeper drives.
type Target interface {
	PurgeExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
	ExpireHolds(ctx context.Context, now time.Time, ttl time.Duration) (int64, error)
}

// Sweeper purges reservations older than Retention and cancels pending
// holds older than HoldTTL every Interval.  OnChange, when set, runs after a
// sweep that removed or cancelled anything.
type Sweeper struct {
	Target    Target
	Interval  time.Duration
	Retention time.Duration
	HoldTTL   time.Duration

	Now      func() time.Time
	OnChange func(ctx context.Context)
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.  Errors and panics are logged; they never
// escape, so one failed run does not stop the next.
func (s *Sweeper) RunOnce(ctx context.Context) (purged, expired int64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("sweeper: run panicked: %v", r)
		}
	}()

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	n, err := s.Target.PurgeExpired(ctx, now, s.Retention)
	if err != nil {
		log.Printf("sweeper: purge failed: %v", err)
	} else {
		purged = n
		log.Printf("sweeper: purged %d reservations older than %s", n, now.Add(-s.Retention).Format(time.RFC3339))
	}

	n, err = s.Target.ExpireHolds(ctx, now, s.HoldTTL)
	if err != nil {
		log.Printf("sweeper: expire holds failed: %v", err)
	} else if n > 0 {
		expired = n
		log.Printf("sweeper: cancelled %d abandoned holds", n)
	}
	if s.OnChange != nil && purged+expired > 0 {
		s.OnChange(ctx)
	}
	return purged, expired
}
