package challenge

import (
	"context"
	"time"

	"github.com/relabs-tech/workfit/core/logger"
)

// Resetter clears all cardio challenges every day at noon
type Resetter struct {
	store    Store
	location *time.Location
	now      func() time.Time
	after    func(d time.Duration) <-chan time.Time
}

// Resetter returns a resetter for the cardio challenges of the service
func (s *Service) Resetter() *Resetter {
	return &Resetter{store: s.cardioStore, location: s.location, now: s.now, after: time.After}
}

// Run sleeps until the next noon, clears the cardio challenges and repeats until
// the context is done.
func (r *Resetter) Run(ctx context.Context) error {
	rlog := logger.FromContext(ctx)
	for {
		now := r.now()
		wait := NextReset(now, r.location).Sub(now)
		rlog.Debugln("next cardio challenge reset in", FormatCountdown(wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.after(wait):
			if err := r.store.Clear(ctx); err != nil {
				rlog.WithError(err).Errorln("Error 4801: cannot reset cardio challenges")
				continue
			}
			rlog.Infoln("reset cardio challenges")
		}
	}
}
