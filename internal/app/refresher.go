package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Refreshable is anything that can re-trigger its known targets.
type Refreshable interface {
	Refresh() int
}

// Refresher re-triggers known targets on a fixed interval, standing in for the
// scheduled job that keeps committed aggregates warm.
type Refresher struct {
	target   Refreshable
	interval time.Duration
	log      logrus.FieldLogger
}

func NewRefresher(target Refreshable, interval time.Duration, log logrus.FieldLogger) *Refresher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Refresher{target: target, interval: interval, log: log}
}

// Run blocks until ctx is done. A non-positive interval disables refreshing.
func (r *Refresher) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := r.target.Refresh()
			r.log.WithField("targets", n).Debug("scheduled refresh triggered")
		}
	}
}
