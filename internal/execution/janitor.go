package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	robfigcron "github.com/robfig/cron/v3"
)

// Janitor periodically sweeps a Coordinator for timed-out and expired
// invocations.
type Janitor struct {
	coord *Coordinator
	every time.Duration
	cron  *robfigcron.Cron
}

// NewJanitor returns a Janitor sweeping coord every interval (minimum one second).
func NewJanitor(coord *Coordinator, every time.Duration) *Janitor {
	if every < time.Second {
		every = time.Second
	}
	return &Janitor{
		coord: coord,
		every: every,
		cron:  robfigcron.New(robfigcron.WithSeconds()),
	}
}

// Start schedules the sweep and blocks until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", j.every)
	if _, err := j.cron.AddFunc(spec, j.sweep); err != nil {
		return fmt.Errorf("janitor: schedule %q: %w", spec, err)
	}

	j.cron.Start()
	slog.Info("execution: janitor started", "every", j.every)

	<-ctx.Done()

	<-j.cron.Stop().Done()
	return ctx.Err()
}

func (j *Janitor) sweep() {
	timedOut, pruned := j.coord.Sweep(j.coord.now())
	if timedOut > 0 || pruned > 0 {
		slog.Debug("execution: sweep", "timed_out", timedOut, "pruned", pruned)
	}
}
