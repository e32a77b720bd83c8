package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one run of a periodic task. ctx carries the per-run timeout.
type Job func(ctx context.Context) error

type entry struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	job      Job
}

// Scheduler runs background jobs at fixed intervals. A run that is still going
// when the next tick fires makes that tick a no-op.
type Scheduler struct {
	lg   *zap.Logger
	jobs []entry
}

func New(lg *zap.Logger) *Scheduler {
	return &Scheduler{lg: lg.Named("scheduler")}
}

// Every registers job to run every interval, each run bounded by timeout.
// Jobs must be registered before Run.
func (s *Scheduler) Every(name string, interval, timeout time.Duration, job Job) error {
	if interval < time.Second {
		return errors.Errorf("job %s: interval %s is below one second", name, interval)
	}
	s.jobs = append(s.jobs, entry{name: name, interval: interval, timeout: timeout, job: job})
	return nil
}

// Run starts the jobs and blocks until ctx is done and running jobs have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	l := cronLogger{lg: s.lg}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)

	for _, e := range s.jobs {
		spec := fmt.Sprintf("@every %s", e.interval)
		if _, err := c.AddFunc(spec, func() { s.runOnce(ctx, e) }); err != nil {
			return errors.Wrapf(err, "schedule %s", e.name)
		}
		s.lg.Info("Job scheduled", zap.String("job", e.name), zap.Duration("interval", e.interval))
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.lg.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context, e entry) {
	if ctx.Err() != nil {
		return
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := e.job(ctx); err != nil {
		s.lg.Error("Job failed", zap.String("job", e.name), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	s.lg.Debug("Job done", zap.String("job", e.name), zap.Duration("duration", time.Since(start)))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	lg *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.lg.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.lg.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
