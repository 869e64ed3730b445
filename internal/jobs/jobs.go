// Package jobs runs periodic maintenance on a cron schedule.
//
// Currently registered:
//
//   - idempotency_sweep: purges expired Idempotency-Key records so replay
//     lookups stay bounded.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/civic-report-backend/internal/repo"
)

var (
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_runs_total",
			Help: "Scheduled job runs by job and outcome.",
		},
		[]string{"job", "outcome"},
	)
	idempotencySwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idempotency_records_swept_total",
			Help: "Expired idempotency records deleted by the sweep job.",
		},
	)
)

func init() {
	prometheus.MustRegister(jobRuns, idempotencySwept)
}

// jobTimeout bounds a single run.
const jobTimeout = 30 * time.Second

// Scheduler wraps a cron runner whose jobs recover from panics and never
// overlap with themselves.
type Scheduler struct {
	c   *cron.Cron
	log zerolog.Logger
}

// NewScheduler builds a stopped Scheduler. Specs accept the standard five
// fields plus descriptors such as "@every 15m".
func NewScheduler(l zerolog.Logger) *Scheduler {
	cl := cronLogger{l: l}
	return &Scheduler{
		c: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: l,
	}
}

// Add registers fn under name. Each run gets its own timeout context.
func (s *Scheduler) Add(spec, name string, fn func(ctx context.Context) error) error {
	_, err := s.c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		if err := fn(ctx); err != nil {
			jobRuns.WithLabelValues(name, "error").Inc()
			s.log.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		jobRuns.WithLabelValues(name, "ok").Inc()
		s.log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("job done")
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() { s.c.Start() }

// Stop halts scheduling and waits for running jobs, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// IdempotencySweep returns a job that deletes records expired as of now().
func IdempotencySweep(db *gorm.DB, now func() time.Time, l zerolog.Logger) func(context.Context) error {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		n, err := repo.DeleteExpiredIdempotency(ctx, db, now().UTC())
		if err != nil {
			return err
		}
		if n > 0 {
			idempotencySwept.Add(float64(n))
			l.Info().Int64("deleted", n).Msg("idempotency sweep")
		}
		return nil
	}
}

// RegisterDefaults schedules the built-in maintenance jobs.
func RegisterDefaults(s *Scheduler, db *gorm.DB, sweepSpec string) error {
	return s.Add(sweepSpec, "idempotency_sweep", IdempotencySweep(db, nil, s.log))
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
