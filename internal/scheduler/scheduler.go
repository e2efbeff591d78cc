// Package scheduler takes portfolio snapshots on a cron schedule. Logins run
// behind a circuit breaker so repeated authentication failures stop hitting
// the portal before the account is locked.
package scheduler

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/monitoring"
	"github.com/sells-group/portfolio-cli/internal/pipeline"
	"github.com/sells-group/portfolio-cli/internal/resilience"
	"github.com/sells-group/portfolio-cli/internal/session"
)

// Scraper takes one portfolio snapshot.
type Scraper interface {
	Scrape(ctx context.Context, creds session.Credentials) (*pipeline.Result, error)
}

// Saver persists a snapshot.
type Saver interface {
	Save(ctx context.Context, p *model.Portfolio) error
}

// Notifier is told the outcome of every scheduled snapshot.
type Notifier interface {
	Notify(ctx context.Context, o monitoring.Outcome)
}

// Scheduler manages the snapshot cron job.
type Scheduler struct {
	cron     *cron.Cron
	scraper  Scraper
	saver    Saver
	creds    session.Credentials
	breaker  *resilience.CircuitBreaker
	notifier Notifier
	ctx      context.Context
}

// New creates a Scheduler. Jobs started by the cron run under ctx.
func New(ctx context.Context, scraper Scraper, saver Saver, creds session.Credentials, breaker *resilience.CircuitBreaker) *Scheduler {
	logger := cronLogger{l: zap.L()}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		scraper: scraper,
		saver:   saver,
		creds:   creds,
		breaker: breaker,
		ctx:     ctx,
	}
}

// SetNotifier reports scheduled outcomes to n.
func (s *Scheduler) SetNotifier(n Notifier) {
	s.notifier = n
}

// Register adds the snapshot job at the given six-field cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.snapshotTask); err != nil {
		return eris.Wrapf(err, "scheduler: register snapshot job %q", spec)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	zap.L().Info("scheduler: started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	zap.L().Info("scheduler: stopped")
}

// RunOnce takes and saves one snapshot through the login circuit breaker.
// It returns resilience.ErrCircuitOpen without touching the portal while
// the circuit is open.
func (s *Scheduler) RunOnce(ctx context.Context) (*pipeline.Result, error) {
	var res *pipeline.Result
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		r, err := s.scraper.Scrape(ctx, s.creds)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.saver.Save(ctx, res.Portfolio); err != nil {
		return res, eris.Wrap(err, "scheduler: save snapshot")
	}
	return res, nil
}

func (s *Scheduler) snapshotTask() {
	zap.L().Info("scheduler: running snapshot")
	res, err := s.RunOnce(s.ctx)
	s.notify(res, err)
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		zap.L().Warn("scheduler: login circuit open, snapshot skipped",
			zap.String("circuit", s.breaker.State().String()),
		)
	case err != nil:
		kind, _ := model.KindOf(err)
		zap.L().Error("scheduler: snapshot failed",
			zap.String("kind", string(kind)),
			zap.Bool("retryable", kind.Retryable()),
			zap.Int("login_failures", s.breaker.Failures()),
			zap.Error(err),
		)
	default:
		zap.L().Info("scheduler: snapshot saved",
			zap.Time("snapshot_at", res.Portfolio.SnapshotDate()),
			zap.Int("holdings", res.Portfolio.Len()),
			zap.Int("warnings", len(res.Warnings)),
		)
	}
}

func (s *Scheduler) notify(res *pipeline.Result, err error) {
	if s.notifier == nil {
		return
	}
	o := monitoring.Outcome{Err: err}
	if res != nil && err == nil {
		o.Warnings = len(res.Warnings)
		o.Holdings = res.Portfolio.Len()
	}
	s.notifier.Notify(s.ctx, o)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Sugar().Debugw("scheduler: cron "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Sugar().Errorw("scheduler: cron "+msg, append(keysAndValues, "error", err)...)
}
