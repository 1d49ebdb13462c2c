package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs jobs on cron specs. A job that is still running when its next
// tick fires is skipped, and panics inside a job are recovered and logged.
type Scheduler struct {
	cron   *cron.Cron
	logger cron.Logger

	mu  sync.Mutex
	ctx context.Context
}

func New(logger cron.Logger) *Scheduler {
	if logger == nil {
		logger = cron.DiscardLogger
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		logger: logger,
		ctx:    context.Background(),
	}
}

func (s *Scheduler) AddJob(spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(s.context()); err != nil {
			s.logger.Error(err, "job failed", "spec", spec)
		}
	})
	return err
}

// Start begins firing jobs. Jobs receive ctx, so cancelling it aborts waits
// inside an in-flight job.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}
