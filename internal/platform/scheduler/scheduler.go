package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/earnx/earnx/pkg/logger"
)

const defaultJobTimeout = 30 * time.Second

// Job is one unit of background work
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs cron jobs with a per-run timeout. A run that is still
// going when its next tick fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

// New creates a scheduler whose specs include a seconds field
func New(log *logger.Logger) *Scheduler {
	l := log.WithField("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger{l}), cron.SkipIfStillRunning(cronLogger{l})),
		),
		logger:  l,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds a job. It fails on an invalid spec or a duplicate name.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.Run == nil {
		return fmt.Errorf("register %s: no run function", job.Name)
	}
	if _, ok := s.entries[job.Name]; ok {
		return fmt.Errorf("register %s: already registered", job.Name)
	}

	id, err := s.cron.AddFunc(job.Schedule, func() { s.execute(job) })
	if err != nil {
		return fmt.Errorf("register %s: %w", job.Name, err)
	}
	s.entries[job.Name] = id
	s.logger.Info("job registered", "job", job.Name, "schedule", job.Schedule)
	return nil
}

// RunNow executes a registered job synchronously
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	s.cron.Entry(id).WrappedJob.Run()
	return nil
}

// Jobs returns the registered job names with their next run time
func (s *Scheduler) Jobs() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// Start begins firing jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))
}

// Stop cancels running jobs and waits for them to return or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) execute(job Job) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	start := time.Now()
	log := s.logger.WithField("job", job.Name)
	if err := job.Run(ctx); err != nil {
		log.WithDuration(time.Since(start)).Error("job failed", "error", err)
		return
	}
	log.WithDuration(time.Since(start)).Debug("job finished")
}

// cronLogger adapts the service logger to cron's logging interface
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
