package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is the work performed on every tick of a job
type JobFunc func(ctx context.Context) error

// Job describes a registered housekeeping job
type Job struct {
	Name       string
	Expression string
	Runs       int
	Failures   int
	LastError  string
	LastRun    time.Time
	NextRun    time.Time
}

type entry struct {
	job     Job
	fn      JobFunc
	entryID cron.EntryID
}

// CronScheduler runs named housekeeping jobs on cron expressions.
// Expressions accept an optional seconds field and descriptors such as @every 15s.
type CronScheduler struct {
	logger *zap.Logger
	cron   *cron.Cron
	parser cron.Parser

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]*entry
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}

// NewCronScheduler creates a stopped scheduler
func NewCronScheduler(logger *zap.Logger) *CronScheduler {
	logger = logger.Named("cron")
	cl := &cronLogger{logger: logger}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	return &CronScheduler{
		logger: logger,
		parser: parser,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:     context.Background(),
		entries: make(map[string]*entry),
	}
}

// Start begins running jobs; ctx is handed to every job run
func (s *CronScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Housekeeping scheduler started", zap.Int("jobs", len(s.ListJobs())))
}

// Stop stops scheduling and waits for running jobs to finish
func (s *CronScheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Housekeeping scheduler stopped")
}

// AddJob registers fn under name to run on expression
func (s *CronScheduler) AddJob(name, expression string, fn JobFunc) error {
	schedule, err := s.parser.Parse(expression)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSpec, expression, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}

	e := &entry{
		job: Job{
			Name:       name,
			Expression: expression,
			NextRun:    schedule.Next(time.Now()),
		},
		fn: fn,
	}
	e.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.run(name)
	}))
	s.entries[name] = e

	s.logger.Info("Added job",
		zap.String("name", name),
		zap.String("expression", expression),
		zap.Time("next_run", e.job.NextRun))
	return nil
}

// RemoveJob unregisters a job
func (s *CronScheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	s.cron.Remove(e.entryID)
	delete(s.entries, name)

	s.logger.Info("Removed job", zap.String("name", name))
	return nil
}

// GetJob returns a copy of a job's state
func (s *CronScheduler) GetJob(name string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return e.job, nil
}

// ListJobs returns every job sorted by name
func (s *CronScheduler) ListJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.entries))
	for _, e := range s.entries {
		jobs = append(jobs, e.job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// RunNow runs a job synchronously outside its schedule
func (s *CronScheduler) RunNow(name string) error {
	s.mu.Lock()
	_, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.run(name)
}

func (s *CronScheduler) run(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	ctx := s.ctx
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	start := time.Now()
	err := e.fn(ctx)

	s.mu.Lock()
	e.job.Runs++
	e.job.LastRun = start
	if entry := s.cron.Entry(e.entryID); entry.Valid() && !entry.Next.IsZero() {
		e.job.NextRun = entry.Next
	}
	if err != nil {
		e.job.Failures++
		e.job.LastError = err.Error()
	} else {
		e.job.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Job failed",
			zap.String("name", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return err
	}

	s.logger.Debug("Job finished",
		zap.String("name", name),
		zap.Duration("duration", time.Since(start)))
	return nil
}
