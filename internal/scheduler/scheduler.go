// Package scheduler runs recurring maintenance work on cron
// schedules. Tasks inherit the context given to Start so a process
// shutdown cancels whatever is mid-flight.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/mediatheque/mediatheque/internal/logger"
)

// TaskFunc is one scheduled unit of work.
type TaskFunc func(ctx context.Context) error

// TaskConfig describes a task to register. RunOnStart additionally
// fires the task once right after Start, for catch-up work that
// should not wait for the next cron tick.
type TaskConfig struct {
	ID         string
	Name       string
	Cron       string
	RunOnStart bool
	Func       TaskFunc
}

// TaskInfo is the observable state of a registered task.
type TaskInfo struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Cron    string     `json:"cron"`
	LastRun *time.Time `json:"lastRun,omitempty"`
	NextRun *time.Time `json:"nextRun,omitempty"`
	Running bool       `json:"running"`
}

type taskEntry struct {
	config  TaskConfig
	job     gocron.Job
	lastRun *time.Time
	running bool
}

// Scheduler owns the cron jobs of a long-running process.
type Scheduler struct {
	gocron  gocron.Scheduler
	logger  *logger.Logger
	tasks   map[string]*taskEntry
	baseCtx context.Context
	mu      sync.RWMutex
}

// New creates an idle scheduler. Nothing runs until Start.
func New(log *logger.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		gocron:  gs,
		logger:  log.WithComponent("scheduler"),
		tasks:   make(map[string]*taskEntry),
		baseCtx: context.Background(),
	}, nil
}

// Register adds a cron task. IDs are unique; a malformed cron
// expression is rejected here, before the process settles into serving.
func (s *Scheduler) Register(config TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[config.ID]; exists {
		return fmt.Errorf("task %q already registered", config.ID)
	}

	job, err := s.gocron.NewJob(
		gocron.CronJob(config.Cron, false),
		gocron.NewTask(func() { s.execute(config.ID) }),
		gocron.WithName(config.Name),
		gocron.WithTags(config.ID),
	)
	if err != nil {
		return fmt.Errorf("schedule task %q: %w", config.ID, err)
	}

	s.tasks[config.ID] = &taskEntry{config: config, job: job}
	s.logger.Info().
		Str("id", config.ID).
		Str("cron", config.Cron).
		Bool("runOnStart", config.RunOnStart).
		Msg("Task registered")
	return nil
}

// Start begins firing cron ticks. ctx becomes the parent context of
// every task execution; cancelling it unwinds running tasks.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	var onStart []string
	for id, entry := range s.tasks {
		if entry.config.RunOnStart {
			onStart = append(onStart, id)
		}
	}
	s.mu.Unlock()

	s.logger.Info().Int("tasks", len(s.tasks)).Msg("Scheduler started")
	s.gocron.Start()

	for _, id := range onStart {
		go s.execute(id)
	}
}

// Stop shuts the cron loop down. Tasks already running finish on
// their own context.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("Scheduler stopping")
	return s.gocron.Shutdown()
}

// Tasks reports every registered task with its last and next run.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]TaskInfo, 0, len(s.tasks))
	for _, entry := range s.tasks {
		info := TaskInfo{
			ID:      entry.config.ID,
			Name:    entry.config.Name,
			Cron:    entry.config.Cron,
			LastRun: entry.lastRun,
			Running: entry.running,
		}
		if next, err := entry.job.NextRun(); err == nil {
			info.NextRun = &next
		}
		infos = append(infos, info)
	}
	return infos
}

func (s *Scheduler) execute(id string) {
	s.mu.Lock()
	entry, ok := s.tasks[id]
	if !ok || entry.running {
		s.mu.Unlock()
		return
	}
	entry.running = true
	ctx := s.baseCtx
	s.mu.Unlock()

	started := time.Now()
	s.logger.Info().Str("id", id).Str("name", entry.config.Name).Msg("Task starting")

	err := entry.config.Func(ctx)

	s.mu.Lock()
	entry.running = false
	entry.lastRun = &started
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).
			Str("id", id).
			Dur("duration", time.Since(started)).
			Msg("Task failed")
		return
	}
	s.logger.Info().
		Str("id", id).
		Dur("duration", time.Since(started)).
		Msg("Task completed")
}
