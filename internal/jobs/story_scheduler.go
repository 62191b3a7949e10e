package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"quotecast/internal/config"
	"quotecast/internal/models"
	"quotecast/internal/story"
)

var (
	ErrAlreadyRunning = errors.New("story scheduler is already running")
	ErrNotRunning     = errors.New("story scheduler is not running")
)

// runTimeout bounds one build-and-post run, including the image download.
const runTimeout = 2 * time.Minute

// StoryBuilder produces a story ready to post.
type StoryBuilder interface {
	Build(ctx context.Context) (*models.Story, error)
}

// HistoryStore records publish attempts.
type HistoryStore interface {
	CreateStoryPost(ctx context.Context, p *models.StoryPost) error
}

// PostRecorder counts publish attempts.
type PostRecorder interface {
	RecordStoryPost(status string)
}

// RunResult is the outcome of the most recent run.
type RunResult struct {
	At      time.Time  `json:"at"`
	Status  string     `json:"status"`
	StoryID *uuid.UUID `json:"story_id,omitempty"`
	Title   string     `json:"title,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// SchedulerStatus describes the scheduler for the control API.
type SchedulerStatus struct {
	Running  bool        `json:"is_running"`
	Times    []string    `json:"story_times"`
	Days     string      `json:"story_days"`
	NextRuns []time.Time `json:"next_runs,omitempty"`
	LastRun  *RunResult  `json:"last_run,omitempty"`
}

// StoryScheduler posts a story at each configured time of day.
type StoryScheduler struct {
	builder  StoryBuilder
	poster   story.Poster
	history  HistoryStore
	recorder PostRecorder
	times    []config.ClockTime
	days     string
	loc      *time.Location
	clock    quartz.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	lastRun *RunResult
}

// SchedulerOptions holds the optional collaborators of a StoryScheduler.
type SchedulerOptions struct {
	History  HistoryStore
	Recorder PostRecorder
	Clock    quartz.Clock
	Logger   *slog.Logger
}

// NewStoryScheduler creates a stopped scheduler from the story settings.
func NewStoryScheduler(cfg *config.StoryConfig, builder StoryBuilder, poster story.Poster, opts SchedulerOptions) (*StoryScheduler, error) {
	times, err := cfg.ParseTimes()
	if err != nil {
		return nil, err
	}
	days, err := cfg.CronDays()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	s := &StoryScheduler{
		builder:  builder,
		poster:   poster,
		history:  opts.History,
		recorder: opts.Recorder,
		times:    times,
		days:     days,
		loc:      loc,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Start schedules one run per configured time.
func (s *StoryScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyRunning
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	for _, t := range s.times {
		spec := fmt.Sprintf("%d %d * * %s", t.Minute, t.Hour, s.days)
		if _, err := c.AddFunc(spec, s.scheduledRun); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", t, err)
		}
		s.logger.Info("story scheduled", "time", t.String(), "days", s.days)
	}

	c.Start()
	s.cron = c
	s.logger.Info("story scheduler started", "times", s.timeStrings())
	return nil
}

// Stop removes all scheduled runs and waits for an in-progress run.
func (s *StoryScheduler) Stop() error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return ErrNotRunning
	}
	<-c.Stop().Done()
	s.logger.Info("story scheduler stopped")
	return nil
}

// Running reports whether runs are scheduled.
func (s *StoryScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Status returns the schedule and the last run.
func (s *StoryScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SchedulerStatus{
		Running: s.cron != nil,
		Times:   s.timeStrings(),
		Days:    s.days,
	}
	if s.cron != nil {
		for _, e := range s.cron.Entries() {
			st.NextRuns = append(st.NextRuns, e.Next)
		}
	}
	if s.lastRun != nil {
		r := *s.lastRun
		st.LastRun = &r
	}
	return st
}

// PostNow builds and posts a story immediately, whether or not the
// scheduler is running.
func (s *StoryScheduler) PostNow(ctx context.Context) (*models.Story, error) {
	return s.run(ctx)
}

// Preview builds a story without posting or recording it.
func (s *StoryScheduler) Preview(ctx context.Context) (*models.Story, error) {
	return s.builder.Build(ctx)
}

func (s *StoryScheduler) scheduledRun() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	s.logger.Info("scheduled story run")
	if _, err := s.run(ctx); err != nil {
		s.logger.Warn("scheduled story run failed", "error", err)
	}
}

func (s *StoryScheduler) run(ctx context.Context) (*models.Story, error) {
	st, err := s.builder.Build(ctx)
	if err != nil {
		status := models.PostFailed
		if errors.Is(err, story.ErrNoItems) || errors.Is(err, story.ErrNoImage) {
			status = models.PostSkipped
		}
		s.record(ctx, nil, status, err)
		return nil, err
	}

	if err := s.poster.Post(ctx, st); err != nil {
		s.record(ctx, st, models.PostFailed, err)
		return st, fmt.Errorf("failed to post story: %w", err)
	}

	s.record(ctx, st, models.PostPublished, nil)
	return st, nil
}

func (s *StoryScheduler) record(ctx context.Context, st *models.Story, status string, runErr error) {
	result := &RunResult{At: s.clock.Now(), Status: status}
	post := &models.StoryPost{Status: status}
	if st != nil {
		id := st.ID
		result.StoryID = &id
		result.Title = st.Title
		post.ID = st.ID
		post.Title = st.Title
		post.Text = st.Text
		post.ImageURL = st.ImageURL
	}
	if runErr != nil {
		msg := runErr.Error()
		result.Error = msg
		post.Error = &msg
	}

	s.mu.Lock()
	s.lastRun = result
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordStoryPost(status)
	}
	if s.history != nil {
		if err := s.history.CreateStoryPost(ctx, post); err != nil {
			s.logger.Error("failed to record story post", "status", status, "error", err)
		}
	}
}

func (s *StoryScheduler) timeStrings() []string {
	out := make([]string, len(s.times))
	for i, t := range s.times {
		out[i] = t.String()
	}
	return out
}
