package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"go.uber.org/goleak"

	"quotecast/internal/config"
	"quotecast/internal/models"
	"quotecast/internal/story"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubBuilder struct {
	story *models.Story
	err   error
}

func (b stubBuilder) Build(context.Context) (*models.Story, error) { return b.story, b.err }

type stubPoster struct {
	err   error
	posts int32
}

func (p *stubPoster) Post(context.Context, *models.Story) error {
	atomic.AddInt32(&p.posts, 1)
	return p.err
}

type memHistory struct {
	mu    sync.Mutex
	posts []models.StoryPost
}

func (h *memHistory) CreateStoryPost(_ context.Context, p *models.StoryPost) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.posts = append(h.posts, *p)
	return nil
}

type countRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countRecorder) RecordStoryPost(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[status]++
}

func testStoryConfig() *config.StoryConfig {
	return &config.StoryConfig{
		FeedURL:  "http://feed.example.com",
		Times:    []string{"09:00", "18:30"},
		Days:     "mon,fri",
		Timezone: "UTC",
	}
}

func TestStoryScheduler_StartStop(t *testing.T) {
	s, err := NewStoryScheduler(testStoryConfig(), stubBuilder{}, &stubPoster{}, SchedulerOptions{})
	if err != nil {
		t.Fatalf("NewStoryScheduler() error = %v", err)
	}

	if err := s.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() on stopped scheduler error = %v, want %v", err, ErrNotRunning)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.Running() {
		t.Error("Running() = false after Start()")
	}
	if err := s.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want %v", err, ErrAlreadyRunning)
	}

	st := s.Status()
	if !st.Running || st.Days != "MON,FRI" {
		t.Errorf("Status() = %+v", st)
	}
	if len(st.Times) != 2 || st.Times[0] != "09:00" || st.Times[1] != "18:30" {
		t.Errorf("Status().Times = %v", st.Times)
	}
	if len(st.NextRuns) != 2 {
		t.Errorf("len(Status().NextRuns) = %d, want 2", len(st.NextRuns))
	}
	for _, next := range st.NextRuns {
		if wd := next.Weekday(); wd != time.Monday && wd != time.Friday {
			t.Errorf("next run on %v, want Monday or Friday", wd)
		}
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.Running() {
		t.Error("Running() = true after Stop()")
	}
}

func TestStoryScheduler_PostNow(t *testing.T) {
	built := &models.Story{ID: uuid.New(), Title: "Sedan X", Text: "Only 100", ImageURL: "http://img"}

	tests := []struct {
		name       string
		builder    stubBuilder
		posterErr  error
		wantStatus string
		wantErr    bool
		wantPosts  int32
	}{
		{"published", stubBuilder{story: built}, nil, models.PostPublished, false, 1},
		{"post fails", stubBuilder{story: built}, errors.New("telegram down"), models.PostFailed, true, 1},
		{"no items", stubBuilder{err: story.ErrNoItems}, nil, models.PostSkipped, true, 0},
		{"no image", stubBuilder{err: story.ErrNoImage}, nil, models.PostSkipped, true, 0},
		{"download fails", stubBuilder{err: errors.New("HTTP 500")}, nil, models.PostFailed, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poster := &stubPoster{err: tt.posterErr}
			history := &memHistory{}
			recorder := &countRecorder{}
			clock := quartz.NewMock(t)
			s, err := NewStoryScheduler(testStoryConfig(), tt.builder, poster, SchedulerOptions{
				History:  history,
				Recorder: recorder,
				Clock:    clock,
			})
			if err != nil {
				t.Fatalf("NewStoryScheduler() error = %v", err)
			}

			_, err = s.PostNow(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("PostNow() error = %v, wantErr %v", err, tt.wantErr)
			}
			if poster.posts != tt.wantPosts {
				t.Errorf("posts = %d, want %d", poster.posts, tt.wantPosts)
			}
			if len(history.posts) != 1 || history.posts[0].Status != tt.wantStatus {
				t.Fatalf("history = %+v, want one %q post", history.posts, tt.wantStatus)
			}
			if recorder.counts[tt.wantStatus] != 1 {
				t.Errorf("recorder = %v, want one %q", recorder.counts, tt.wantStatus)
			}

			last := s.Status().LastRun
			if last == nil || last.Status != tt.wantStatus || !last.At.Equal(clock.Now()) {
				t.Errorf("Status().LastRun = %+v", last)
			}
			if tt.wantErr && (history.posts[0].Error == nil || last.Error == "") {
				t.Errorf("error not recorded: %+v", history.posts[0])
			}
		})
	}
}

func TestStoryScheduler_Preview(t *testing.T) {
	built := &models.Story{ID: uuid.New(), Title: "Preview"}
	poster := &stubPoster{}
	s, err := NewStoryScheduler(testStoryConfig(), stubBuilder{story: built}, poster, SchedulerOptions{})
	if err != nil {
		t.Fatalf("NewStoryScheduler() error = %v", err)
	}

	got, err := s.Preview(context.Background())
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if got.Title != "Preview" {
		t.Errorf("Preview().Title = %q", got.Title)
	}
	if poster.posts != 0 || s.Status().LastRun != nil {
		t.Error("Preview() must not post or record")
	}
}

func TestNewStoryScheduler_InvalidConfig(t *testing.T) {
	cfg := testStoryConfig()
	cfg.Times = []string{"25:00"}
	if _, err := NewStoryScheduler(cfg, stubBuilder{}, &stubPoster{}, SchedulerOptions{}); err == nil {
		t.Error("NewStoryScheduler() error = nil, want error")
	}
}

type countingRefresher struct {
	calls atomic.Int32
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls.Add(1)
	return nil
}

func TestFeedRefresher(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := quartz.NewMock(t)
	trap := clock.Trap().TickerFunc("feed_refresher")
	defer trap.Close()

	cache := &countingRefresher{}
	r := NewFeedRefresher(cache, time.Hour, clock, nil)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Start(runCtx)
	}()

	trap.MustWait(ctx).MustRelease(ctx)
	if got := cache.calls.Load(); got != 1 {
		t.Errorf("refreshes after start = %d, want 1", got)
	}

	clock.Advance(time.Hour).MustWait(ctx)
	if got := cache.calls.Load(); got != 2 {
		t.Errorf("refreshes after one interval = %d, want 2", got)
	}

	stop()
	<-done
}
