package feedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
)

type countingFeed struct {
	calls int
	lists [][]string
	errs  []error
}

func (f *countingFeed) fetch(context.Context) ([]string, error) {
	i := f.calls
	f.calls++
	if i >= len(f.lists) {
		i = len(f.lists) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	return f.lists[i], nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestRandom_DrawsWithinTTLDoNotRefetch(t *testing.T) {
	items := []string{"a", "b", "c"}
	feed := &countingFeed{lists: [][]string{items}}
	clock := quartz.NewMock(t)
	c := New(feed.fetch, Options{TTL: time.Hour, Clock: clock})

	for i := 0; i < 100; i++ {
		item, ok := c.Random(context.Background())
		if !ok {
			t.Fatalf("Random() #%d returned no item", i)
		}
		if !contains(items, item) {
			t.Fatalf("Random() #%d = %q, not in %v", i, item, items)
		}
		clock.Advance(30 * time.Second)
	}
	if feed.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", feed.calls)
	}
}

func TestRandom_RefreshesWhenStale(t *testing.T) {
	feed := &countingFeed{lists: [][]string{{"old"}, {"new"}}}
	clock := quartz.NewMock(t)
	c := New(feed.fetch, Options{TTL: time.Hour, Clock: clock})

	if item, _ := c.Random(context.Background()); item != "old" {
		t.Fatalf("Random() = %q, want %q", item, "old")
	}

	clock.Advance(time.Hour)
	if item, _ := c.Random(context.Background()); item != "new" {
		t.Errorf("Random() after TTL = %q, want %q", item, "new")
	}
	if feed.calls != 2 {
		t.Errorf("fetch calls = %d, want 2", feed.calls)
	}
}

func TestRandom_FailedRefreshKeepsPreviousList(t *testing.T) {
	feed := &countingFeed{
		lists: [][]string{{"kept"}, nil},
		errs:  []error{nil, errors.New("feed down")},
	}
	clock := quartz.NewMock(t)
	var refreshErrs int
	c := New(feed.fetch, Options{
		Clock: clock,
		OnRefresh: func(_ int, err error) {
			if err != nil {
				refreshErrs++
			}
		},
	})

	c.Random(context.Background())
	clock.Advance(2 * time.Hour)

	item, ok := c.Random(context.Background())
	if !ok || item != "kept" {
		t.Errorf("Random() = %q, %v; want %q, true", item, ok, "kept")
	}
	if refreshErrs != 1 {
		t.Errorf("refresh errors = %d, want 1", refreshErrs)
	}
}

func TestRandom_EmptyFeed(t *testing.T) {
	feed := &countingFeed{
		lists: [][]string{nil, {"later"}},
		errs:  []error{errors.New("feed down")},
	}
	c := New(feed.fetch, Options{Clock: quartz.NewMock(t)})

	if _, ok := c.Random(context.Background()); ok {
		t.Fatal("Random() on failed first fetch returned an item")
	}
	// An empty cache is retried on the next draw, not after the TTL.
	item, ok := c.Random(context.Background())
	if !ok || item != "later" {
		t.Errorf("Random() = %q, %v; want %q, true", item, ok, "later")
	}
}

func TestRefresh_IgnoresCallerCancellation(t *testing.T) {
	c := New(func(ctx context.Context) ([]string, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := ctx.Deadline(); !ok {
			t.Error("refresh context has no deadline")
		}
		return []string{"a", "b"}, nil
	}, Options{Clock: quartz.NewMock(t)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := c.Items(); len(got) != 2 {
		t.Errorf("Items() = %v, want 2 items", got)
	}
}

func TestSnapshot(t *testing.T) {
	feed := &countingFeed{lists: [][]string{{"a", "b"}}}
	clock := quartz.NewMock(t)
	c := New(feed.fetch, Options{Clock: clock})

	s := c.Snapshot()
	if s.Items != 0 || s.LastUpdate != nil {
		t.Fatalf("Snapshot() before refresh = %+v, want empty", s)
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	s = c.Snapshot()
	if s.Items != 2 {
		t.Errorf("Snapshot().Items = %d, want 2", s.Items)
	}
	if s.LastUpdate == nil || !s.LastUpdate.Equal(clock.Now()) {
		t.Errorf("Snapshot().LastUpdate = %v, want %v", s.LastUpdate, clock.Now())
	}
	if got := c.Items(); len(got) != 2 {
		t.Errorf("Items() = %v, want 2 items", got)
	}
}
