package server

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, _ string, _ time.Duration) (bool, func(), error) {
	if l.err != nil {
		return false, func() {}, l.err
	}
	if l.held {
		return false, func() {}, nil
	}
	l.held = true
	return true, func() { l.held = false; l.released++ }, nil
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	if _, err := NewScheduler("not a cron", func(context.Context) error { return nil }, nil, quiet()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSchedulerNext(t *testing.T) {
	s, err := NewScheduler("0 3 * * *", func(context.Context) error { return nil }, nil, quiet())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	from := time.Date(2024, 5, 1, 4, 0, 0, 0, time.UTC)
	next := s.Next(from)
	want := time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestFireRespectsLock(t *testing.T) {
	runs := 0
	locker := &fakeLocker{}
	s, err := NewScheduler("@hourly", func(context.Context) error { runs++; return errors.New("boom") }, locker, quiet())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if !s.Fire(context.Background()) {
		t.Fatalf("expected job to run")
	}
	if runs != 1 || locker.released != 1 || locker.held {
		t.Fatalf("runs=%d released=%d held=%v", runs, locker.released, locker.held)
	}

	locker.held = true
	if s.Fire(context.Background()) {
		t.Fatalf("expected skip while lock is held elsewhere")
	}
	locker.held = false
	locker.err = errors.New("redis down")
	if s.Fire(context.Background()) || runs != 1 {
		t.Fatalf("expected skip on lock error, runs=%d", runs)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	s, err := NewScheduler("@yearly", func(context.Context) error { return nil }, nil, quiet())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Start(ctx); close(done) }()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
}
