package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSweeper struct {
	calls atomic.Int32
	ran   chan struct{}
	err   error
}

func (s *countingSweeper) SweepExpired(context.Context) (int64, error) {
	s.calls.Add(1)
	select {
	case s.ran <- struct{}{}:
	default:
	}
	return 1, s.err
}

func TestSweeper_RunsImmediatelyAndStops(t *testing.T) {
	fake := &countingSweeper{ran: make(chan struct{}, 1)}
	sw := NewSweeper(fake, time.Hour, discardLogger())
	sw.Start(context.Background())

	select {
	case <-fake.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not run on start")
	}

	stopped := make(chan struct{})
	go func() { sw.Stop(); close(stopped) }()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	if got := fake.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one sweep with an hourly interval, got %d", got)
	}
	sw.Stop() // second stop is a no-op
}

func TestSweeper_KeepsRunningAfterErrors(t *testing.T) {
	fake := &countingSweeper{ran: make(chan struct{}, 1), err: errors.New("db down")}
	sw := NewSweeper(fake, 10*time.Millisecond, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	sw.Start(ctx)

	deadline := time.After(2 * time.Second)
	for fake.calls.Load() < 3 {
		select {
		case <-fake.ran:
		case <-deadline:
			t.Fatalf("only %d sweeps ran", fake.calls.Load())
		}
	}
	cancel()
	sw.Stop()
}
