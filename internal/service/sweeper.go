package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiredSweeper is the part of TokenService the sweeper needs.
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically deletes expired refresh tokens.  Start runs one
// sweep immediately and then one per interval until Stop is called or the
// context passed to Start is cancelled.
type Sweeper struct {
	tokens   ExpiredSweeper
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(tokens ExpiredSweeper, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{tokens: tokens, interval: interval, logger: logger}
}

// Start launches the background loop.  Calling Start on a running sweeper
// is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep failures are logged and never stop the loop.
func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.tokens.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("refresh token sweep failed", "err", err)
		}
		return
	}
	if n > 0 {
		s.logger.Info("expired refresh tokens removed", "count", n)
	}
}
