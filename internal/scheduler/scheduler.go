// Package scheduler triggers reconciliations for the application shell.
//
// At start it runs the init hook once and, if someone is signed in, syncs.
// After that it syncs on a fixed interval, skipping ticks while nobody is
// signed in. Sync outcomes are never inspected here; they are published
// through the hub.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval is the period between background syncs.
const DefaultInterval = 3 * time.Minute

// Syncer runs one reconciliation. *syncer.Controller implements it.
type Syncer interface {
	Sync(ctx context.Context)
}

// Session reports whether a user is signed in. *session.Manager implements it.
type Session interface {
	SignedIn() bool
}

// Scheduler drives a Syncer.
type Scheduler struct {
	syncer   Syncer
	session  Session
	interval time.Duration
	init     func(ctx context.Context) error
	logger   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the period between background syncs.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithInit sets a hook run once before anything else.
func WithInit(fn func(ctx context.Context) error) Option {
	return func(s *Scheduler) { s.init = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a scheduler.
func New(sy Syncer, sess Session, opts ...Option) *Scheduler {
	s := &Scheduler{
		syncer:   sy,
		session:  sess,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is done. It returns an error only if the init hook
// fails; cancellation is a normal stop.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.init != nil {
		if err := s.init(ctx); err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}

	s.tick(ctx, "startup")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx, "interval")
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, reason string) {
	if !s.session.SignedIn() {
		s.logger.Debug("sync skipped, nobody signed in", "reason", reason)
		return
	}
	s.logger.Debug("sync triggered", "reason", reason)
	s.syncer.Sync(ctx)
}
