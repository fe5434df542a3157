// Package saver debounces database snapshot writes. Mutations mark the
// database dirty; the coordinator coalesces bursts into one flush after a
// quiet window, with a hard ceiling so a steady write stream still hits
// disk regularly.
package saver

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/sshdeck/sshdeck/internal/database"
)

// Coordinator schedules snapshot flushes of the in-memory database.
type Coordinator struct {
	db       *sql.DB
	path     string
	quiet    time.Duration
	maxDelay time.Duration
	logger   *slog.Logger

	// trigger carries at most one pending wake-up; MarkDirty never blocks.
	trigger chan struct{}

	mu         sync.Mutex
	dirty      bool
	firstDirty time.Time

	done chan struct{}
	once sync.Once
}

// New creates a coordinator that snapshots db to path. A flush happens
// after quiet with no further marks, or maxDelay after the first unflushed
// mark, whichever comes first.
func New(db *sql.DB, path string, quiet, maxDelay time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		db:       db,
		path:     path,
		quiet:    quiet,
		maxDelay: maxDelay,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// MarkDirty records that the database changed. Safe from any goroutine and
// never blocks.
func (c *Coordinator) MarkDirty() {
	c.mu.Lock()
	if !c.dirty {
		c.dirty = true
		c.firstDirty = time.Now()
	}
	c.mu.Unlock()

	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Run drives the flush loop until ctx is cancelled or Close is called. A
// final flush runs on the way out so shutdown never loses marked changes.
func (c *Coordinator) Run(ctx context.Context) error {
	timer := time.NewTimer(c.quiet)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			c.flushIfDirty(context.Background())
			return ctx.Err()
		case <-c.done:
			c.flushIfDirty(context.Background())
			return nil
		case <-c.trigger:
			timer.Reset(c.delay())
		case <-timer.C:
			c.flushIfDirty(ctx)
		}
	}
}

// Flush forces an immediate snapshot regardless of dirtiness.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()

	start := time.Now()
	if err := database.Snapshot(ctx, c.db, c.path); err != nil {
		c.logger.Error("snapshot flush failed",
			slog.String("path", c.path),
			slog.Any("error", err),
		)
		return err
	}

	c.logger.Debug("snapshot flushed",
		slog.String("path", c.path),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// Close stops the run loop. Idempotent.
func (c *Coordinator) Close() {
	c.once.Do(func() { close(c.done) })
}

// delay returns how long to wait before the next flush: the quiet window,
// clipped so the total delay since the first unflushed mark never exceeds
// the ceiling.
func (c *Coordinator) delay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return c.quiet
	}

	deadline := c.firstDirty.Add(c.maxDelay)
	remaining := time.Until(deadline)
	if remaining < c.quiet {
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	return c.quiet
}

func (c *Coordinator) flushIfDirty(ctx context.Context) {
	c.mu.Lock()
	dirty := c.dirty
	c.mu.Unlock()
	if !dirty {
		return
	}
	_ = c.Flush(ctx)
}
