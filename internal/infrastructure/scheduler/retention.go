// Package scheduler runs background maintenance jobs for the document service.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes stored documents older than a given age
type Sweeper interface {
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// RetentionConfig holds configuration for the retention sweeper
type RetentionConfig struct {
	// MaxAge is how long a stored document is kept
	MaxAge time.Duration
	// Interval is how often the sweep runs. Default: 1h
	Interval time.Duration
	// RunOnStart sweeps once immediately after Start
	RunOnStart bool
}

// DefaultRetentionConfig returns a config that keeps documents for 30 days
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		MaxAge:     30 * 24 * time.Hour,
		Interval:   time.Hour,
		RunOnStart: true,
	}
}

// Validate checks the configuration
func (c RetentionConfig) Validate() error {
	if c.MaxAge <= 0 {
		return fmt.Errorf("%w: max age must be positive", ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// RetentionSweeper periodically deletes expired documents from storage
type RetentionSweeper struct {
	config  RetentionConfig
	sweeper Sweeper
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   time.Time
	removed   int
}

// NewRetentionSweeper creates a sweeper; zero Interval takes the default
func NewRetentionSweeper(config RetentionConfig, sweeper Sweeper, logger *zap.Logger) (*RetentionSweeper, error) {
	if config.Interval == 0 {
		config.Interval = DefaultRetentionConfig().Interval
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if sweeper == nil {
		return nil, fmt.Errorf("%w: sweeper is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionSweeper{config: config, sweeper: sweeper, logger: logger}, nil
}

// Start launches the sweep loop
func (s *RetentionSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Retention sweeper started",
		zap.Duration("max_age", s.config.MaxAge),
		zap.Duration("interval", s.config.Interval),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep, bounded by ctx
func (s *RetentionSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Retention sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RetentionSweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.Sweep(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass and returns the number of removed documents
func (s *RetentionSweeper) Sweep(ctx context.Context) int {
	start := time.Now()
	n, err := s.sweeper.CleanupOlderThan(ctx, s.config.MaxAge)

	s.mu.Lock()
	s.lastRun = start
	s.removed += n
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Retention sweep failed",
			zap.Int("removed", n),
			zap.Error(err),
		)
		return n
	}
	if n > 0 {
		s.logger.Info("Retention sweep removed expired documents",
			zap.Int("removed", n),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return n
}

// Stats returns the last sweep time and the total removed since start
func (s *RetentionSweeper) Stats() (lastRun time.Time, removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.removed
}
