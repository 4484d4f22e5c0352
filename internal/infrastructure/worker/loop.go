package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stats is a snapshot of a polling worker's progress
type Stats struct {
	Runs      int
	Failures  int
	LastRun   time.Time
	LastError string
}

// pollLoop runs a job on a fixed interval until stopped.
// The first run happens immediately on Start.
type pollLoop struct {
	name     string
	interval time.Duration
	job      func(ctx context.Context) error
	logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	stats     Stats
}

func newPollLoop(name string, interval time.Duration, job func(ctx context.Context) error, logger *zap.Logger) *pollLoop {
	return &pollLoop{
		name:     name,
		interval: interval,
		job:      job,
		logger:   logger.With(zap.String("worker", name)),
	}
}

// Start begins the polling loop in a background goroutine
func (l *pollLoop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isRunning {
		return fmt.Errorf("%s already running", l.name)
	}
	if l.interval <= 0 {
		return fmt.Errorf("%s: interval must be positive", l.name)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.isRunning = true

	go l.run(loopCtx, l.done)

	l.logger.Info("Worker loop started", zap.Duration("interval", l.interval))
	return nil
}

// Stop cancels the loop and waits for the in-flight run to finish
func (l *pollLoop) Stop() error {
	l.mu.Lock()
	if !l.isRunning {
		l.mu.Unlock()
		return nil
	}
	l.isRunning = false
	l.cancel()
	done := l.done
	l.mu.Unlock()

	<-done

	stats := l.Stats()
	l.logger.Info("Worker loop stopped",
		zap.Int("runs", stats.Runs),
		zap.Int("failures", stats.Failures))
	return nil
}

// Name returns the worker name for identification
func (l *pollLoop) Name() string {
	return l.name
}

// Stats returns the progress counters
func (l *pollLoop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *pollLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.runOnce(ctx)
		}
	}
}

func (l *pollLoop) runOnce(ctx context.Context) {
	err := l.job(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.Runs++
	l.stats.LastRun = time.Now()
	if err != nil && ctx.Err() == nil {
		l.stats.Failures++
		l.stats.LastError = err.Error()
		l.logger.Error("Worker run failed", zap.Error(err))
	}
}
