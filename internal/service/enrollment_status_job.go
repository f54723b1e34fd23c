package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type statusSweeper interface {
	RunStatusSweeps(ctx context.Context) (int, error)
}

// EnrollmentStatusJob periodically runs the time-driven enrollment sweeps.
type EnrollmentStatusJob struct {
	sweeper  statusSweeper
	logger   *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewEnrollmentStatusJob constructs the job.
func NewEnrollmentStatusJob(sweeper statusSweeper, logger *zap.Logger, interval time.Duration) *EnrollmentStatusJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &EnrollmentStatusJob{sweeper: sweeper, logger: logger, interval: interval}
}

// Start launches the ticker loop. Safe to call once.
func (j *EnrollmentStatusJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return
	}
	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})
	j.started = true

	go j.run(ctx)
	j.logger.Info("enrollment status job started", zap.Duration("interval", j.interval))
}

// Stop terminates the ticker loop and waits for it to exit.
func (j *EnrollmentStatusJob) Stop() {
	j.mu.Lock()
	if !j.started {
		j.mu.Unlock()
		return
	}
	j.cancel()
	done := j.done
	j.mu.Unlock()
	<-done
	j.logger.Info("enrollment status job stopped")
}

func (j *EnrollmentStatusJob) run(ctx context.Context) {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.sweeper.RunStatusSweeps(ctx); err != nil {
				j.logger.Error("enrollment status sweep failed", zap.Error(err))
			}
		}
	}
}
