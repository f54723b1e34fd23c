package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushub/enrollment-api/internal/models"
	"github.com/campushub/enrollment-api/pkg/jobs"
)

type auditWriter interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, action, resource string, limit int) ([]models.AuditLog, error)
}

// AuditConfig tunes the background audit writer.
type AuditConfig struct {
	Workers    int
	MaxRetries int
}

// AuditService writes audit trail entries asynchronously through a worker
// queue so request latency never depends on the audit table.
type AuditService struct {
	repo   auditWriter
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the audit service and its queue.
func NewAuditService(repo auditWriter, logger *zap.Logger, cfg AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry. Failures are logged, never propagated.
func (s *AuditService) Record(entry *models.AuditLog) {
	if entry == nil {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    entry.Action,
		Payload: entry,
	}); err != nil {
		s.logger.Warn("failed to enqueue audit entry", zap.String("action", entry.Action), zap.Error(err))
	}
}

// Create writes an audit entry synchronously. Used by flows that already run
// in the background, like the auth service.
func (s *AuditService) Create(ctx context.Context, entry *models.AuditLog) error {
	return s.repo.Create(ctx, entry)
}

// List returns recent audit entries, newest first.
func (s *AuditService) List(ctx context.Context, action, resource string, limit int) ([]models.AuditLog, error) {
	return s.repo.List(ctx, action, resource, limit)
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload type %T", job.Payload)
	}
	return s.repo.Create(ctx, entry)
}
