package service

import (
	"context"
	"fmt"
	"time"

	"coach-sync-api/core/config"
	"coach-sync-api/core/logger"
	"coach-sync-api/modules/calendar/entity"
	"coach-sync-api/modules/calendar/repository"

	"github.com/google/uuid"
)

type SyncQueueService struct {
	jobs     repository.SyncJobRepository
	conns    repository.ConnectionRepository
	mappings repository.EventMappingRepository
	cfg      config.SyncConfig
	now      func() time.Time
}

func NewSyncQueueService(
	jobs repository.SyncJobRepository,
	conns repository.ConnectionRepository,
	mappings repository.EventMappingRepository,
	cfg config.SyncConfig,
) *SyncQueueService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DefaultPriority <= 0 {
		cfg.DefaultPriority = 5
	}
	if cfg.FullSyncPriority <= 0 {
		cfg.FullSyncPriority = 10
	}
	return &SyncQueueService{jobs: jobs, conns: conns, mappings: mappings, cfg: cfg, now: time.Now}
}

// QueueSync enqueues one operation. It returns the id of an equivalent job that
// is already pending or processing instead of adding a second one, and nil when
// a create is requested for a session that already has an event on the connection.
// A priority of zero selects the default for the operation.
func (s *SyncQueueService) QueueSync(ctx context.Context, connectionID uuid.UUID, op entity.SyncOperation, sessionID *uuid.UUID, priority int) (*uuid.UUID, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("unknown sync operation %q", op)
	}
	if op != entity.OperationFullSync && sessionID == nil {
		return nil, fmt.Errorf("%s requires a session id", op)
	}
	if priority <= 0 {
		priority = s.cfg.DefaultPriority
		if op == entity.OperationFullSync {
			priority = s.cfg.FullSyncPriority
		}
	}

	existing, err := s.jobs.FindActive(ctx, connectionID, sessionID, op)
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	if existing != nil {
		logger.Debug("SyncQueue:QueueSync:AlreadyQueued", "job_id", *existing, "connection_id", connectionID, "operation", op)
		return existing, nil
	}

	if op == entity.OperationCreate {
		mapping, err := s.mappings.GetActive(ctx, *sessionID, connectionID)
		if err != nil {
			return nil, fmt.Errorf("check mapping: %w", err)
		}
		if mapping != nil {
			logger.Info("SyncQueue:QueueSync:EventExists", "session_id", *sessionID, "connection_id", connectionID)
			return nil, nil
		}
	}

	id, err := s.jobs.Insert(ctx, &entity.SyncJob{
		ConnectionID: connectionID,
		SessionID:    sessionID,
		Operation:    op,
		Priority:     priority,
		MaxAttempts:  s.cfg.MaxAttempts,
		ScheduledFor: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("insert sync job: %w", err)
	}

	logger.Info("SyncQueue:QueueSync:Queued", "job_id", id, "connection_id", connectionID, "operation", op, "priority", priority)
	return &id, nil
}

// QueueSessionSync enqueues op for the session on every active, sync-enabled
// connection of the coach. A failure on one connection does not stop the others.
func (s *SyncQueueService) QueueSessionSync(ctx context.Context, coachID, sessionID uuid.UUID, op entity.SyncOperation) ([]uuid.UUID, error) {
	conns, err := s.conns.ListSyncableByCoach(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	var ids []uuid.UUID
	for _, conn := range conns {
		id, err := s.QueueSync(ctx, conn.ID, op, &sessionID, 0)
		if err != nil {
			logger.Error("SyncQueue:QueueSessionSync:Error", "connection_id", conn.ID, "session_id", sessionID, "error", err)
			continue
		}
		if id != nil {
			ids = append(ids, *id)
		}
	}
	return ids, nil
}

// RequeueStaleJobs returns jobs stuck in processing for longer than the configured
// threshold to the queue.
func (s *SyncQueueService) RequeueStaleJobs(ctx context.Context) (int64, error) {
	staleAfter := s.cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	n, err := s.jobs.RequeueStale(ctx, s.now().Add(-staleAfter))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Warn("SyncQueue:RequeueStale:Requeued", "count", n)
	}
	return n, nil
}
