package service

import (
	"context"
	"fmt"
	"sort"

	"coach-sync-api/core/logger"
	"coach-sync-api/modules/calendar/entity"
	"coach-sync-api/modules/calendar/provider"
	"coach-sync-api/modules/calendar/repository"

	"github.com/google/uuid"
)

// CleanupResult summarises a duplicate-event sweep.
type CleanupResult struct {
	GroupsChecked   int      `json:"groups_checked"`
	DuplicatesFound int      `json:"duplicates_found"`
	EventsDeleted   int      `json:"events_deleted"`
	MappingsDeleted int      `json:"mappings_deleted"`
	Errors          []string `json:"errors,omitempty"`
}

// FailedJobCleanupResult summarises a failed-job sweep.
type FailedJobCleanupResult struct {
	JobsChecked  int `json:"jobs_checked"`
	JobsFailed   int `json:"jobs_failed"`
	JobsRequeued int `json:"jobs_requeued"`
}

// ReconciliationService removes duplicate external events and stops retrying
// jobs whose session is gone.
type ReconciliationService struct {
	conns     repository.ConnectionRepository
	mappings  repository.EventMappingRepository
	jobs      repository.SyncJobRepository
	sessions  SessionReader
	providers *provider.Registry
	queue     *SyncQueueService
}

func NewReconciliationService(
	conns repository.ConnectionRepository,
	mappings repository.EventMappingRepository,
	jobs repository.SyncJobRepository,
	sessions SessionReader,
	providers *provider.Registry,
	queue *SyncQueueService,
) *ReconciliationService {
	return &ReconciliationService{
		conns:     conns,
		mappings:  mappings,
		jobs:      jobs,
		sessions:  sessions,
		providers: providers,
		queue:     queue,
	}
}

func (s *ReconciliationService) CleanupDuplicateEvents(ctx context.Context, sessionID uuid.UUID) (*CleanupResult, error) {
	mappings, err := s.mappings.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	return s.reconcile(ctx, mappings), nil
}

func (s *ReconciliationService) CleanupAllDuplicateEvents(ctx context.Context, coachID uuid.UUID) (*CleanupResult, error) {
	mappings, err := s.mappings.ListByCoach(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	return s.reconcile(ctx, mappings), nil
}

type mappingKey struct {
	session    uuid.UUID
	connection uuid.UUID
}

// reconcile keeps one mapping per (session, connection): the oldest synced one,
// or the oldest overall when none is synced. Newer duplicates lose their
// external event first and their row second, so a failed provider call leaves
// the row for the next sweep.
func (s *ReconciliationService) reconcile(ctx context.Context, mappings []entity.EventMapping) *CleanupResult {
	groups := make(map[mappingKey][]entity.EventMapping)
	var order []mappingKey
	for _, m := range mappings {
		key := mappingKey{session: m.SessionID, connection: m.ConnectionID}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	result := &CleanupResult{GroupsChecked: len(order)}
	conns := make(map[uuid.UUID]*entity.CalendarConnection)

	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].CreatedAt.Before(group[j].CreatedAt) })

		keep := 0
		for i, m := range group {
			if m.SyncStatus == entity.MappingSynced {
				keep = i
				break
			}
		}
		keeper := group[keep]
		result.DuplicatesFound += len(group) - 1

		for i, dup := range group {
			if i == keep {
				continue
			}
			if dup.SyncStatus == entity.MappingSynced && dup.ExternalEventID != keeper.ExternalEventID {
				if err := s.deleteExternal(ctx, conns, dup); err != nil {
					logger.Error("Reconciliation:DeleteEvent:Error", "mapping_id", dup.ID, "external_event_id", dup.ExternalEventID, "error", err)
					result.Errors = append(result.Errors, fmt.Sprintf("mapping %s: %v", dup.ID, err))
					continue
				}
				result.EventsDeleted++
			}
			if err := s.mappings.Delete(ctx, dup.ID); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("mapping %s: %v", dup.ID, err))
				continue
			}
			result.MappingsDeleted++
		}
	}

	if result.DuplicatesFound > 0 {
		logger.Info("Reconciliation:Duplicates:Done",
			"groups", result.GroupsChecked,
			"duplicates", result.DuplicatesFound,
			"events_deleted", result.EventsDeleted,
			"mappings_deleted", result.MappingsDeleted,
			"errors", len(result.Errors),
		)
	}
	return result
}

func (s *ReconciliationService) deleteExternal(ctx context.Context, cache map[uuid.UUID]*entity.CalendarConnection, m entity.EventMapping) error {
	conn, ok := cache[m.ConnectionID]
	if !ok {
		var err error
		conn, err = s.conns.GetByID(ctx, m.ConnectionID)
		if err != nil {
			return err
		}
		cache[m.ConnectionID] = conn
	}
	if conn == nil {
		return fmt.Errorf("%w: %s", ErrConnectionInactive, m.ConnectionID)
	}
	p, err := s.providers.ForConnection(conn)
	if err != nil {
		return err
	}
	if _, err := p.DeleteEvent(ctx, conn.ID, m.ExternalCalendarID, m.ExternalEventID); err != nil {
		return err
	}
	return nil
}

// CleanupFailedSyncJobs fails every retried job whose session no longer exists
// and requeues jobs left in processing by a crashed worker.
func (s *ReconciliationService) CleanupFailedSyncJobs(ctx context.Context) (*FailedJobCleanupResult, error) {
	result := &FailedJobCleanupResult{}

	if s.queue != nil {
		n, err := s.queue.RequeueStaleJobs(ctx)
		if err != nil {
			logger.Error("Reconciliation:RequeueStale:Error", "error", err)
		}
		result.JobsRequeued = int(n)
	}

	jobs, err := s.jobs.ListRetriedWithSession(ctx, 2)
	if err != nil {
		return nil, fmt.Errorf("list retried jobs: %w", err)
	}
	result.JobsChecked = len(jobs)

	exists := make(map[uuid.UUID]bool)
	for _, job := range jobs {
		sessionID := *job.SessionID
		found, checked := exists[sessionID]
		if !checked {
			found, err = s.sessions.Exists(ctx, sessionID)
			if err != nil {
				logger.Error("Reconciliation:SessionExists:Error", "session_id", sessionID, "error", err)
				continue
			}
			exists[sessionID] = found
		}
		if found {
			continue
		}

		msg := fmt.Sprintf("session %s no longer exists; job will not be retried", sessionID)
		if err := s.jobs.MarkFailed(ctx, job.ID, job.Attempts, msg); err != nil {
			logger.Error("Reconciliation:MarkFailed:Error", "job_id", job.ID, "error", err)
			continue
		}
		result.JobsFailed++
	}

	logger.Info("Reconciliation:FailedJobs:Done", "checked", result.JobsChecked, "failed", result.JobsFailed, "requeued", result.JobsRequeued)
	return result, nil
}
