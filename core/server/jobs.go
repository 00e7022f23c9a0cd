package server

import (
	"context"

	"coach-sync-api/core/config"
	"coach-sync-api/core/logger"
	"coach-sync-api/core/worker"
	"coach-sync-api/modules/calendar"
	reminderService "coach-sync-api/modules/reminder/service"
)

func newWorker(cfg *config.Config, cal *calendar.Module, reminders *reminderService.ReminderService) *worker.Worker {
	w := worker.New(worker.Config{
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Worker.Concurrency,
	})

	w.Register(worker.TaskProcessSyncQueue, cfg.Worker.SyncCron, func(ctx context.Context) error {
		n, err := cal.Executor.ProcessPendingJobs(ctx, cfg.Sync.BatchSize)
		if n > 0 {
			logger.Info("Jobs:SyncQueue:Processed", "count", n)
		}
		return err
	})

	w.Register(worker.TaskProcessDueReminders, cfg.Worker.RemindersCron, func(ctx context.Context) error {
		res, err := reminders.ProcessDueReminders(ctx)
		if err != nil {
			return err
		}
		if res.Processed > 0 {
			logger.Info("Jobs:Reminders:Processed", "processed", res.Processed, "sent", res.Sent, "failed", res.Failed)
		}
		return nil
	})

	w.Register(worker.TaskCheckUpcomingSession, cfg.Worker.UpcomingCron, func(ctx context.Context) error {
		n, err := reminders.CheckUpcomingSessions(ctx)
		if n > 0 {
			logger.Info("Jobs:UpcomingSessions:Scheduled", "sessions", n)
		}
		return err
	})

	w.Register(worker.TaskCleanupFailedSyncs, cfg.Worker.DailyCleanupCron, func(ctx context.Context) error {
		if _, err := cal.Queue.RequeueStaleJobs(ctx); err != nil {
			logger.Error("Jobs:SyncCleanup:RequeueError", "error", err)
		}
		res, err := cal.Reconciliation.CleanupFailedSyncJobs(ctx)
		if err != nil {
			return err
		}
		logger.Info("Jobs:SyncCleanup:Done", "checked", res.JobsChecked, "failed", res.JobsFailed, "requeued", res.JobsRequeued)
		return nil
	})

	w.Register(worker.TaskCleanupReminders, cfg.Worker.DailyCleanupCron, func(ctx context.Context) error {
		res, err := reminders.CleanupStaleReminders(ctx)
		if err != nil {
			return err
		}
		logger.Info("Jobs:ReminderCleanup:Done", "expired", res.Expired, "deleted", res.Deleted)
		return nil
	})

	return w
}
