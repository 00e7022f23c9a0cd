package worker

import (
	"context"
	"fmt"
	"time"

	"coach-sync-api/core/logger"

	"github.com/hibiken/asynq"
)

const (
	TaskProcessSyncQueue     = "calendar:sync:process"
	TaskCleanupFailedSyncs   = "calendar:sync:cleanup"
	TaskProcessDueReminders  = "reminder:process_due"
	TaskCheckUpcomingSession = "reminder:check_upcoming"
	TaskCleanupReminders     = "reminder:cleanup_stale"
)

const taskTimeout = 5 * time.Minute

type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	Location      *time.Location
}

// JobFunc is one periodic unit of work. The schedule re-runs it, so failures are not retried.
type JobFunc func(ctx context.Context) error

type periodic struct {
	taskType string
	cronspec string
}

// Worker drives periodic jobs through an asynq scheduler and server sharing one redis.
type Worker struct {
	cfg       Config
	mux       *asynq.ServeMux
	jobs      []periodic
	server    *asynq.Server
	scheduler *asynq.Scheduler
}

func New(cfg Config) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Worker{cfg: cfg, mux: asynq.NewServeMux()}
}

// Register binds fn to taskType and schedules it on cronspec. An empty cronspec
// registers the handler without a schedule.
func (w *Worker) Register(taskType, cronspec string, fn JobFunc) {
	w.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		if err := fn(ctx); err != nil {
			logger.Error("Worker:Task:Error", "task", t.Type(), "duration", time.Since(start).String(), "error", err)
			return fmt.Errorf("%s: %w", t.Type(), asynq.SkipRetry)
		}
		logger.Debug("Worker:Task:Done", "task", t.Type(), "duration", time.Since(start).String())
		return nil
	})
	if cronspec != "" {
		w.jobs = append(w.jobs, periodic{taskType: taskType, cronspec: cronspec})
	}
}

// Handler exposes the task mux, e.g. to run a task in-process.
func (w *Worker) Handler() asynq.Handler {
	return w.mux
}

func (w *Worker) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     w.cfg.RedisAddr,
		Password: w.cfg.RedisPassword,
		DB:       w.cfg.RedisDB,
	}
}

func (w *Worker) Start() error {
	redisOpt := w.redisOpt()
	log := asynqLogger{}

	w.scheduler = asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: w.cfg.Location,
		Logger:   log,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Warn("Worker:Scheduler:EnqueueError", "error", err)
			}
		},
	})
	for _, job := range w.jobs {
		// Tasks carry no payload, so Unique collapses ticks that pile up behind a slow run.
		entryID, err := w.scheduler.Register(job.cronspec, asynq.NewTask(job.taskType, nil),
			asynq.MaxRetry(0),
			asynq.Timeout(taskTimeout),
			asynq.Unique(taskTimeout),
		)
		if err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.taskType, job.cronspec, err)
		}
		logger.Info("Worker:Scheduler:Registered", "task", job.taskType, "cron", job.cronspec, "entry_id", entryID)
	}

	w.server = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: w.cfg.Concurrency,
		Logger:      log,
		Queues:      map[string]int{"default": 1},
	})
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker server: %w", err)
	}
	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}

	logger.Info("Worker:Start:OK", "tasks", len(w.jobs), "concurrency", w.cfg.Concurrency)
	return nil
}

func (w *Worker) Shutdown() {
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	if w.server != nil {
		w.server.Shutdown()
	}
	logger.Info("Worker:Shutdown:Done")
}
