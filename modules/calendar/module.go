package calendar

import (
	"coach-sync-api/core/cache"
	"coach-sync-api/core/config"
	"coach-sync-api/core/database"
	"coach-sync-api/core/middleware"
	"coach-sync-api/core/utils"
	"coach-sync-api/modules/calendar/controller"
	"coach-sync-api/modules/calendar/provider"
	"coach-sync-api/modules/calendar/repository"
	"coach-sync-api/modules/calendar/router"
	"coach-sync-api/modules/calendar/service"

	"github.com/labstack/echo/v4"
)

// Module exposes the calendar services other modules and the worker depend on.
type Module struct {
	Queue          *service.SyncQueueService
	Executor       *service.SyncExecutor
	Reconciliation *service.ReconciliationService
	Connections    *service.ConnectionService
}

func Init(
	api *echo.Group,
	cfg *config.Config,
	db database.IDatabase,
	store cache.Cache,
	cipher *utils.TokenCipher,
	sessions service.SessionReader,
	reminders service.ReminderScheduler,
	mw *middleware.Middleware,
) *Module {
	conns := repository.NewConnectionRepository(db, cipher)
	jobs := repository.NewSyncJobRepository(db)
	mappings := repository.NewEventMappingRepository(db)

	stateSecret := cfg.Security.OAuthStateSecret
	if stateSecret == "" {
		stateSecret = cfg.JWT.Secret
	}
	states := provider.NewSignedState(stateSecret, store)

	providers := provider.NewRegistry(
		provider.NewGoogleProvider(cfg.GoogleAPI, conns, states),
		provider.NewOutlookProvider(cfg.Microsoft, conns, states),
	)

	queue := service.NewSyncQueueService(jobs, conns, mappings, cfg.Sync)
	executor := service.NewSyncExecutor(jobs, conns, mappings, sessions, providers, reminders)
	reconciliation := service.NewReconciliationService(conns, mappings, jobs, sessions, providers, queue)
	connections := service.NewConnectionService(conns, jobs, providers, states, queue)

	ctrl := controller.NewCalendarController(connections, reconciliation)
	router.NewCalendarRouter(ctrl).Register(api, mw)

	return &Module{
		Queue:          queue,
		Executor:       executor,
		Reconciliation: reconciliation,
		Connections:    connections,
	}
}
