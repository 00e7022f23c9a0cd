package reminder

import (
	"coach-sync-api/core/config"
	"coach-sync-api/core/database"
	"coach-sync-api/modules/reminder/repository"
	"coach-sync-api/modules/reminder/sender"
	"coach-sync-api/modules/reminder/service"
)

func Init(cfg *config.Config, db database.IDatabase, sessions service.SessionReader, messages service.MessageSender) *service.ReminderService {
	repo := repository.NewReminderRepository(db)
	return service.NewReminderService(repo, sessions, messages, sender.New(cfg.SMTP), cfg.Reminder)
}
