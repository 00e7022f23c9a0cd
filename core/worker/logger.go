package worker

import (
	"fmt"

	"coach-sync-api/core/logger"
)

// asynqLogger routes asynq's internal logging through the application logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...any) { logger.Debug("asynq: " + fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...any)  { logger.Info("asynq: " + fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...any)  { logger.Warn("asynq: " + fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...any) { logger.Error("asynq: " + fmt.Sprint(args...)) }

func (asynqLogger) Fatal(args ...any) {
	logger.Error("asynq: fatal: " + fmt.Sprint(args...))
}
