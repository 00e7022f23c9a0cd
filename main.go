package main

import (
	"os"

	"coach-sync-api/core/logger"
	"coach-sync-api/core/server"
)

func main() {
	if err := server.Run(); err != nil {
		logger.Error("run server error", err)
		os.Exit(1)
	}
}
