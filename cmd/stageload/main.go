// Package main is the entry point for the stageload command line.
package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/iot-sensordata/stageload/cmd/stageload/app"
	"github.com/iot-sensordata/stageload/internal/logging"
)

func main() {
	// Development convenience: pick up STAGELOAD_* variables from ./.env
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	logging.Setup()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
