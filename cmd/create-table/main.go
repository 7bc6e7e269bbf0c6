package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"question-bot-backend/internal/database"

	"github.com/joho/godotenv"
)

// Provisions the single table with both secondary indexes. Intended for
// local DynamoDB and first-time environment setup.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	db, err := database.NewDatabase()
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.Client.CreateTable(ctx, db.Table); err != nil {
		logger.Error("create table failed", "table", db.Table, "error", err)
		os.Exit(1)
	}
	logger.Info("table ready", "table", db.Table)
}
