package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"question-bot-backend/internal/bot"
	"question-bot-backend/internal/conversation"
	"question-bot-backend/internal/database"
	"question-bot-backend/internal/env"
	"question-bot-backend/internal/flow"
	"question-bot-backend/internal/gateway/telegram"
	"question-bot-backend/internal/metrics"
	"question-bot-backend/internal/question"
	"question-bot-backend/internal/queue"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.NewDatabase()
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}

	def, err := loadFlow()
	if err != nil {
		logger.Error("flow definition load failed", "error", err)
		os.Exit(1)
	}
	machine, err := flow.NewMachine(def)
	if err != nil {
		logger.Error("flow definition rejected", "error", err)
		os.Exit(1)
	}

	gw, err := telegram.New(env.MustGet(env.BotToken), logger)
	if err != nil {
		logger.Error("telegram init failed", "error", err)
		os.Exit(1)
	}

	q := queue.NewKeyedQueue()
	m := metrics.New(q)

	router := question.NewRouter(def, db, gw, logger)
	controller := conversation.New(machine, db, gw, bot.InstrumentedSubmitter{Router: router, Metrics: m}, logger)
	dispatcher := bot.NewDispatcher(controller, router, q, m, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go m.Serve(ctx, env.GetOrDefault(env.MetricsAddr, ":9090"), logger)

	logger.Info("bot started", "initial_state", machine.Initial())
	gw.Listen(ctx, dispatcher)

	// Let in-flight events finish before exiting.
	q.Wait()
	logger.Info("bot stopped")
}

// loadFlow reads the flow definition from FLOW_CONFIG when set, otherwise
// builds the default flow from the destination environment.
func loadFlow() (*flow.Definition, error) {
	if path := env.Get(env.FlowConfig); path != "" {
		return flow.LoadFile(path)
	}

	chatID, err := strconv.ParseInt(env.MustGet(env.DestinationChat), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", env.DestinationChat, err)
	}
	religious, err := strconv.Atoi(env.MustGet(env.ReligiousTopic))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", env.ReligiousTopic, err)
	}
	cultural, err := strconv.Atoi(env.MustGet(env.CulturalTopic))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", env.CulturalTopic, err)
	}
	return flow.Default(flow.DefaultDestinations{
		ChatID:         chatID,
		ReligiousTopic: religious,
		CulturalTopic:  cultural,
	}), nil
}
