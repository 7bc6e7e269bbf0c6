package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"question-bot-backend/internal/conversation"
	"question-bot-backend/internal/gateway"
	"question-bot-backend/internal/metrics"
	"question-bot-backend/internal/question"
	"question-bot-backend/internal/queue"

	"github.com/google/uuid"
)

// Dispatcher routes inbound gateway events. Events are serialized per user
// (replies per destination chat) so a user's transitions never interleave,
// while different users proceed concurrently.
type Dispatcher struct {
	controller *conversation.Controller
	router     *question.Router
	queue      *queue.KeyedQueue
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewDispatcher(controller *conversation.Controller, router *question.Router, q *queue.KeyedQueue, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		controller: controller,
		router:     router,
		queue:      q,
		metrics:    m,
		logger:     logger,
	}
}

func (d *Dispatcher) HandleText(ctx context.Context, msg gateway.TextMessage) {
	if msg.ReplyTo != 0 {
		d.queue.Enqueue(msg.ChatID, func() {
			d.runRelay(ctx, msg)
		})
		return
	}
	// Non-reply group chatter is not part of any conversation.
	if !msg.Private {
		return
	}
	d.queue.Enqueue(msg.Sender.UserID, func() {
		d.runText(ctx, msg)
	})
}

func (d *Dispatcher) HandleCallback(ctx context.Context, query gateway.CallbackQuery) {
	d.queue.Enqueue(query.Sender.UserID, func() {
		d.runCallback(ctx, query)
	})
}

func (d *Dispatcher) runText(ctx context.Context, msg gateway.TextMessage) {
	start := time.Now()
	logger := d.logger.With(
		"event_id", uuid.NewString(),
		"user_id", msg.Sender.UserID)
	defer d.recoverPanic(logger)

	kind := "text"
	evtKind := conversation.EventText
	if isStartCommand(msg.Text) {
		kind = "start"
		evtKind = conversation.EventStart
	}

	err := d.runConversation(ctx, conversation.Event{
		Kind:      evtKind,
		Sender:    msg.Sender,
		ChatID:    msg.ChatID,
		MessageID: msg.MessageID,
		Input:     msg.Text,
	})
	d.metrics.ObserveEvent(kind, start, err)
	if err != nil {
		logger.Error("text event failed", "error", err)
	}
}

func (d *Dispatcher) runCallback(ctx context.Context, query gateway.CallbackQuery) {
	start := time.Now()
	logger := d.logger.With(
		"event_id", uuid.NewString(),
		"user_id", query.Sender.UserID)
	defer d.recoverPanic(logger)

	err := d.runConversation(ctx, conversation.Event{
		Kind:      conversation.EventCallback,
		Sender:    query.Sender,
		ChatID:    query.ChatID,
		MessageID: query.MessageID,
		Input:     query.Data,
	})
	d.metrics.ObserveEvent("callback", start, err)
	if err != nil {
		logger.Error("callback event failed", "error", err)
	}
}

func (d *Dispatcher) runConversation(ctx context.Context, evt conversation.Event) error {
	conv, err := d.controller.Attach(ctx, evt)
	if err != nil {
		return err
	}
	switch evt.Kind {
	case conversation.EventStart:
		return conv.FireStart(ctx)
	case conversation.EventCallback:
		return conv.FireCallback(ctx, evt.Input)
	default:
		return conv.FireAutoNext(ctx)
	}
}

func (d *Dispatcher) runRelay(ctx context.Context, msg gateway.TextMessage) {
	start := time.Now()
	logger := d.logger.With(
		"event_id", uuid.NewString(),
		"chat_id", msg.ChatID)
	defer d.recoverPanic(logger)

	matched, err := d.router.Relay(ctx, question.Reply{
		ChatID:          msg.ChatID,
		MessageID:       msg.MessageID,
		TargetMessageID: msg.ReplyTo,
		TargetText:      msg.ReplyToText,
		TopicID:         msg.TopicID,
		Text:            msg.Text,
		Sender:          msg.Sender,
		Date:            msg.Date,
	})
	d.metrics.ObserveEvent("reply", start, err)
	switch {
	case err != nil:
		logger.Error("reply relay failed", "error", err)
	case matched:
		d.metrics.AnswersTotal.Inc()
	default:
		d.metrics.DroppedReplies.Inc()
	}
}

func (d *Dispatcher) recoverPanic(logger *slog.Logger) {
	if r := recover(); r != nil {
		logger.Error("event handler panicked", "panic", r)
	}
}

func isStartCommand(text string) bool {
	return text == "/start" || strings.HasPrefix(text, "/start ")
}

// InstrumentedSubmitter counts successful submissions on their way to the
// router.
type InstrumentedSubmitter struct {
	Router  *question.Router
	Metrics *metrics.Metrics
}

func (s InstrumentedSubmitter) Submit(ctx context.Context, sub question.Submission) (string, error) {
	id, err := s.Router.Submit(ctx, sub)
	if err == nil {
		s.Metrics.QuestionsTotal.Inc()
	}
	return id, err
}
