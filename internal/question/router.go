package question

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"question-bot-backend/internal/database"
	"question-bot-backend/internal/flow"
	"question-bot-backend/internal/gateway"
	"question-bot-backend/internal/model"

	"github.com/oklog/ulid/v2"
)

const (
	labelName     = "From: "
	labelUsername = "Username: "

	// Fallback markers for senders with a hidden profile or no username.
	hiddenSender = "مخفي"
	noUsername   = "لا يوجد"
)

// Submission is a completed conversation ready to be forwarded to staff.
type Submission struct {
	Submitter        gateway.Identity
	MessageID        int
	Inputs           map[string]string
	DestinationChat  int64
	DestinationTopic int
}

// Reply is a staff message replying to a forwarded question.
type Reply struct {
	ChatID          int64
	MessageID       int
	TargetMessageID int
	TargetText      string
	TopicID         int
	Text            string
	Sender          gateway.Identity
	Date            time.Time
}

// Router forwards submitted questions to their destination chat and routes
// staff replies back to the submitter.
type Router struct {
	def    *flow.Definition
	repo   Repository
	gw     gateway.Gateway
	logger *slog.Logger
}

func NewRouter(def *flow.Definition, db *database.Database, gw gateway.Gateway, logger *slog.Logger) *Router {
	return NewRouterWithRepository(def, NewDynamoRepository(db), gw, logger)
}

func NewRouterWithRepository(def *flow.Definition, repo Repository, gw gateway.Gateway, logger *slog.Logger) *Router {
	return &Router{
		def:    def,
		repo:   repo,
		gw:     gw,
		logger: logger,
	}
}

// Submit stores the question, forwards it to the destination topic and
// links the forwarded message back to the record. The create and the link
// are two sequential writes. A crash between them leaves a stored question
// no reply can reach, which is logged and recovered manually.
func (rt *Router) Submit(ctx context.Context, sub Submission) (string, error) {
	id := ulid.Make().String()

	username := noUsername
	if sub.Submitter.Username != "" {
		username = "@" + sub.Submitter.Username
	}
	item := model.QuestionItem{
		PK:             model.UserPK(sub.Submitter.UserID),
		SK:             model.QuestionSK(id),
		GSI1PK:         model.StatusPK(model.StatusUnanswered),
		GSI1SK:         model.UserPK(sub.Submitter.UserID),
		EntityType:     model.EntityTypeQuestion,
		QuestionID:     sub.MessageID,
		UserID:         sub.Submitter.UserID,
		UserUsername:   username,
		UserFirstName:  sub.Submitter.FirstName,
		UserLastName:   sub.Submitter.LastName,
		UserFullName:   sub.Submitter.FullName(),
		QuestionStatus: model.StatusUnanswered,
		Inputs:         sub.Inputs,
	}
	if err := rt.repo.CreateQuestion(ctx, item); err != nil {
		return "", fmt.Errorf("create question %s: %w", id, err)
	}

	messageID, err := rt.gw.SendMessage(ctx, sub.DestinationChat, rt.formatQuestion(item), nil, sub.DestinationTopic)
	if err != nil {
		rt.logger.Error("question stored but not forwarded",
			"question_id", id,
			"user_id", sub.Submitter.UserID,
			"error", err)
		return "", fmt.Errorf("forward question %s: %w", id, err)
	}

	if err := rt.repo.LinkDestination(ctx, sub.Submitter.UserID, item.SK, sub.DestinationChat, messageID); err != nil {
		rt.logger.Error("question forwarded but not linked, replies will not reach the submitter",
			"question_id", id,
			"dest_chat", sub.DestinationChat,
			"dest_message", messageID,
			"error", err)
		return "", fmt.Errorf("link question %s: %w", id, err)
	}
	return id, nil
}

// Relay routes a staff reply back to the question's submitter. Replies to
// messages that are not forwarded questions match nothing and are dropped;
// the returned bool reports whether a question matched.
func (rt *Router) Relay(ctx context.Context, reply Reply) (bool, error) {
	question, ok, err := rt.repo.FindByDestination(ctx, reply.ChatID, reply.TargetMessageID)
	if err != nil {
		return false, fmt.Errorf("look up question by destination: %w", err)
	}
	if !ok {
		rt.logger.Debug("reply to unrelated message ignored",
			"chat_id", reply.ChatID,
			"message_id", reply.TargetMessageID)
		return false, nil
	}

	answerMessageID, err := rt.gw.SendMessage(ctx, question.UserID, reply.Text, nil, question.QuestionID)
	if err != nil {
		return true, fmt.Errorf("relay answer to user %d: %w", question.UserID, err)
	}

	sender := reply.Sender
	if sender.FirstName == "" && sender.Username == "" {
		sender.FirstName = hiddenSender
		sender.Username = hiddenSender
	}
	question.Answers = append(question.Answers, model.Answer{
		Text:      reply.Text,
		SrcMsgID:  reply.MessageID,
		DestMsgID: answerMessageID,
		SrcChatID: reply.ChatID,
		SenderID:  reply.Sender.UserID,
		Date:      reply.Date.Format(time.RFC3339),
		Username:  sender.Username,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
		TopicID:   reply.TopicID,
	})
	question.QuestionStatus = model.StatusAnswered
	question.GSI1PK = model.StatusPK(model.StatusAnswered)

	if edited := flipStatusGlyph(reply.TargetText); edited != reply.TargetText {
		if err := rt.gw.EditMessage(ctx, reply.ChatID, reply.TargetMessageID, edited, nil); err != nil {
			return true, fmt.Errorf("update question status glyph: %w", err)
		}
	}
	if err := rt.repo.MarkAnswered(ctx, question); err != nil {
		return true, err
	}
	return true, nil
}

// formatQuestion renders the destination-facing message: the status glyph,
// the submitter's identity, then the collected inputs in flow order.
func (rt *Router) formatQuestion(item model.QuestionItem) string {
	lines := []string{
		string(item.QuestionStatus),
		labelName + item.UserFullName,
		labelUsername + item.UserUsername,
	}
	for _, state := range rt.def.Order {
		value, ok := item.Inputs[state]
		if !ok {
			continue
		}
		label := rt.def.Labels[state]
		if label == "" {
			label = state + ": "
		}
		lines = append(lines, label+value)
	}
	return strings.Join(lines, "\n")
}

// flipStatusGlyph marks the destination message answered: the first reply
// turns the unanswered glyph into the answered one, later replies double
// the first answered glyph so repeat answers stay visible.
func flipStatusGlyph(text string) string {
	answered := string(model.StatusAnswered)
	if strings.Contains(text, answered) {
		return strings.Replace(text, answered, answered+answered, 1)
	}
	return strings.Replace(text, string(model.StatusUnanswered), answered, 1)
}
