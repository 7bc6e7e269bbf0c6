package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"question-bot-backend/internal/gateway"
)

const pollTimeoutSeconds = 30

// Adapter implements gateway.Gateway over the Telegram Bot API and feeds the
// inbound update stream to a gateway.Handler. Telegram types never leak past
// this package.
type Adapter struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

func New(token string, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)
	return &Adapter{
		bot:    bot,
		logger: logger.With(slog.String("adapter", "telegram")),
	}, nil
}

func (a *Adapter) SendMessage(ctx context.Context, chatID int64, text string, buttons [][]gateway.Button, replyTo int) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	if len(buttons) > 0 {
		msg.ReplyMarkup = inlineKeyboard(buttons)
	}

	sent, err := a.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

func (a *Adapter) EditMessage(ctx context.Context, chatID int64, messageID int, text string, buttons [][]gateway.Button) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if len(buttons) > 0 {
		markup := inlineKeyboard(buttons)
		edit.ReplyMarkup = &markup
	}

	if _, err := a.bot.Send(edit); err != nil {
		return fmt.Errorf("telegram edit %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

// Listen long-polls Telegram for updates and forwards them to the handler
// until the context is cancelled.
func (a *Adapter) Listen(ctx context.Context, handler gateway.Handler) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := a.bot.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			a.logger.Info("update stream stopped")
			return
		case update, ok := <-updates:
			if !ok {
				a.logger.Info("update channel closed")
				return
			}
			a.dispatch(ctx, handler, update)
		}
	}
}

func (a *Adapter) dispatch(ctx context.Context, handler gateway.Handler, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		if query.Message == nil {
			return
		}
		// Acknowledge so the client stops showing a spinner.
		if _, err := a.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			a.logger.Debug("callback ack failed", "error", err)
		}
		handler.HandleCallback(ctx, gateway.CallbackQuery{
			Sender:    identityFrom(query.From),
			ChatID:    query.Message.Chat.ID,
			MessageID: query.Message.MessageID,
			Data:      query.Data,
		})
	case update.Message != nil:
		msg := update.Message
		handler.HandleText(ctx, textMessageFrom(msg))
	}
}

func textMessageFrom(msg *tgbotapi.Message) gateway.TextMessage {
	tm := gateway.TextMessage{
		Sender:    identityFrom(msg.From),
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Private:   msg.Chat.IsPrivate(),
		Date:      time.Unix(int64(msg.Date), 0).UTC(),
	}
	if reply := msg.ReplyToMessage; reply != nil {
		tm.ReplyTo = reply.MessageID
		tm.ReplyToText = reply.Text
		if nested := reply.ReplyToMessage; nested != nil {
			tm.TopicID = nested.MessageID
		}
	}
	return tm
}

func identityFrom(user *tgbotapi.User) gateway.Identity {
	if user == nil {
		return gateway.Identity{}
	}
	return gateway.Identity{
		UserID:    user.ID,
		Username:  user.UserName,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

func inlineKeyboard(buttons [][]gateway.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		keyboardRow := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			data := button.Data
			if data == "" {
				data = button.Label
			}
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Label, data))
		}
		rows = append(rows, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
