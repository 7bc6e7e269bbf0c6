package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"question-bot-backend/internal/database"
	"question-bot-backend/internal/flow"
	"question-bot-backend/internal/gateway"
	"question-bot-backend/internal/question"
)

type EventKind int

const (
	EventStart EventKind = iota
	EventText
	EventCallback
)

// Event is one normalized inbound update from the chat gateway.
type Event struct {
	Kind      EventKind
	Sender    gateway.Identity
	ChatID    int64
	MessageID int
	Input     string
}

// Submitter hands a completed conversation off for forwarding to staff.
type Submitter interface {
	Submit(ctx context.Context, sub question.Submission) (string, error)
}

// Controller drives the conversation flow for private chats. All event
// handling goes through an attached Conversation, one per event.
type Controller struct {
	machine *flow.Machine
	repo    Repository
	gw      gateway.Gateway
	router  Submitter
	logger  *slog.Logger
}

func New(machine *flow.Machine, db *database.Database, gw gateway.Gateway, router Submitter, logger *slog.Logger) *Controller {
	return NewWithRepository(machine, NewDynamoRepository(db), gw, router, logger)
}

func NewWithRepository(machine *flow.Machine, repo Repository, gw gateway.Gateway, router Submitter, logger *slog.Logger) *Controller {
	return &Controller{
		machine: machine,
		repo:    repo,
		gw:      gw,
		router:  router,
		logger:  logger,
	}
}

// Load resolves the sender's current state. Users with no stored
// progress start at the flow's initial state.
func (c *Controller) Load(ctx context.Context, userID int64) (string, error) {
	user, err := c.repo.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return c.machine.Initial(), nil
	}
	if err != nil {
		return "", storageError("load conversation state", err)
	}
	if user.UserState == "" {
		return c.machine.Initial(), nil
	}
	return user.UserState, nil
}

// Attach binds an event to the sender's persisted progress and returns a
// Conversation ready to fire transitions.
func (c *Controller) Attach(ctx context.Context, evt Event) (*Conversation, error) {
	user, err := c.repo.GetUser(ctx, evt.Sender.UserID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, storageError("load conversation state", err)
	}

	state := user.UserState
	if state == "" {
		state = c.machine.Initial()
	}
	inputs := user.UserInputs
	if inputs == nil {
		inputs = make(map[string]string)
	}
	return &Conversation{
		ctrl:      c,
		event:     evt,
		state:     state,
		inputs:    inputs,
		destChat:  user.DestinationChat,
		destTopic: user.DestinationChatTopic,
	}, nil
}

// Conversation is one event's view of a user's progress. It implements
// flow.Sink so transition hooks write through it.
type Conversation struct {
	ctrl      *Controller
	event     Event
	state     string
	inputs    map[string]string
	destChat  string
	destTopic string
}

func (conv *Conversation) State() string {
	return conv.state
}

// FireStart resets the user and re-enters the initial state. Restart is
// a full reset rather than a transition so it works from any state,
// including ones the current flow definition no longer has.
func (conv *Conversation) FireStart(ctx context.Context) error {
	userID := conv.event.Sender.UserID
	if err := conv.ctrl.repo.ClearProgress(ctx, userID); err != nil {
		return storageError("clear conversation progress", err)
	}
	conv.inputs = make(map[string]string)
	conv.destChat = ""
	conv.destTopic = ""

	initial := conv.ctrl.machine.Initial()
	prompt, err := conv.ctrl.machine.PromptFor(ctx, conv, initial)
	if err != nil {
		return err
	}
	if _, err := conv.ctrl.gw.SendMessage(ctx, conv.event.ChatID, prompt.Text, promptButtons(prompt), 0); err != nil {
		return gatewayError("send initial prompt", err)
	}
	if err := conv.ctrl.repo.SetState(ctx, userID, initial); err != nil {
		return storageError("persist conversation state", err)
	}
	conv.state = initial
	return nil
}

// FireCallback applies a button press. Presses that match no transition
// out of the current state are stale and are dropped.
func (conv *Conversation) FireCallback(ctx context.Context, data string) error {
	next, err := conv.ctrl.machine.Fire(ctx, conv.state, flow.Trigger(data), conv)
	if errors.Is(err, flow.ErrNoTransition) {
		conv.ctrl.logger.Debug("stale callback ignored",
			"user_id", conv.event.Sender.UserID,
			"state", conv.state,
			"data", data)
		return nil
	}
	if err != nil {
		return err
	}
	conv.state = next
	return nil
}

// FireAutoNext applies the current state's free-text transition. States
// without exactly one such transition ignore free text.
func (conv *Conversation) FireAutoNext(ctx context.Context) error {
	auto := conv.ctrl.machine.AutoTransitions(conv.state)
	if len(auto) != 1 {
		conv.ctrl.logger.Debug("free text ignored",
			"user_id", conv.event.Sender.UserID,
			"state", conv.state,
			"candidates", len(auto))
		return nil
	}
	next, err := conv.ctrl.machine.Fire(ctx, conv.state, auto[0].Trigger, conv)
	if err != nil {
		return err
	}
	conv.state = next
	return nil
}

// flow.Sink implementation. Hooks run in a fixed order per transition,
// with PersistState last so a crash mid-transition replays the event
// against the old state.

func (conv *Conversation) Prompt(ctx context.Context, p flow.Prompt) error {
	buttons := promptButtons(p)
	if conv.event.Kind == EventCallback {
		if err := conv.ctrl.gw.EditMessage(ctx, conv.event.ChatID, conv.event.MessageID, p.Text, buttons); err != nil {
			return gatewayError("edit prompt", err)
		}
		return nil
	}
	if _, err := conv.ctrl.gw.SendMessage(ctx, conv.event.ChatID, p.Text, buttons, 0); err != nil {
		return gatewayError("send prompt", err)
	}
	return nil
}

func (conv *Conversation) StoreInput(ctx context.Context, sourceState string) error {
	userID := conv.event.Sender.UserID
	if err := conv.ctrl.repo.StoreInput(ctx, userID, sourceState, conv.event.Input); err != nil {
		return storageError("store conversation input", err)
	}
	conv.inputs[sourceState] = conv.event.Input
	return nil
}

func (conv *Conversation) RecordDestination(ctx context.Context, state string, dest flow.Destination) error {
	userID := conv.event.Sender.UserID
	if err := conv.ctrl.repo.SetDestination(ctx, userID, dest.ChatID, dest.TopicID); err != nil {
		return storageError("record question destination", err)
	}
	conv.destChat = strconv.FormatInt(dest.ChatID, 10)
	conv.destTopic = strconv.Itoa(dest.TopicID)
	return nil
}

func (conv *Conversation) Submit(ctx context.Context) error {
	chatID, err := strconv.ParseInt(conv.destChat, 10, 64)
	if err != nil {
		return fmt.Errorf("parse question destination %q: %w", conv.destChat, err)
	}
	topicID, err := strconv.Atoi(conv.destTopic)
	if err != nil {
		return fmt.Errorf("parse question destination topic %q: %w", conv.destTopic, err)
	}

	inputs := make(map[string]string, len(conv.inputs))
	for k, v := range conv.inputs {
		inputs[k] = v
	}
	questionID, err := conv.ctrl.router.Submit(ctx, question.Submission{
		Submitter:        conv.event.Sender,
		MessageID:        conv.event.MessageID,
		Inputs:           inputs,
		DestinationChat:  chatID,
		DestinationTopic: topicID,
	})
	if err != nil {
		return err
	}
	conv.ctrl.logger.Info("question submitted",
		"user_id", conv.event.Sender.UserID,
		"question_id", questionID)
	return nil
}

func (conv *Conversation) PersistState(ctx context.Context, newState string) error {
	if err := conv.ctrl.repo.SetState(ctx, conv.event.Sender.UserID, newState); err != nil {
		return storageError("persist conversation state", err)
	}
	conv.state = newState
	return nil
}

func (conv *Conversation) LookupInput(ctx context.Context, state string) (string, bool, error) {
	v, ok := conv.inputs[state]
	return v, ok, nil
}

func promptButtons(p flow.Prompt) [][]gateway.Button {
	if len(p.Buttons) == 0 {
		return nil
	}
	rows := make([][]gateway.Button, 0, len(p.Buttons))
	for _, row := range p.Buttons {
		out := make([]gateway.Button, 0, len(row))
		for _, b := range row {
			out = append(out, gateway.Button{Label: b.Label})
		}
		rows = append(rows, out)
	}
	return rows
}
