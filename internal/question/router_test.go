package question

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"question-bot-backend/internal/flow"
	"question-bot-backend/internal/gateway"
	"question-bot-backend/internal/model"
)

type destKey struct {
	chatID    int64
	messageID int
}

type memoryRepository struct {
	mu       sync.Mutex
	created  []model.QuestionItem
	linked   map[string]destKey
	byDest   map[destKey]model.QuestionItem
	answered []model.QuestionItem

	linkErr error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		linked: make(map[string]destKey),
		byDest: make(map[destKey]model.QuestionItem),
	}
}

func (m *memoryRepository) CreateQuestion(ctx context.Context, item model.QuestionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, item)
	return nil
}

func (m *memoryRepository) LinkDestination(ctx context.Context, userID int64, questionSK string, destChatID int64, destMessageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.linkErr != nil {
		return m.linkErr
	}
	key := destKey{chatID: destChatID, messageID: destMessageID}
	m.linked[questionSK] = key
	for _, item := range m.created {
		if item.SK == questionSK {
			item.GSI2PK = model.DestChatPK(destChatID)
			item.GSI2SK = model.DestMessageSK(destMessageID)
			m.byDest[key] = item
		}
	}
	return nil
}

func (m *memoryRepository) FindByDestination(ctx context.Context, destChatID int64, destMessageID int) (model.QuestionItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.byDest[destKey{chatID: destChatID, messageID: destMessageID}]
	return item, ok, nil
}

func (m *memoryRepository) MarkAnswered(ctx context.Context, item model.QuestionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered = append(m.answered, item)
	m.byDest[m.linked[item.SK]] = item
	return nil
}

type sentMessage struct {
	chatID  int64
	text    string
	replyTo int
}

type editedMessage struct {
	chatID    int64
	messageID int
	text      string
}

type memoryGateway struct {
	mu      sync.Mutex
	sent    []sentMessage
	edited  []editedMessage
	nextID  int
	sendErr error
}

func (g *memoryGateway) SendMessage(ctx context.Context, chatID int64, text string, buttons [][]gateway.Button, replyTo int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return 0, g.sendErr
	}
	g.nextID++
	g.sent = append(g.sent, sentMessage{chatID: chatID, text: text, replyTo: replyTo})
	return g.nextID, nil
}

func (g *memoryGateway) EditMessage(ctx context.Context, chatID int64, messageID int, text string, buttons [][]gateway.Button) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edited = append(g.edited, editedMessage{chatID: chatID, messageID: messageID, text: text})
	return nil
}

const (
	staffChatID = int64(-100900)
	staffTopic  = 21
)

func newTestRouter(t *testing.T) (*Router, *memoryRepository, *memoryGateway) {
	t.Helper()
	def := flow.Default(flow.DefaultDestinations{
		ChatID:         staffChatID,
		ReligiousTopic: staffTopic,
		CulturalTopic:  22,
	})
	repo := newMemoryRepository()
	gw := &memoryGateway{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouterWithRepository(def, repo, gw, logger), repo, gw
}

func testSubmission() Submission {
	return Submission{
		Submitter: gateway.Identity{
			UserID:    7,
			Username:  "asker",
			FirstName: "Asks",
			LastName:  "Alot",
		},
		MessageID: 42,
		Inputs: map[string]string{
			flow.StateChooseBatch:   "First batch",
			flow.StateChooseSection: "Religious studies",
			flow.StateChooseSubject: "Creed",
			flow.StateQuestion:      "What nullifies ablution?",
		},
		DestinationChat:  staffChatID,
		DestinationTopic: staffTopic,
	}
}

func TestSubmitCreatesForwardsAndLinks(t *testing.T) {
	router, repo, gw := newTestRouter(t)

	id, err := router.Submit(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == "" {
		t.Fatal("expected a question id")
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected one created question, got %d", len(repo.created))
	}
	item := repo.created[0]
	if item.PK != "USER#7" {
		t.Fatalf("PK = %q", item.PK)
	}
	if !strings.HasPrefix(item.SK, "QUESTION#") {
		t.Fatalf("SK = %q", item.SK)
	}
	if item.GSI1PK != "STATUS#🟡" {
		t.Fatalf("GSI1PK = %q", item.GSI1PK)
	}
	if item.GSI1SK != "USER#7" {
		t.Fatalf("GSI1SK = %q", item.GSI1SK)
	}
	if item.QuestionStatus != model.StatusUnanswered {
		t.Fatalf("status = %q", item.QuestionStatus)
	}
	if item.QuestionID != 42 {
		t.Fatalf("question id = %d, want 42", item.QuestionID)
	}
	if item.UserUsername != "@asker" {
		t.Fatalf("username = %q", item.UserUsername)
	}
	if item.UserFullName != "Asks Alot" {
		t.Fatalf("full name = %q", item.UserFullName)
	}

	if len(gw.sent) != 1 {
		t.Fatalf("expected one forwarded message, got %d", len(gw.sent))
	}
	sent := gw.sent[0]
	if sent.chatID != staffChatID || sent.replyTo != staffTopic {
		t.Fatalf("forwarded to (%d, %d)", sent.chatID, sent.replyTo)
	}

	lines := strings.Split(sent.text, "\n")
	if lines[0] != "🟡" {
		t.Fatalf("first line = %q, want the status glyph", lines[0])
	}
	if lines[1] != "From: Asks Alot" || lines[2] != "Username: @asker" {
		t.Fatalf("identity lines = %q, %q", lines[1], lines[2])
	}
	// Inputs render in flow order, not map order.
	if lines[3] != "Batch: First batch" {
		t.Fatalf("line 4 = %q", lines[3])
	}
	if lines[len(lines)-1] != "Question: What nullifies ablution?" {
		t.Fatalf("last line = %q", lines[len(lines)-1])
	}

	key, ok := repo.linked[item.SK]
	if !ok {
		t.Fatal("question was not linked")
	}
	if key.chatID != staffChatID || key.messageID != 1 {
		t.Fatalf("linked to (%d, %d)", key.chatID, key.messageID)
	}
}

func TestSubmitWithoutUsernameUsesPlaceholder(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	sub := testSubmission()
	sub.Submitter.Username = ""

	if _, err := router.Submit(context.Background(), sub); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if repo.created[0].UserUsername != noUsername {
		t.Fatalf("username = %q, want placeholder", repo.created[0].UserUsername)
	}
}

func TestSubmitSendFailureLeavesQuestionUnlinked(t *testing.T) {
	router, repo, gw := newTestRouter(t)
	gw.sendErr = errors.New("flood wait")

	_, err := router.Submit(context.Background(), testSubmission())
	if err == nil {
		t.Fatal("expected submit to fail")
	}
	if len(repo.created) != 1 {
		t.Fatalf("question should still be stored, got %d", len(repo.created))
	}
	if len(repo.linked) != 0 {
		t.Fatal("failed forward must not link a destination")
	}
}

func TestSubmitLinkFailureSurfaces(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	repo.linkErr = errors.New("throttled")

	_, err := router.Submit(context.Background(), testSubmission())
	if err == nil || !strings.Contains(err.Error(), "link question") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func seedForwardedQuestion(t *testing.T, router *Router, repo *memoryRepository) (model.QuestionItem, destKey) {
	t.Helper()
	if _, err := router.Submit(context.Background(), testSubmission()); err != nil {
		t.Fatalf("seed submit: %v", err)
	}
	item := repo.created[0]
	key := repo.linked[item.SK]
	return item, key
}

func staffReply(key destKey, text string, targetText string) Reply {
	return Reply{
		ChatID:          key.chatID,
		MessageID:       500,
		TargetMessageID: key.messageID,
		TargetText:      targetText,
		TopicID:         staffTopic,
		Text:            text,
		Sender: gateway.Identity{
			UserID:    99,
			Username:  "teacher",
			FirstName: "Tea",
			LastName:  "Cher",
		},
		Date: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRelayRoundTrip(t *testing.T) {
	router, repo, gw := newTestRouter(t)
	item, key := seedForwardedQuestion(t, router, repo)
	forwardedText := gw.sent[0].text

	matched, err := router.Relay(context.Background(), staffReply(key, "Three things do.", forwardedText))
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	if !matched {
		t.Fatal("expected the reply to match the forwarded question")
	}

	// The answer goes back to the submitter, threaded under the original
	// question message.
	answer := gw.sent[len(gw.sent)-1]
	if answer.chatID != item.UserID {
		t.Fatalf("answer sent to %d, want %d", answer.chatID, item.UserID)
	}
	if answer.replyTo != item.QuestionID {
		t.Fatalf("answer threaded to %d, want %d", answer.replyTo, item.QuestionID)
	}
	if answer.text != "Three things do." {
		t.Fatalf("answer text = %q", answer.text)
	}

	if len(repo.answered) != 1 {
		t.Fatalf("expected one answered write, got %d", len(repo.answered))
	}
	updated := repo.answered[0]
	if updated.QuestionStatus != model.StatusAnswered {
		t.Fatalf("status = %q", updated.QuestionStatus)
	}
	if updated.GSI1PK != "STATUS#🟢" {
		t.Fatalf("GSI1PK = %q", updated.GSI1PK)
	}
	if len(updated.Answers) != 1 {
		t.Fatalf("expected one answer, got %d", len(updated.Answers))
	}
	ans := updated.Answers[0]
	if ans.Text != "Three things do." || ans.SrcMsgID != 500 || ans.SenderID != 99 {
		t.Fatalf("answer entry = %+v", ans)
	}
	if ans.FirstName != "Tea" {
		t.Fatalf("answer sender first name = %q", ans.FirstName)
	}

	if len(gw.edited) != 1 {
		t.Fatalf("expected one glyph edit, got %d", len(gw.edited))
	}
	edit := gw.edited[0]
	if edit.chatID != key.chatID || edit.messageID != key.messageID {
		t.Fatalf("edited (%d, %d)", edit.chatID, edit.messageID)
	}
	if !strings.HasPrefix(edit.text, "🟢") || strings.Contains(edit.text, "🟡") {
		t.Fatalf("glyph not flipped: %q", edit.text)
	}
}

func TestRelaySecondReplyDoublesGlyph(t *testing.T) {
	router, repo, gw := newTestRouter(t)
	_, key := seedForwardedQuestion(t, router, repo)
	forwardedText := gw.sent[0].text

	if _, err := router.Relay(context.Background(), staffReply(key, "First answer.", forwardedText)); err != nil {
		t.Fatalf("first relay: %v", err)
	}
	onceFlipped := gw.edited[0].text
	if _, err := router.Relay(context.Background(), staffReply(key, "Second answer.", onceFlipped)); err != nil {
		t.Fatalf("second relay: %v", err)
	}

	twiceFlipped := gw.edited[1].text
	if !strings.HasPrefix(twiceFlipped, "🟢🟢") {
		t.Fatalf("second reply should double the glyph: %q", twiceFlipped)
	}

	updated := repo.answered[len(repo.answered)-1]
	if len(updated.Answers) != 2 {
		t.Fatalf("expected two answers, got %d", len(updated.Answers))
	}
}

func TestRelayHiddenSenderFallback(t *testing.T) {
	router, repo, gw := newTestRouter(t)
	_, key := seedForwardedQuestion(t, router, repo)

	reply := staffReply(key, "An answer.", gw.sent[0].text)
	reply.Sender = gateway.Identity{}

	if _, err := router.Relay(context.Background(), reply); err != nil {
		t.Fatalf("relay: %v", err)
	}
	ans := repo.answered[0].Answers[0]
	if ans.FirstName != hiddenSender || ans.Username != hiddenSender {
		t.Fatalf("hidden sender not applied: %+v", ans)
	}
}

func TestRelayUnmatchedReplyIsDropped(t *testing.T) {
	router, _, gw := newTestRouter(t)

	matched, err := router.Relay(context.Background(), Reply{
		ChatID:          staffChatID,
		MessageID:       600,
		TargetMessageID: 12345,
		Text:            "just chatting",
	})
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	if matched {
		t.Fatal("reply to an unrelated message must not match")
	}
	if len(gw.sent) != 0 || len(gw.edited) != 0 {
		t.Fatal("unmatched reply must not touch the gateway")
	}
}

func TestFlipStatusGlyph(t *testing.T) {
	if got := flipStatusGlyph("🟡\nQuestion"); got != "🟢\nQuestion" {
		t.Fatalf("first flip = %q", got)
	}
	if got := flipStatusGlyph("🟢\nQuestion"); got != "🟢🟢\nQuestion" {
		t.Fatalf("second flip = %q", got)
	}
	if got := flipStatusGlyph("no glyph here"); got != "no glyph here" {
		t.Fatalf("text without glyphs changed: %q", got)
	}
}
