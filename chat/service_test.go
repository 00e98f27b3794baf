package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfactory/knowledge"
	"botfactory/llm"
	"botfactory/models"
)

type fakeChatStore struct {
	saved     []*models.ChatMessage
	sessionID string
	lastAt    time.Time
	history   []models.HistoryTurn
}

func (s *fakeChatStore) SaveMessage(ctx context.Context, m *models.ChatMessage) error {
	m.ID = int64(len(s.saved) + 1)
	s.saved = append(s.saved, m)
	return nil
}

func (s *fakeChatStore) LastSession(ctx context.Context, botID int64, platformUserID string) (string, time.Time, error) {
	return s.sessionID, s.lastAt, nil
}

func (s *fakeChatStore) RecentHistory(ctx context.Context, botID int64, platformUserID string, limit int) ([]models.HistoryTurn, error) {
	return s.history, nil
}

type fakeBotStore struct{ bumps int }

func (s *fakeBotStore) BumpStats(ctx context.Context, botID int64) error {
	s.bumps++
	return nil
}

type fakeUserStore struct {
	user       *models.User
	increments int
}

func (s *fakeUserStore) ByID(ctx context.Context, id int64) (*models.User, error) {
	return s.user, nil
}

func (s *fakeUserStore) IncrementMessages(ctx context.Context, userID int64) error {
	s.increments++
	return nil
}

type fakeRetriever struct {
	result   knowledge.Context
	gotQuery string
}

func (r *fakeRetriever) Search(ctx context.Context, botID int64, query string) knowledge.Context {
	r.gotQuery = query
	return r.result
}

type fakeGenerator struct {
	reply  string
	gotReq llm.GenerateRequest
	called bool
}

func (g *fakeGenerator) Generate(ctx context.Context, req llm.GenerateRequest) string {
	g.called = true
	g.gotReq = req
	return g.reply
}

type fakeNotifier struct {
	botIDs []int64
	users  []*models.ChatMessage
	bots   []*models.ChatMessage
}

func (n *fakeNotifier) NotifyTurn(botID int64, userMsg, botMsg *models.ChatMessage) {
	n.botIDs = append(n.botIDs, botID)
	n.users = append(n.users, userMsg)
	n.bots = append(n.bots, botMsg)
}

func testBot() *models.Bot {
	return &models.Bot{
		ID:          5,
		UserID:      7,
		Name:        "Savdo yordamchisi",
		Platform:    models.PlatformTelegram,
		Language:    models.LangUz,
		Temperature: 0.7,
		MaxTokens:   1000,
		Settings:    models.DefaultSettings(),
	}
}

func testOwner() *models.User {
	return &models.User{
		ID:               7,
		SubscriptionType: models.SubscriptionStarter,
	}
}

func newTestService(store *fakeChatStore, users *fakeUserStore, retriever *fakeRetriever, gen *fakeGenerator, notifier *fakeNotifier) (*Service, *fakeBotStore) {
	bots := &fakeBotStore{}
	return NewService(store, bots, users, retriever, gen, notifier, "gemini-2.0-flash-exp"), bots
}

func TestResolveSessionReusesRecent(t *testing.T) {
	store := &fakeChatStore{sessionID: "sess-1", lastAt: time.Now().Add(-10 * time.Minute)}
	svc, _ := newTestService(store, &fakeUserStore{user: testOwner()}, &fakeRetriever{}, &fakeGenerator{}, nil)

	got, err := svc.ResolveSession(context.Background(), 5, "100")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got)
}

func TestResolveSessionNewAfterWindow(t *testing.T) {
	store := &fakeChatStore{sessionID: "sess-1", lastAt: time.Now().Add(-31 * time.Minute)}
	svc, _ := newTestService(store, &fakeUserStore{user: testOwner()}, &fakeRetriever{}, &fakeGenerator{}, nil)

	got, err := svc.ResolveSession(context.Background(), 5, "100")
	require.NoError(t, err)
	assert.NotEqual(t, "sess-1", got)
	assert.NotEmpty(t, got)
}

func TestResolveSessionFirstContact(t *testing.T) {
	svc, _ := newTestService(&fakeChatStore{}, &fakeUserStore{user: testOwner()}, &fakeRetriever{}, &fakeGenerator{}, nil)

	got, err := svc.ResolveSession(context.Background(), 5, "100")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestProcessMessage(t *testing.T) {
	store := &fakeChatStore{
		// Запрос отдаёт новые первыми.
		history: []models.HistoryTurn{
			{Role: "assistant", Content: "T5"},
			{Role: "user", Content: "T4"},
			{Role: "assistant", Content: "T3"},
			{Role: "user", Content: "T2"},
			{Role: "user", Content: "T1"},
		},
	}
	users := &fakeUserStore{user: testOwner()}
	retriever := &fakeRetriever{result: knowledge.Context{Text: "Savol: Ish vaqti?\nJavob: 9-18", ItemIDs: []int64{11, 12}}}
	gen := &fakeGenerator{reply: "Biz 9:00 dan 18:00 gacha ishlaymiz."}
	notifier := &fakeNotifier{}
	svc, bots := newTestService(store, users, retriever, gen, notifier)

	reply, err := svc.ProcessMessage(context.Background(), testBot(), "100", "alisher", "Salom", models.TypeText, "")
	require.NoError(t, err)
	assert.Equal(t, "Biz 9:00 dan 18:00 gacha ishlaymiz.", reply)

	require.Len(t, store.saved, 2)
	inbound, outbound := store.saved[0], store.saved[1]
	assert.Equal(t, models.RoleUser, inbound.Role)
	assert.Equal(t, "Salom", inbound.Content)
	assert.Equal(t, "alisher", inbound.PlatformUsername)
	assert.Equal(t, models.RoleAssistant, outbound.Role)
	assert.Equal(t, reply, outbound.Content)
	assert.Equal(t, inbound.SessionID, outbound.SessionID)
	assert.Equal(t, "gemini-2.0-flash-exp", outbound.AIModel)
	assert.Equal(t, []int64{11, 12}, outbound.ContextIDs)

	// История уходит в генерацию в хронологическом порядке.
	gotOrder := make([]string, 0, len(gen.gotReq.History))
	for _, turn := range gen.gotReq.History {
		gotOrder = append(gotOrder, turn.Content)
	}
	assert.Equal(t, []string{"T1", "T2", "T3", "T4", "T5"}, gotOrder)
	assert.Equal(t, "Salom", gen.gotReq.Message)
	assert.Equal(t, retriever.result.Text, gen.gotReq.Context)
	assert.Equal(t, 0.7, gen.gotReq.Temperature)
	assert.Equal(t, 1000, gen.gotReq.MaxTokens)
	assert.Equal(t, "Salom", retriever.gotQuery)

	assert.Equal(t, 1, users.increments)
	assert.Equal(t, 1, bots.bumps)
	require.Len(t, notifier.botIDs, 1)
	assert.Equal(t, int64(5), notifier.botIDs[0])
	assert.Equal(t, inbound, notifier.users[0])
	assert.Equal(t, outbound, notifier.bots[0])
}

// Ответ модели чистится от тегов, которые Telegram не примет
// в parse_mode=HTML, ещё в пайплайне: и доставка, и история
// получают уже очищенный текст.
func TestProcessMessageSanitizesReply(t *testing.T) {
	store := &fakeChatStore{}
	gen := &fakeGenerator{reply: "```html\n<div>Ish vaqti: <b>9:00-18:00</b></div>\n```"}
	svc, _ := newTestService(store, &fakeUserStore{user: testOwner()}, &fakeRetriever{}, gen, &fakeNotifier{})

	reply, err := svc.ProcessMessage(context.Background(), testBot(), "100", "alisher", "Ish vaqti?", models.TypeText, "")
	require.NoError(t, err)

	assert.Equal(t, "Ish vaqti: <b>9:00-18:00</b>", reply)
	require.Len(t, store.saved, 2)
	assert.Equal(t, reply, store.saved[1].Content)
}

// Повторная доставка того же апдейта не дедуплицируется: каждая
// обработка сохраняет свою пару реплик.
func TestProcessMessageReplayStoresTwice(t *testing.T) {
	store := &fakeChatStore{}
	users := &fakeUserStore{user: testOwner()}
	gen := &fakeGenerator{reply: "Salom!"}
	svc, bots := newTestService(store, users, &fakeRetriever{}, gen, &fakeNotifier{})

	bot := testBot()
	for i := 0; i < 2; i++ {
		_, err := svc.ProcessMessage(context.Background(), bot, "100", "alisher", "Salom", models.TypeText, "")
		require.NoError(t, err)
	}

	assert.Len(t, store.saved, 4)
	assert.Equal(t, 2, users.increments)
	assert.Equal(t, 2, bots.bumps)
}

func TestProcessMessageQuotaExceeded(t *testing.T) {
	owner := testOwner()
	owner.MessagesThisMonth = owner.MessageLimit()
	store := &fakeChatStore{}
	users := &fakeUserStore{user: owner}
	gen := &fakeGenerator{reply: "не должно попасть в ответ"}
	svc, _ := newTestService(store, users, &fakeRetriever{}, gen, &fakeNotifier{})

	bot := testBot()
	reply, err := svc.ProcessMessage(context.Background(), bot, "100", "alisher", "Salom", models.TypeText, "")
	require.NoError(t, err)

	assert.Equal(t, bot.FallbackMessage(), reply)
	assert.False(t, gen.called)
	// Входящая реплика сохраняется даже при исчерпанной квоте.
	require.Len(t, store.saved, 2)
	assert.Equal(t, models.RoleUser, store.saved[0].Role)
	assert.Equal(t, bot.FallbackMessage(), store.saved[1].Content)
	assert.Equal(t, 0, users.increments)
}
