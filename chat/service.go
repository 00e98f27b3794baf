// Package chat — оркестровка одного входящего сообщения: сессия,
// история, контекст, генерация, сохранение, статистика.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"botfactory/knowledge"
	"botfactory/llm"
	"botfactory/logging"
	"botfactory/models"
)

// sessionWindow — пауза, после которой диалог считается новой сессией.
const sessionWindow = 30 * time.Minute

// historyLimit — сколько реплик истории уходит в генерацию.
const historyLimit = 10

// Store — подмножество хранилища диалогов.
type Store interface {
	SaveMessage(ctx context.Context, m *models.ChatMessage) error
	LastSession(ctx context.Context, botID int64, platformUserID string) (string, time.Time, error)
	RecentHistory(ctx context.Context, botID int64, platformUserID string, limit int) ([]models.HistoryTurn, error)
}

// BotStore — статистика бота.
type BotStore interface {
	BumpStats(ctx context.Context, botID int64) error
}

// UserStore — владелец бота и его месячный счётчик.
type UserStore interface {
	ByID(ctx context.Context, id int64) (*models.User, error)
	IncrementMessages(ctx context.Context, userID int64) error
}

// Retriever подбирает контекст из базы знаний.
type Retriever interface {
	Search(ctx context.Context, botID int64, query string) knowledge.Context
}

// Generator генерирует ответ; сбой всегда превращается в заглушку.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) string
}

// Notifier получает сохранённые реплики (живая лента владельца).
type Notifier interface {
	NotifyTurn(botID int64, userMsg, botMsg *models.ChatMessage)
}

// Service — пайплайн обработки сообщения.
type Service struct {
	store     Store
	bots      BotStore
	users     UserStore
	retriever Retriever
	generator Generator
	notifier  Notifier
	aiModel   string
}

func NewService(store Store, bots BotStore, users UserStore, retriever Retriever, generator Generator, notifier Notifier, aiModel string) *Service {
	return &Service{
		store:     store,
		bots:      bots,
		users:     users,
		retriever: retriever,
		generator: generator,
		notifier:  notifier,
		aiModel:   aiModel,
	}
}

// ResolveSession возвращает session_id последней сессии, если с её
// последней реплики прошло меньше 30 минут, иначе новый UUID.
func (s *Service) ResolveSession(ctx context.Context, botID int64, platformUserID string) (string, error) {
	sessionID, lastAt, err := s.store.LastSession(ctx, botID, platformUserID)
	if err != nil {
		return "", fmt.Errorf("ResolveSession: %w", err)
	}
	if sessionID != "" && time.Since(lastAt) < sessionWindow {
		return sessionID, nil
	}
	return uuid.New().String(), nil
}

// ProcessMessage проводит входящее сообщение через весь пайплайн и
// возвращает текст ответа. Доставка ответа — забота вызывающего.
//
// Межзапросных блокировок нет: два конкурентных сообщения одной пары
// (бот, пользователь) могут перемешать шаги произвольно.
func (s *Service) ProcessMessage(ctx context.Context, bot *models.Bot, platformUserID, platformUsername, text string, messageType models.MessageType, mediaURL string) (string, error) {
	start := time.Now()

	sessionID, err := s.ResolveSession(ctx, bot.ID, platformUserID)
	if err != nil {
		return "", err
	}

	inbound := &models.ChatMessage{
		BotID:            bot.ID,
		PlatformUserID:   platformUserID,
		PlatformUsername: platformUsername,
		SessionID:        sessionID,
		Role:             models.RoleUser,
		MessageType:      messageType,
		Content:          text,
		MediaURL:         mediaURL,
	}
	if err := s.store.SaveMessage(ctx, inbound); err != nil {
		return "", fmt.Errorf("ProcessMessage: %w", err)
	}

	// Месячная квота владельца: при превышении отвечаем заглушкой,
	// входящая реплика уже сохранена.
	owner, err := s.users.ByID(ctx, bot.UserID)
	if err != nil {
		return "", fmt.Errorf("ProcessMessage: %w", err)
	}
	if owner != nil && !owner.CanSendMessage() {
		logging.Bot.Warn("месячный лимит сообщений исчерпан",
			zap.Int64("botID", bot.ID), zap.Int64("userID", bot.UserID))
		return s.respond(ctx, bot, inbound, bot.FallbackMessage(), nil, start)
	}

	history, err := s.store.RecentHistory(ctx, bot.ID, platformUserID, historyLimit)
	if err != nil {
		return "", fmt.Errorf("ProcessMessage: %w", err)
	}
	// Запрос отдаёт новые первыми; генерации нужна хронология.
	reverse(history)

	kctx := s.retriever.Search(ctx, bot.ID, text)

	// Ответ идёт в Telegram с parse_mode=HTML: лишние теги и
	// markdown-ограждения до доставки не доживают.
	response := llm.SanitizeHTML(s.generator.Generate(ctx, llm.GenerateRequest{
		Message:      text,
		Context:      kctx.Text,
		History:      history,
		SystemPrompt: bot.SystemPrompt,
		Language:     bot.Language,
		Temperature:  bot.Temperature,
		MaxTokens:    bot.MaxTokens,
	}))

	reply, err := s.respond(ctx, bot, inbound, response, kctx.ItemIDs, start)
	if err != nil {
		return "", err
	}

	if err := s.users.IncrementMessages(ctx, bot.UserID); err != nil {
		logging.Bot.Warn("не удалось обновить счётчик сообщений", zap.Error(err))
	}

	logging.Bot.Info("сообщение обработано",
		zap.Int64("botID", bot.ID),
		zap.String("platformUserID", platformUserID),
		zap.Int("responseLen", len(reply)),
		zap.Duration("took", time.Since(start)))

	return reply, nil
}

// respond сохраняет исходящую реплику, обновляет статистику бота и
// уведомляет ленту.
func (s *Service) respond(ctx context.Context, bot *models.Bot, inbound *models.ChatMessage, text string, contextIDs []int64, start time.Time) (string, error) {
	outbound := &models.ChatMessage{
		BotID:            bot.ID,
		PlatformUserID:   inbound.PlatformUserID,
		PlatformUsername: inbound.PlatformUsername,
		SessionID:        inbound.SessionID,
		Role:             models.RoleAssistant,
		MessageType:      models.TypeText,
		Content:          text,
		AIModel:          s.aiModel,
		ResponseTimeMs:   int(time.Since(start).Milliseconds()),
		ContextIDs:       contextIDs,
	}
	if err := s.store.SaveMessage(ctx, outbound); err != nil {
		return "", fmt.Errorf("respond: %w", err)
	}

	if err := s.bots.BumpStats(ctx, bot.ID); err != nil {
		logging.Bot.Warn("не удалось обновить статистику бота",
			zap.Int64("botID", bot.ID), zap.Error(err))
	}

	if s.notifier != nil {
		s.notifier.NotifyTurn(bot.ID, inbound, outbound)
	}

	return text, nil
}

func reverse(turns []models.HistoryTurn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
