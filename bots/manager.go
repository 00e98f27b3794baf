package bots

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"botfactory/logging"
	"botfactory/models"
)

// Cache держит по одному адаптеру на бота. Записи живут до явного
// Evict при изменении или удалении бота.
type Cache struct {
	mu       sync.RWMutex
	registry *Registry
	adapters map[int64]Adapter
}

func NewCache(registry *Registry) *Cache {
	return &Cache{registry: registry, adapters: make(map[int64]Adapter)}
}

// For возвращает адаптер бота, создавая его при первом обращении.
func (c *Cache) For(bot *models.Bot) (Adapter, error) {
	c.mu.RLock()
	a, ok := c.adapters[bot.ID]
	c.mu.RUnlock()
	if ok {
		return a, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.adapters[bot.ID]; ok {
		return a, nil
	}
	a, err := c.registry.For(bot)
	if err != nil {
		return nil, err
	}
	c.adapters[bot.ID] = a
	return a, nil
}

// Evict выбрасывает адаптер бота (смена токена, удаление).
func (c *Cache) Evict(botID int64) {
	c.mu.Lock()
	delete(c.adapters, botID)
	c.mu.Unlock()
}

// Clear сбрасывает весь кэш.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.adapters = make(map[int64]Adapter)
	c.mu.Unlock()
}

// Manager активирует и выключает ботов на их платформах.
type Manager struct {
	cache          *Cache
	webhookBaseURL string
}

func NewManager(cache *Cache, webhookBaseURL string) *Manager {
	return &Manager{cache: cache, webhookBaseURL: webhookBaseURL}
}

// WebhookURL — адрес, на который платформа будет слать апдейты бота.
func (m *Manager) WebhookURL(bot *models.Bot) string {
	return fmt.Sprintf("%s/api/v1/webhooks/%s/%s", m.webhookBaseURL, bot.Platform, bot.Token)
}

// ValidateAndActivate проверяет токен и регистрирует webhook.
// Меняет Status/IsActive/WebhookURL на боте; сохранение — за вызывающим.
func (m *Manager) ValidateAndActivate(ctx context.Context, bot *models.Bot) error {
	adapter, err := m.cache.For(bot)
	if err != nil {
		return err
	}

	if !adapter.ValidateCredential(ctx) {
		bot.Status = models.BotError
		bot.IsActive = false
		bot.ErrorMessage = "Bot token noto'g'ri"
		return fmt.Errorf("ValidateAndActivate: токен бота %d отклонён платформой", bot.ID)
	}

	url := m.WebhookURL(bot)
	if !adapter.RegisterWebhook(ctx, url) {
		bot.Status = models.BotError
		bot.IsActive = false
		bot.ErrorMessage = "Webhook o'rnatib bo'lmadi"
		return fmt.Errorf("ValidateAndActivate: webhook бота %d не зарегистрирован", bot.ID)
	}

	bot.Status = models.BotActive
	bot.IsActive = true
	bot.WebhookURL = url
	bot.ErrorMessage = ""
	logging.Bot.Info("бот активирован", zap.Int64("botID", bot.ID), zap.String("webhook", url))
	return nil
}

// Deactivate снимает webhook (пустой URL) и помечает бота неактивным.
func (m *Manager) Deactivate(ctx context.Context, bot *models.Bot) {
	if adapter, err := m.cache.For(bot); err == nil {
		adapter.RegisterWebhook(ctx, "")
	}
	m.cache.Evict(bot.ID)
	bot.Status = models.BotInactive
	bot.IsActive = false
	bot.WebhookURL = ""
	logging.Bot.Info("бот остановлен", zap.Int64("botID", bot.ID))
}
