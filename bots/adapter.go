// Package bots — платформенные адаптеры каналов доставки.
package bots

import (
	"context"
	"errors"

	"botfactory/models"
)

// ErrPlatformUnsupported возвращается реестром для платформ без адаптера.
var ErrPlatformUnsupported = errors.New("платформа не поддерживается")

// Inbound — декодированное входящее событие платформы. Либо сообщение
// (Text/Media), либо callback от inline-кнопки.
type Inbound struct {
	SenderID   string
	SenderName string
	Text       string
	// MediaURL — ссылка на вложение; для Telegram это "file:<file_id>".
	MediaURL    string
	MessageType models.MessageType

	// Callback-событие inline-кнопки.
	IsCallback   bool
	CallbackID   string
	CallbackData string

	Metadata map[string]any
}

// Button — одна inline-кнопка из плоского списка.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Response — исходящий ответ бота.
type Response struct {
	Text     string
	ImageURL string
	AudioURL string
	Buttons  []Button
}

// Adapter — контракт платформенного канала.
type Adapter interface {
	// Send доставляет ответ. false — основная текстовая отправка не удалась.
	Send(ctx context.Context, recipientID string, resp *Response) bool
	// SendTyping показывает индикатор набора; сбой только логируется.
	SendTyping(ctx context.Context, recipientID string)
	// DecodeInbound разбирает сырой webhook-payload; nil — нераспознан.
	DecodeInbound(raw []byte) *Inbound
	// ValidateCredential проверяет токен запросом "кто я".
	ValidateCredential(ctx context.Context) bool
	// RegisterWebhook регистрирует URL у платформы.
	RegisterWebhook(ctx context.Context, url string) bool
	// AnswerCallback подтверждает callback, чтобы у клиента пропал спиннер.
	AnswerCallback(ctx context.Context, callbackID string)
}

// Factory создаёт адаптер для конкретного бота.
type Factory func(bot *models.Bot) Adapter

// Registry — диспетчер адаптеров по платформе.
type Registry struct {
	factories map[models.BotPlatform]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[models.BotPlatform]Factory)}
}

// Register связывает платформу с фабрикой адаптеров.
func (r *Registry) Register(platform models.BotPlatform, f Factory) {
	r.factories[platform] = f
}

// For возвращает адаптер для бота его платформы.
func (r *Registry) For(bot *models.Bot) (Adapter, error) {
	f, ok := r.factories[bot.Platform]
	if !ok {
		return nil, ErrPlatformUnsupported
	}
	return f(bot), nil
}
