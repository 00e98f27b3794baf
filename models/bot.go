package models

import (
	"fmt"
	"time"
)

// BotPlatform — платформа, к которой привязан бот.
type BotPlatform string

const (
	PlatformTelegram  BotPlatform = "telegram"
	PlatformWhatsApp  BotPlatform = "whatsapp"
	PlatformInstagram BotPlatform = "instagram"
)

// BotStatus — состояние бота.
type BotStatus string

const (
	BotPending  BotStatus = "pending"
	BotActive   BotStatus = "active"
	BotInactive BotStatus = "inactive"
	BotError    BotStatus = "error"
)

// BotLanguage — язык ответов бота.
type BotLanguage string

const (
	LangUz BotLanguage = "uz"
	LangRu BotLanguage = "ru"
	LangEn BotLanguage = "en"
)

// BotSettings — поведенческие настройки бота. Хранятся в JSON-колонке,
// но в коде всегда типизированы.
type BotSettings struct {
	GreetingMessage       string  `json:"greeting_message"`
	FallbackMessage       string  `json:"fallback_message"`
	TypingDelay           float64 `json:"typing_delay"`
	EnableTypingIndicator bool    `json:"enable_typing_indicator"`
	EnableReadReceipts    bool    `json:"enable_read_receipts"`
	MaxContextMessages    int     `json:"max_context_messages"`
	EnableAudioMessages   bool    `json:"enable_audio_messages"`
}

// DefaultSettings — значения по умолчанию для нового бота.
func DefaultSettings() BotSettings {
	return BotSettings{
		GreetingMessage:       "Salom! Men sizga qanday yordam bera olaman?",
		FallbackMessage:       "Kechirasiz, bu savolga javob topa olmadim.",
		TypingDelay:           1.0,
		EnableTypingIndicator: true,
		EnableReadReceipts:    true,
		MaxContextMessages:    10,
		EnableAudioMessages:   true,
	}
}

// Validate проверяет границы настроек.
func (s *BotSettings) Validate() error {
	if s.TypingDelay < 0 || s.TypingDelay > 10 {
		return fmt.Errorf("typing_delay %.1f вне диапазона [0, 10]", s.TypingDelay)
	}
	if s.MaxContextMessages < 1 || s.MaxContextMessages > 50 {
		return fmt.Errorf("max_context_messages %d вне диапазона [1, 50]", s.MaxContextMessages)
	}
	return nil
}

// Bot представляет собой чат-бота, привязанного к платформе и владельцу.
type Bot struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"userId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Platform   BotPlatform `json:"platform"`
	Token      string      `json:"-"` // токен уникален среди всех ботов
	WebhookURL string      `json:"webhookUrl,omitempty"`

	Language     BotLanguage `json:"language"`
	SystemPrompt string      `json:"systemPrompt,omitempty"`
	Temperature  float64     `json:"temperature"` // [0, 2]
	MaxTokens    int         `json:"maxTokens"`   // [100, 4000]

	Settings BotSettings `json:"settings"`

	Status       BotStatus `json:"status"`
	IsActive     bool      `json:"isActive"`
	ErrorMessage string    `json:"errorMessage,omitempty"`

	TotalMessages int64      `json:"totalMessages"`
	TotalUsers    int64      `json:"totalUsers"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate проверяет AI-параметры бота.
func (b *Bot) Validate() error {
	if b.Temperature < 0 || b.Temperature > 2 {
		return fmt.Errorf("temperature %.2f вне диапазона [0, 2]", b.Temperature)
	}
	if b.MaxTokens < 100 || b.MaxTokens > 4000 {
		return fmt.Errorf("max_tokens %d вне диапазона [100, 4000]", b.MaxTokens)
	}
	switch b.Platform {
	case PlatformTelegram, PlatformWhatsApp, PlatformInstagram:
	default:
		return fmt.Errorf("неизвестная платформа: %q", b.Platform)
	}
	switch b.Language {
	case LangUz, LangRu, LangEn:
	default:
		return fmt.Errorf("неизвестный язык: %q", b.Language)
	}
	return nil
}

// FallbackMessage возвращает настроенный fallback или языковой дефолт.
func (b *Bot) FallbackMessage() string {
	if b.Settings.FallbackMessage != "" {
		return b.Settings.FallbackMessage
	}
	return FallbackFor(b.Language)
}

// FallbackFor — статичный запасной ответ для языка.
func FallbackFor(lang BotLanguage) string {
	switch lang {
	case LangRu:
		return "Извините, не могу ответить сейчас. Пожалуйста, попробуйте позже."
	case LangEn:
		return "Sorry, I can't respond right now. Please try again later."
	default:
		return "Kechirasiz, hozir javob bera olmayapman. Iltimos, keyinroq qayta urinib ko'ring."
	}
}
