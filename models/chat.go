package models

import "time"

// MessageRole — роль реплики в диалоге.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageType — тип содержимого реплики.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeAudio    MessageType = "audio"
	TypeImage    MessageType = "image"
	TypeDocument MessageType = "document"
	TypeLocation MessageType = "location"
	TypeContact  MessageType = "contact"
)

// ChatMessage — одна реплика диалога. Строки append-only: после
// создания меняются только поля обратной связи.
type ChatMessage struct {
	ID    int64 `json:"id"`
	BotID int64 `json:"botId"`

	PlatformUserID   string `json:"platformUserId"`
	PlatformUsername string `json:"platformUsername,omitempty"`
	SessionID        string `json:"sessionId"`

	Role        MessageRole `json:"role"`
	MessageType MessageType `json:"messageType"`
	Content     string      `json:"content"`
	MediaURL    string      `json:"mediaUrl,omitempty"`

	// Метаданные генерации
	AIModel        string `json:"aiModel,omitempty"`
	TokensUsed     int    `json:"tokensUsed"`
	ResponseTimeMs int    `json:"responseTimeMs"`

	// ID записей базы знаний, вошедших в контекст ответа.
	ContextIDs []int64 `json:"contextIds,omitempty"`

	// Обратная связь
	FeedbackScore *int   `json:"feedbackScore,omitempty"`
	FeedbackText  string `json:"feedbackText,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// HistoryTurn — реплика в формате, который уходит в генерацию.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
