package models

import "time"

// KnowledgeSourceType — тип источника записи базы знаний.
type KnowledgeSourceType string

const (
	SourceText    KnowledgeSourceType = "text"
	SourceFile    KnowledgeSourceType = "file"
	SourceURL     KnowledgeSourceType = "url"
	SourceFAQ     KnowledgeSourceType = "faq"
	SourceProduct KnowledgeSourceType = "product"
)

// KnowledgeItem — единица базы знаний бота.
type KnowledgeItem struct {
	ID    int64 `json:"id"`
	BotID int64 `json:"botId"`

	Title      string              `json:"title"`
	Content    string              `json:"content"`
	SourceType KnowledgeSourceType `json:"sourceType"`
	SourceURL  string              `json:"sourceUrl,omitempty"`

	// Для FAQ
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`

	// Для продуктов (цена и прочее)
	ExtraData map[string]any `json:"extraData,omitempty"`

	// Зарезервировано под семантический поиск; путь записи/чтения
	// эмбеддингов пока не используется ретривером.
	Embedding      []float32 `json:"-"`
	EmbeddingModel string    `json:"-"`

	// Чанкование больших документов: родитель и его куски
	// принадлежат одному боту.
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
	ParentID    *int64 `json:"parentId,omitempty"`

	HitCount int64 `json:"hitCount"`
	IsActive bool  `json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
