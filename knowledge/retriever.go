// Package knowledge — подбор контекста из базы знаний для генерации.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"botfactory/logging"
	"botfactory/models"
)

// searchLimit — сколько записей уходит в контекст генерации.
const searchLimit = 3

// queryMaxLen — подстрока запроса, по которой ищем. Длинные сообщения
// почти никогда не совпадают целиком.
const queryMaxLen = 50

// fragmentMaxLen — обрезка свободного текста в одном фрагменте.
const fragmentMaxLen = 500

// Store — подмножество запросов базы знаний, нужное ретриверу.
type Store interface {
	SearchActive(ctx context.Context, botID int64, query string, limit int) ([]*models.KnowledgeItem, error)
	BumpHits(ctx context.Context, ids []int64) error
}

// Context — собранный контекст и ID записей, из которых он составлен.
type Context struct {
	Text    string
	ItemIDs []int64
}

// Retriever ищет релевантные записи подстрокой.
// TODO: семантический поиск по эмбеддингам (векторы уже сохраняются).
type Retriever struct {
	store Store
}

func NewRetriever(store Store) *Retriever { return &Retriever{store: store} }

// Search подбирает контекст для сообщения. Ошибки поиска не фатальны:
// пайплайн продолжает без контекста.
func (r *Retriever) Search(ctx context.Context, botID int64, query string) Context {
	q := truncateRunes(query, queryMaxLen)

	items, err := r.store.SearchActive(ctx, botID, q, searchLimit)
	if err != nil {
		logging.Bot.Warn("поиск по базе знаний не удался",
			zap.Int64("botID", botID), zap.Error(err))
		return Context{}
	}
	if len(items) == 0 {
		return Context{}
	}

	parts := make([]string, 0, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		parts = append(parts, formatFragment(item))
		ids = append(ids, item.ID)
	}

	if err := r.store.BumpHits(ctx, ids); err != nil {
		logging.Bot.Warn("не удалось обновить hit_count", zap.Error(err))
	}

	return Context{Text: strings.Join(parts, "\n\n---\n\n"), ItemIDs: ids}
}

// formatFragment — текстовое представление записи по её типу.
func formatFragment(item *models.KnowledgeItem) string {
	switch item.SourceType {
	case models.SourceFAQ:
		return fmt.Sprintf("Savol: %s\nJavob: %s", item.Question, item.Answer)
	case models.SourceProduct:
		price := "N/A"
		if item.ExtraData != nil {
			if v, ok := item.ExtraData["price"]; ok {
				price = fmt.Sprintf("%v", v)
			}
		}
		return fmt.Sprintf("Mahsulot: %s\nTavsif: %s\nNarx: %s so'm", item.Title, item.Content, price)
	default:
		return fmt.Sprintf("%s: %s", item.Title, truncateRunes(item.Content, fragmentMaxLen))
	}
}

// truncateRunes обрезает строку до n рун. Обрезка по байтам ломала бы
// UTF-8 посреди кириллического символа.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
