package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfactory/models"
)

type fakeKnowledgeStore struct {
	items     []*models.KnowledgeItem
	searchErr error
	gotQuery  string
	gotLimit  int
	bumped    []int64
}

func (s *fakeKnowledgeStore) SearchActive(ctx context.Context, botID int64, query string, limit int) ([]*models.KnowledgeItem, error) {
	s.gotQuery = query
	s.gotLimit = limit
	return s.items, s.searchErr
}

func (s *fakeKnowledgeStore) BumpHits(ctx context.Context, ids []int64) error {
	s.bumped = ids
	return nil
}

func TestSearchFormatsFragments(t *testing.T) {
	store := &fakeKnowledgeStore{items: []*models.KnowledgeItem{
		{
			ID: 1, SourceType: models.SourceFAQ,
			Question: "Ish vaqtingiz qanday?",
			Answer:   "9:00 dan 18:00 gacha.",
		},
		{
			ID: 2, SourceType: models.SourceProduct,
			Title: "Olma", Content: "Yangi hosil",
			ExtraData: map[string]any{"price": 12000},
		},
		{
			ID: 3, SourceType: models.SourceText,
			Title: "Yetkazib berish", Content: "Toshkent bo'ylab 1 kun.",
		},
	}}
	r := NewRetriever(store)

	got := r.Search(context.Background(), 5, "ish vaqti")

	parts := strings.Split(got.Text, "\n\n---\n\n")
	require.Len(t, parts, 3)
	assert.Equal(t, "Savol: Ish vaqtingiz qanday?\nJavob: 9:00 dan 18:00 gacha.", parts[0])
	assert.Equal(t, "Mahsulot: Olma\nTavsif: Yangi hosil\nNarx: 12000 so'm", parts[1])
	assert.Equal(t, "Yetkazib berish: Toshkent bo'ylab 1 kun.", parts[2])

	assert.Equal(t, []int64{1, 2, 3}, got.ItemIDs)
	assert.Equal(t, []int64{1, 2, 3}, store.bumped)
	assert.Equal(t, 3, store.gotLimit)
}

func TestSearchProductWithoutPrice(t *testing.T) {
	store := &fakeKnowledgeStore{items: []*models.KnowledgeItem{
		{ID: 1, SourceType: models.SourceProduct, Title: "Nok", Content: "Shirin"},
	}}
	r := NewRetriever(store)

	got := r.Search(context.Background(), 5, "nok")
	assert.Equal(t, "Mahsulot: Nok\nTavsif: Shirin\nNarx: N/A so'm", got.Text)
}

func TestSearchTruncatesLongQuery(t *testing.T) {
	store := &fakeKnowledgeStore{}
	r := NewRetriever(store)

	r.Search(context.Background(), 5, strings.Repeat("a", 120))
	assert.Len(t, store.gotQuery, 50)
}

func TestSearchTruncatesCyrillicQueryOnRuneBoundary(t *testing.T) {
	store := &fakeKnowledgeStore{}
	r := NewRetriever(store)

	r.Search(context.Background(), 5, strings.Repeat("п", 60))
	assert.True(t, utf8.ValidString(store.gotQuery))
	assert.Equal(t, strings.Repeat("п", 50), store.gotQuery)
}

func TestSearchKeepsShortCyrillicQueryIntact(t *testing.T) {
	store := &fakeKnowledgeStore{}
	r := NewRetriever(store)

	// 41 символ, но 81 байт: обрезки быть не должно.
	query := "a" + strings.Repeat("п", 40)
	r.Search(context.Background(), 5, query)
	assert.Equal(t, query, store.gotQuery)
}

func TestSearchTruncatesLongFragment(t *testing.T) {
	store := &fakeKnowledgeStore{items: []*models.KnowledgeItem{
		{ID: 1, SourceType: models.SourceText, Title: "Doc", Content: strings.Repeat("x", 900)},
	}}
	r := NewRetriever(store)

	got := r.Search(context.Background(), 5, "doc")
	assert.Equal(t, "Doc: "+strings.Repeat("x", 500), got.Text)
}

func TestSearchErrorReturnsEmptyContext(t *testing.T) {
	store := &fakeKnowledgeStore{searchErr: errors.New("db down")}
	r := NewRetriever(store)

	got := r.Search(context.Background(), 5, "salom")
	assert.Empty(t, got.Text)
	assert.Empty(t, got.ItemIDs)
}

func TestSearchNoMatches(t *testing.T) {
	store := &fakeKnowledgeStore{}
	r := NewRetriever(store)

	got := r.Search(context.Background(), 5, "salom")
	assert.Empty(t, got.Text)
	assert.Nil(t, store.bumped)
}
