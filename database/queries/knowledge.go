package queries

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"botfactory/models"
)

// Knowledge — запросы по таблице knowledge_base.
type Knowledge struct {
	db *sql.DB
}

func NewKnowledge(db *sql.DB) *Knowledge { return &Knowledge{db: db} }

const knowledgeColumns = `
	id, bot_id, title, content, source_type, source_url,
	question, answer, extra_data,
	chunk_index, total_chunks, parent_id,
	hit_count, is_active, created_at, updated_at`

func scanKnowledge(row interface{ Scan(...any) error }) (*models.KnowledgeItem, error) {
	var (
		k         models.KnowledgeItem
		sourceURL sql.NullString
		question  sql.NullString
		answer    sql.NullString
		extraRaw  []byte
		parentID  sql.NullInt64
	)
	if err := row.Scan(
		&k.ID, &k.BotID, &k.Title, &k.Content, &k.SourceType, &sourceURL,
		&question, &answer, &extraRaw,
		&k.ChunkIndex, &k.TotalChunks, &parentID,
		&k.HitCount, &k.IsActive, &k.CreatedAt, &k.UpdatedAt,
	); err != nil {
		return nil, err
	}
	k.SourceURL = sourceURL.String
	k.Question = question.String
	k.Answer = answer.String
	k.ParentID = nullInt64ToPointer(parentID)
	unmarshalJSON(extraRaw, &k.ExtraData)
	return &k, nil
}

// Create вставляет запись базы знаний.
func (q *Knowledge) Create(ctx context.Context, k *models.KnowledgeItem) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	now := time.Now().UTC()
	if k.TotalChunks == 0 {
		k.TotalChunks = 1
	}
	const stmt = `
		INSERT INTO knowledge_base
		       (bot_id, title, content, source_type, source_url,
		        question, answer, extra_data,
		        chunk_index, total_chunks, parent_id,
		        is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true, $12, $12)
		RETURNING id`
	var parent sql.NullInt64
	if k.ParentID != nil {
		parent = sql.NullInt64{Int64: *k.ParentID, Valid: true}
	}
	if err := q.db.QueryRowContext(ctx, stmt,
		k.BotID, k.Title, k.Content, k.SourceType, k.SourceURL,
		k.Question, k.Answer, marshalJSON(k.ExtraData),
		k.ChunkIndex, k.TotalChunks, parent, now,
	).Scan(&k.ID); err != nil {
		return fmt.Errorf("Knowledge.Create: %w", err)
	}
	k.IsActive = true
	k.CreatedAt = now
	k.UpdatedAt = now
	return nil
}

// ByID возвращает запись или nil.
func (q *Knowledge) ByID(ctx context.Context, id int64) (*models.KnowledgeItem, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	k, err := scanKnowledge(q.db.QueryRowContext(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge_base WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Knowledge.ByID: %w", err)
	}
	return k, nil
}

// ListByBot — постраничный список записей верхнего уровня бота.
func (q *Knowledge) ListByBot(ctx context.Context, botID int64, page, size int) ([]*models.KnowledgeItem, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	var total int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM knowledge_base WHERE bot_id = $1 AND parent_id IS NULL`,
		botID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("Knowledge.ListByBot count: %w", err)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_base
		 WHERE bot_id = $1 AND parent_id IS NULL
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		botID, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("Knowledge.ListByBot: %w", err)
	}
	defer rows.Close()

	var items []*models.KnowledgeItem
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("Knowledge.ListByBot scan: %w", err)
		}
		items = append(items, k)
	}
	return items, total, rows.Err()
}

// SearchActive — подстрочный поиск по содержимому активных записей бота.
// Плейсхолдер настоящего семантического поиска: ILIKE по контенту.
func (q *Knowledge) SearchActive(ctx context.Context, botID int64, query string, limit int) ([]*models.KnowledgeItem, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_base
		 WHERE bot_id = $1 AND is_active = true AND content ILIKE $2
		 LIMIT $3`,
		botID, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("Knowledge.SearchActive: %w", err)
	}
	defer rows.Close()

	var items []*models.KnowledgeItem
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, fmt.Errorf("Knowledge.SearchActive scan: %w", err)
		}
		items = append(items, k)
	}
	return items, rows.Err()
}

// Update сохраняет изменяемые поля записи.
func (q *Knowledge) Update(ctx context.Context, k *models.KnowledgeItem) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	_, err := q.db.ExecContext(ctx, `
		UPDATE knowledge_base
		SET title = $2, content = $3, source_url = $4,
		    question = $5, answer = $6, extra_data = $7,
		    is_active = $8, updated_at = $9
		WHERE id = $1`,
		k.ID, k.Title, k.Content, k.SourceURL,
		k.Question, k.Answer, marshalJSON(k.ExtraData),
		k.IsActive, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("Knowledge.Update: %w", err)
	}
	return nil
}

// Delete удаляет запись; чанки уходят каскадом по parent_id.
func (q *Knowledge) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	_, err := q.db.ExecContext(ctx, `DELETE FROM knowledge_base WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Knowledge.Delete: %w", err)
	}
	return nil
}

// BumpHits наращивает hit_count использованным записям.
func (q *Knowledge) BumpHits(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	_, err := q.db.ExecContext(ctx,
		`UPDATE knowledge_base SET hit_count = hit_count + 1 WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("Knowledge.BumpHits: %w", err)
	}
	return nil
}
