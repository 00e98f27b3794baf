package queries

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"botfactory/models"
)

// Bots — запросы по таблице bots.
type Bots struct {
	db *sql.DB
}

func NewBots(db *sql.DB) *Bots { return &Bots{db: db} }

const botColumns = `
	id, user_id, name, description, platform, token, webhook_url,
	language, system_prompt, temperature, max_tokens, settings,
	status, is_active, error_message,
	total_messages, total_users, last_message_at, created_at, updated_at`

func scanBot(row interface{ Scan(...any) error }) (*models.Bot, error) {
	var (
		b            models.Bot
		description  sql.NullString
		webhookURL   sql.NullString
		systemPrompt sql.NullString
		settingsRaw  []byte
		errMsg       sql.NullString
		lastMsgAt    sql.NullTime
	)
	if err := row.Scan(
		&b.ID, &b.UserID, &b.Name, &description, &b.Platform, &b.Token, &webhookURL,
		&b.Language, &systemPrompt, &b.Temperature, &b.MaxTokens, &settingsRaw,
		&b.Status, &b.IsActive, &errMsg,
		&b.TotalMessages, &b.TotalUsers, &lastMsgAt, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Description = description.String
	b.WebhookURL = webhookURL.String
	b.SystemPrompt = systemPrompt.String
	b.ErrorMessage = errMsg.String
	b.LastMessageAt = nullTimeToPointer(lastMsgAt)
	b.Settings = models.DefaultSettings()
	unmarshalJSON(settingsRaw, &b.Settings)
	return &b, nil
}

// Create вставляет бота. Токен уникален глобально — конфликт
// возвращается вызывающему как ошибка БД.
func (q *Bots) Create(ctx context.Context, b *models.Bot) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	now := time.Now().UTC()
	const stmt = `
		INSERT INTO bots
		       (user_id, name, description, platform, token,
		        language, system_prompt, temperature, max_tokens, settings,
		        status, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true, $12, $12)
		RETURNING id`
	if err := q.db.QueryRowContext(ctx, stmt,
		b.UserID, b.Name, b.Description, b.Platform, b.Token,
		b.Language, b.SystemPrompt, b.Temperature, b.MaxTokens, marshalJSON(b.Settings),
		models.BotPending, now,
	).Scan(&b.ID); err != nil {
		return fmt.Errorf("Bots.Create: %w", err)
	}
	b.Status = models.BotPending
	b.IsActive = true
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// ByID возвращает бота или nil.
func (q *Bots) ByID(ctx context.Context, id int64) (*models.Bot, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	b, err := scanBot(q.db.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Bots.ByID: %w", err)
	}
	return b, nil
}

// ByTokenAny ищет бота по токену без учёта платформы и статуса.
// Токен уникален среди всех ботов.
func (q *Bots) ByTokenAny(ctx context.Context, token string) (*models.Bot, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	b, err := scanBot(q.db.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE token = $1`, token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Bots.ByTokenAny: %w", err)
	}
	return b, nil
}

// ByToken ищет активного бота платформы по токену.
func (q *Bots) ByToken(ctx context.Context, token string, platform models.BotPlatform) (*models.Bot, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	b, err := scanBot(q.db.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots
		 WHERE token = $1 AND platform = $2 AND is_active = true`,
		token, platform))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Bots.ByToken: %w", err)
	}
	return b, nil
}

// ByUser возвращает ботов пользователя, новые первыми.
func (q *Bots) ByUser(ctx context.Context, userID int64) ([]*models.Bot, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("Bots.ByUser: %w", err)
	}
	defer rows.Close()

	var result []*models.Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("Bots.ByUser scan: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// CountByUser — число ботов пользователя (для лимита тарифа).
func (q *Bots) CountByUser(ctx context.Context, userID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	var n int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bots WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("Bots.CountByUser: %w", err)
	}
	return n, nil
}

// Update сохраняет изменяемые поля бота.
func (q *Bots) Update(ctx context.Context, b *models.Bot) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	_, err := q.db.ExecContext(ctx, `
		UPDATE bots
		SET name = $2, description = $3, language = $4, system_prompt = $5,
		    temperature = $6, max_tokens = $7, settings = $8,
		    status = $9, is_active = $10, error_message = $11, webhook_url = $12,
		    updated_at = $13
		WHERE id = $1`,
		b.ID, b.Name, b.Description, b.Language, b.SystemPrompt,
		b.Temperature, b.MaxTokens, marshalJSON(b.Settings),
		b.Status, b.IsActive, b.ErrorMessage, b.WebhookURL,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("Bots.Update: %w", err)
	}
	return nil
}

// Delete удаляет бота; знания и история уходят каскадом.
func (q *Bots) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	_, err := q.db.ExecContext(ctx, `DELETE FROM bots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Bots.Delete: %w", err)
	}
	return nil
}

// BumpStats наращивает счётчик сообщений и отметку последнего.
// Один относительный UPDATE; отдельной блокировки по боту нет.
func (q *Bots) BumpStats(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	_, err := q.db.ExecContext(ctx, `
		UPDATE bots
		SET total_messages = total_messages + 1, last_message_at = $2
		WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("Bots.BumpStats: %w", err)
	}
	return nil
}
