package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"botfactory/models"
)

// Chats — запросы по таблице chat_history.
type Chats struct {
	db *sql.DB
}

func NewChats(db *sql.DB) *Chats { return &Chats{db: db} }

const chatColumns = `
	id, bot_id, platform_user_id, platform_username, session_id,
	role, message_type, content, media_url,
	ai_model, tokens_used, response_time_ms, context_ids,
	feedback_score, feedback_text, created_at`

func scanChatMessage(row interface{ Scan(...any) error }) (*models.ChatMessage, error) {
	var (
		m         models.ChatMessage
		username  sql.NullString
		mediaURL  sql.NullString
		aiModel   sql.NullString
		ctxIDs    []byte
		fbScore   sql.NullInt32
		fbText    sql.NullString
	)
	if err := row.Scan(
		&m.ID, &m.BotID, &m.PlatformUserID, &username, &m.SessionID,
		&m.Role, &m.MessageType, &m.Content, &mediaURL,
		&aiModel, &m.TokensUsed, &m.ResponseTimeMs, &ctxIDs,
		&fbScore, &fbText, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.PlatformUsername = username.String
	m.MediaURL = mediaURL.String
	m.AIModel = aiModel.String
	unmarshalJSON(ctxIDs, &m.ContextIDs)
	m.FeedbackScore = nullInt32ToPointer(fbScore)
	m.FeedbackText = fbText.String
	return &m, nil
}

// SaveMessage вставляет реплику; заполняет ID и CreatedAt.
func (q *Chats) SaveMessage(ctx context.Context, m *models.ChatMessage) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	ids := m.ContextIDs
	if ids == nil {
		ids = []int64{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("Chats.SaveMessage: %w", err)
	}

	now := time.Now().UTC()
	const stmt = `
		INSERT INTO chat_history
		       (bot_id, platform_user_id, platform_username, session_id,
		        role, message_type, content, media_url,
		        ai_model, tokens_used, response_time_ms, context_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if err := q.db.QueryRowContext(ctx, stmt,
		m.BotID, m.PlatformUserID, m.PlatformUsername, m.SessionID,
		m.Role, m.MessageType, m.Content, m.MediaURL,
		m.AIModel, m.TokensUsed, m.ResponseTimeMs, idsJSON, now,
	).Scan(&m.ID); err != nil {
		return fmt.Errorf("Chats.SaveMessage: %w", err)
	}
	m.CreatedAt = now
	return nil
}

// LastSession возвращает session_id и время последней реплики пользователя
// у бота. Пустой session_id — истории ещё нет.
func (q *Chats) LastSession(ctx context.Context, botID int64, platformUserID string) (string, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	var (
		sessionID string
		lastAt    time.Time
	)
	const stmt = `
		SELECT session_id, created_at FROM chat_history
		WHERE bot_id = $1 AND platform_user_id = $2
		ORDER BY created_at DESC
		LIMIT 1`
	err := q.db.QueryRowContext(ctx, stmt, botID, platformUserID).Scan(&sessionID, &lastAt)
	if err == sql.ErrNoRows {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("Chats.LastSession: %w", err)
	}
	return sessionID, lastAt, nil
}

// RecentHistory возвращает последние реплики диалога с пользователем,
// новые первыми. Сервис разворачивает их в хронологию.
func (q *Chats) RecentHistory(ctx context.Context, botID int64, platformUserID string, limit int) ([]models.HistoryTurn, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	const stmt = `
		SELECT role, content FROM chat_history
		WHERE bot_id = $1 AND platform_user_id = $2
		ORDER BY created_at DESC
		LIMIT $3`
	rows, err := q.db.QueryContext(ctx, stmt, botID, platformUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("Chats.RecentHistory: %w", err)
	}
	defer rows.Close()

	var turns []models.HistoryTurn
	for rows.Next() {
		var t models.HistoryTurn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("Chats.RecentHistory: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Chats.RecentHistory: %w", err)
	}
	return turns, nil
}

// SessionSummary — сводка одной сессии для владельца бота.
type SessionSummary struct {
	SessionID        string    `json:"sessionId"`
	PlatformUserID   string    `json:"platformUserId"`
	PlatformUsername string    `json:"platformUsername,omitempty"`
	MessageCount     int       `json:"messageCount"`
	StartedAt        time.Time `json:"startedAt"`
	LastMessageAt    time.Time `json:"lastMessageAt"`
}

// SessionsByBot возвращает сессии бота, свежие первыми.
func (q *Chats) SessionsByBot(ctx context.Context, botID int64, limit, offset int) ([]SessionSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	const stmt = `
		SELECT session_id, platform_user_id,
		       COALESCE(MAX(platform_username), '') AS platform_username,
		       COUNT(*) AS message_count,
		       MIN(created_at) AS started_at,
		       MAX(created_at) AS last_message_at
		FROM chat_history
		WHERE bot_id = $1
		GROUP BY session_id, platform_user_id
		ORDER BY last_message_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.db.QueryContext(ctx, stmt, botID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("Chats.SessionsByBot: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var username sql.NullString
		if err := rows.Scan(&s.SessionID, &s.PlatformUserID, &username,
			&s.MessageCount, &s.StartedAt, &s.LastMessageAt); err != nil {
			return nil, fmt.Errorf("Chats.SessionsByBot: %w", err)
		}
		s.PlatformUsername = username.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Chats.SessionsByBot: %w", err)
	}
	return out, nil
}

// MessagesBySession возвращает полные реплики сессии, старые первыми.
func (q *Chats) MessagesBySession(ctx context.Context, botID int64, sessionID string, limit, offset int) ([]*models.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	stmt := `
		SELECT ` + chatColumns + `
		FROM chat_history
		WHERE bot_id = $1 AND session_id = $2
		ORDER BY created_at ASC
		LIMIT $3 OFFSET $4`
	rows, err := q.db.QueryContext(ctx, stmt, botID, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("Chats.MessagesBySession: %w", err)
	}
	defer rows.Close()

	var out []*models.ChatMessage
	for rows.Next() {
		m, err := scanChatMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("Chats.MessagesBySession: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Chats.MessagesBySession: %w", err)
	}
	return out, nil
}

// SaveFeedback проставляет оценку ответа ассистента.
func (q *Chats) SaveFeedback(ctx context.Context, messageID int64, score int, text string) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	res, err := q.db.ExecContext(ctx,
		`UPDATE chat_history SET feedback_score = $1, feedback_text = $2 WHERE id = $3 AND role = 'assistant'`,
		score, text, messageID)
	if err != nil {
		return fmt.Errorf("Chats.SaveFeedback: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
