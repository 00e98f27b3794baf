package queries

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"botfactory/models"
)

// Users — запросы по таблице users.
type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users { return &Users{db: db} }

// HashPassword хеширует пароль bcrypt'ом (соль внутри).
func HashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("HashPassword: %w", err)
	}
	return string(h), nil
}

// VerifyPassword сравнивает пароль с хешем из базы.
func VerifyPassword(pw, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
}

const userColumns = `
	id, email, username, hashed_password, full_name, phone,
	subscription_type, subscription_expires_at,
	messages_this_month, messages_reset_at,
	is_active, is_admin, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u          models.User
		fullName   sql.NullString
		phone      sql.NullString
		subExpires sql.NullTime
		msgReset   sql.NullTime
		lastLogin  sql.NullTime
	)
	if err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.HashedPassword, &fullName, &phone,
		&u.SubscriptionType, &subExpires,
		&u.MessagesThisMonth, &msgReset,
		&u.IsActive, &u.IsAdmin, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.FullName = fullName.String
	u.Phone = phone.String
	u.SubscriptionExpiresAt = nullTimeToPointer(subExpires)
	u.MessagesResetAt = nullTimeToPointer(msgReset)
	u.LastLoginAt = nullTimeToPointer(lastLogin)
	return &u, nil
}

// Create вставляет нового пользователя; возвращает заполненную запись.
func (q *Users) Create(ctx context.Context, u *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	now := time.Now().UTC()
	const stmt = `
		INSERT INTO users
		       (email, username, hashed_password, full_name, phone,
		        subscription_type, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, $7, $7)
		RETURNING id`
	if err := q.db.QueryRowContext(ctx, stmt,
		u.Email, u.Username, u.HashedPassword, u.FullName, u.Phone,
		models.SubscriptionFree, now,
	).Scan(&u.ID); err != nil {
		return fmt.Errorf("Users.Create: %w", err)
	}
	u.SubscriptionType = models.SubscriptionFree
	u.IsActive = true
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// ByEmail возвращает пользователя или nil, если его нет.
func (q *Users) ByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	u, err := scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Users.ByEmail: %w", err)
	}
	return u, nil
}

// ByID возвращает пользователя или nil.
func (q *Users) ByID(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	u, err := scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Users.ByID: %w", err)
	}
	return u, nil
}

// ExistsByEmailOrUsername — проверка уникальности при регистрации.
func (q *Users) ExistsByEmailOrUsername(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	const stmt = `
		SELECT
			EXISTS(SELECT 1 FROM users WHERE email = $1),
			EXISTS(SELECT 1 FROM users WHERE username = $2)`
	if err = q.db.QueryRowContext(ctx, stmt, email, username).Scan(&emailTaken, &usernameTaken); err != nil {
		err = fmt.Errorf("Users.ExistsByEmailOrUsername: %w", err)
	}
	return
}

// TouchLogin ставит отметку последнего входа.
func (q *Users) TouchLogin(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $2, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("Users.TouchLogin: %w", err)
	}
	return nil
}

// UpdatePassword меняет хеш пароля.
func (q *Users) UpdatePassword(ctx context.Context, id int64, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET hashed_password = $2, updated_at = $3 WHERE id = $1`,
		id, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("Users.UpdatePassword: %w", err)
	}
	return nil
}

// UpdateSubscription активирует тариф до указанной даты.
func (q *Users) UpdateSubscription(ctx context.Context, id int64, tier models.SubscriptionType, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	_, err := q.db.ExecContext(ctx, `
		UPDATE users
		SET subscription_type = $2, subscription_expires_at = $3, updated_at = $4
		WHERE id = $1`,
		id, tier, expiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("Users.UpdateSubscription: %w", err)
	}
	return nil
}

// IncrementMessages прибавляет месячный счётчик сообщений владельца.
// Относительный UPDATE — без чтения-записи в две команды.
func (q *Users) IncrementMessages(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	_, err := q.db.ExecContext(ctx,
		`UPDATE users SET messages_this_month = messages_this_month + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Users.IncrementMessages: %w", err)
	}
	return nil
}

// DowngradeExpired переводит истёкшие платные тарифы на free.
// Возвращает число затронутых пользователей.
func (q *Users) DowngradeExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	res, err := q.db.ExecContext(ctx, `
		UPDATE users
		SET subscription_type = 'free', updated_at = $1
		WHERE subscription_type <> 'free'
		  AND subscription_expires_at IS NOT NULL
		  AND subscription_expires_at < $1`,
		time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("Users.DowngradeExpired: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ResetMonthlyCounters обнуляет счётчики тем, у кого отметка сброса
// в прошлом месяце (или отсутствует).
func (q *Users) ResetMonthlyCounters(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	res, err := q.db.ExecContext(ctx, `
		UPDATE users
		SET messages_this_month = 0, messages_reset_at = $1
		WHERE messages_reset_at IS NULL OR messages_reset_at < $2`,
		now, monthStart)
	if err != nil {
		return 0, fmt.Errorf("Users.ResetMonthlyCounters: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
