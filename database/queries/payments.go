package queries

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"botfactory/models"
)

// Payments — запросы по таблице payments.
type Payments struct {
	db *sql.DB
}

func NewPayments(db *sql.DB) *Payments { return &Payments{db: db} }

const paymentColumns = `
	id, user_id, provider, amount, currency, status,
	transaction_id, provider_tx_id,
	subscription_type, subscription_months,
	state, create_time, perform_time, cancel_time, cancel_reason,
	payment_url, return_url, paid_at, expires_at,
	error_code, error_message, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var (
		p            models.Payment
		providerTxID sql.NullString
		cancelReason sql.NullInt32
		paymentURL   sql.NullString
		returnURL    sql.NullString
		paidAt       sql.NullTime
		expiresAt    sql.NullTime
		errCode      sql.NullString
		errMessage   sql.NullString
	)
	if err := row.Scan(
		&p.ID, &p.UserID, &p.Provider, &p.Amount, &p.Currency, &p.Status,
		&p.TransactionID, &providerTxID,
		&p.SubscriptionType, &p.SubscriptionMonths,
		&p.State, &p.CreateTime, &p.PerformTime, &p.CancelTime, &cancelReason,
		&paymentURL, &returnURL, &paidAt, &expiresAt,
		&errCode, &errMessage, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.ProviderTxID = providerTxID.String
	p.CancelReason = nullInt32ToPointer(cancelReason)
	p.PaymentURL = paymentURL.String
	p.ReturnURL = returnURL.String
	p.PaidAt = nullTimeToPointer(paidAt)
	p.ExpiresAt = nullTimeToPointer(expiresAt)
	p.ErrorCode = errCode.String
	p.ErrorMessage = errMessage.String
	return &p, nil
}

// Create вставляет платёж; заполняет ID и временные метки.
func (q *Payments) Create(ctx context.Context, p *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	now := time.Now().UTC()
	const stmt = `
		INSERT INTO payments
		       (user_id, provider, amount, currency, status,
		        transaction_id, subscription_type, subscription_months,
		        state, payment_url, return_url, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING id`
	if err := q.db.QueryRowContext(ctx, stmt,
		p.UserID, p.Provider, p.Amount, p.Currency, p.Status,
		p.TransactionID, p.SubscriptionType, p.SubscriptionMonths,
		p.State, p.PaymentURL, p.ReturnURL, pointerToNullTime(p.ExpiresAt), now,
	).Scan(&p.ID); err != nil {
		return fmt.Errorf("Payments.Create: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// ByID возвращает платёж по внутреннему ID; nil — не найден.
func (q *Payments) ByID(ctx context.Context, id int64) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	stmt := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(q.db.QueryRowContext(ctx, stmt, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Payments.ByID: %w", err)
	}
	return p, nil
}

// ByOrderID возвращает платёж по нашему ID заказа; nil — не найден.
func (q *Payments) ByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	stmt := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1`
	p, err := scanPayment(q.db.QueryRowContext(ctx, stmt, orderID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Payments.ByOrderID: %w", err)
	}
	return p, nil
}

// ByProviderTxID возвращает платёж по ID транзакции провайдера; nil — не найден.
func (q *Payments) ByProviderTxID(ctx context.Context, provider models.PaymentProviderKind, txID string) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	stmt := `SELECT ` + paymentColumns + ` FROM payments WHERE provider = $1 AND provider_tx_id = $2`
	p, err := scanPayment(q.db.QueryRowContext(ctx, stmt, provider, txID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Payments.ByProviderTxID: %w", err)
	}
	return p, nil
}

// ListByUser возвращает платежи пользователя, свежие первыми.
func (q *Payments) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	stmt := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.db.QueryContext(ctx, stmt, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("Payments.ListByUser: %w", err)
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("Payments.ListByUser: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Payments.ListByUser: %w", err)
	}
	return out, nil
}

// Update перезаписывает изменяемые поля платежа (сумма неизменна).
func (q *Payments) Update(ctx context.Context, p *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	now := time.Now().UTC()
	const stmt = `
		UPDATE payments SET
		       status = $1, provider_tx_id = $2,
		       state = $3, create_time = $4, perform_time = $5,
		       cancel_time = $6, cancel_reason = $7,
		       paid_at = $8, error_code = $9, error_message = $10,
		       updated_at = $11
		WHERE id = $12`
	res, err := q.db.ExecContext(ctx, stmt,
		p.Status, p.ProviderTxID,
		p.State, p.CreateTime, p.PerformTime,
		p.CancelTime, pointerToNullInt32(p.CancelReason),
		pointerToNullTime(p.PaidAt), p.ErrorCode, p.ErrorMessage,
		now, p.ID)
	if err != nil {
		return fmt.Errorf("Payments.Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	p.UpdatedAt = now
	return nil
}

// ExpirePending помечает просроченные pending-платежи как failed.
// Возвращает число затронутых строк.
func (q *Payments) ExpirePending(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbQueryTimeout)
	defer cancel()

	const stmt = `
		UPDATE payments
		SET status = 'failed', error_message = 'To''lov muddati tugadi', updated_at = NOW()
		WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at < NOW()`
	res, err := q.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("Payments.ExpirePending: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
