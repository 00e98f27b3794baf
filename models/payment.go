package models

import "time"

// PaymentProviderKind — платёжный провайдер.
type PaymentProviderKind string

const (
	ProviderPayme PaymentProviderKind = "payme"
	ProviderClick PaymentProviderKind = "click"
	ProviderUzum  PaymentProviderKind = "uzum"
)

// PaymentStatus — статус платежа. Переходы монотонны и подчиняются
// машине состояний провайдера.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
	PaymentRefunded   PaymentStatus = "refunded"
)

// Состояния транзакции PayMe (поле state в Merchant API).
const (
	TxStateNone      = 0
	TxStateCreated   = 1
	TxStatePerformed = 2
	TxStateCancelled = -1
)

// Payment — платёж пользователя. Amount всегда в тийинах (целое),
// неизменен после создания.
type Payment struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"userId"`

	Provider PaymentProviderKind `json:"provider"`
	Amount   int64               `json:"amount"` // тийин
	Currency string              `json:"currency"`
	Status   PaymentStatus       `json:"status"`

	// TransactionID — наш внутренний ID заказа (order_id для провайдера).
	// ProviderTxID — ID транзакции на стороне провайдера.
	TransactionID string `json:"transactionId"`
	ProviderTxID  string `json:"providerTxId,omitempty"`

	SubscriptionType   SubscriptionType `json:"subscriptionType"`
	SubscriptionMonths int              `json:"subscriptionMonths"`

	// Жизненный цикл транзакции провайдера (PayMe: state/время в мс).
	State        int   `json:"state"`
	CreateTime   int64 `json:"createTime,omitempty"`
	PerformTime  int64 `json:"performTime,omitempty"`
	CancelTime   int64 `json:"cancelTime,omitempty"`
	CancelReason *int  `json:"cancelReason,omitempty"`

	PaymentURL string `json:"paymentUrl,omitempty"`
	ReturnURL  string `json:"returnUrl,omitempty"`

	PaidAt    *time.Time `json:"paidAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AmountUZS возвращает сумму в сумах. Использовать только на границе
// с провайдерами, принимающими целые сумы (Click).
func (p *Payment) AmountUZS() int64 {
	return p.Amount / 100
}

// IsSuccessful — платёж завершён.
func (p *Payment) IsSuccessful() bool {
	return p.Status == PaymentCompleted
}
