// Package payments — платёжные провайдеры: PayMe (JSON-RPC) и Click
// (двухфазный form-webhook). Машины состояний воспроизводят wire-протоколы
// провайдеров байт-в-байт.
package payments

import (
	"context"
	"time"

	"botfactory/models"
)

// Result — итог операции провайдера.
type Result struct {
	Success       bool
	TransactionID string
	PaymentURL    string
	ErrorMessage  string
}

// Store — подмножество запросов по платежам, нужное провайдерам.
type Store interface {
	ByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	ByProviderTxID(ctx context.Context, provider models.PaymentProviderKind, txID string) (*models.Payment, error)
	Update(ctx context.Context, p *models.Payment) error
}

// Activator включает подписку после успешной оплаты.
type Activator interface {
	Activate(ctx context.Context, p *models.Payment) error
}

// Provider — общий контракт создания и управления платежом. Обработка
// webhook'ов у каждого провайдера своя, с нативными типами протокола.
type Provider interface {
	Name() models.PaymentProviderKind
	// CreatePayment строит checkout-URL. amount всегда в тийинах.
	CreatePayment(ctx context.Context, amount int64, orderID, description, returnURL string) Result
	CheckPayment(ctx context.Context, providerTxID string) Result
	CancelPayment(ctx context.Context, providerTxID, reason string) Result
}

// Registry — провайдеры по имени.
type Registry map[models.PaymentProviderKind]Provider

// For возвращает провайдера; nil — провайдер не подключён.
func (r Registry) For(kind models.PaymentProviderKind) Provider {
	return r[kind]
}

// nowMillis — текущее время в миллисекундах, как его ждёт PayMe.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
