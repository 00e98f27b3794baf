package payments

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"botfactory/logging"
	"botfactory/models"
)

// UserStore — операции над подпиской владельца.
type UserStore interface {
	ByID(ctx context.Context, id int64) (*models.User, error)
	UpdateSubscription(ctx context.Context, id int64, tier models.SubscriptionType, expiresAt time.Time) error
}

// SubscriptionActivator включает оплаченный тариф: ставит tier и
// продлевает срок на оплаченные месяцы от текущего конца подписки,
// если она ещё не истекла, иначе от момента оплаты.
type SubscriptionActivator struct {
	users UserStore
}

func NewSubscriptionActivator(users UserStore) *SubscriptionActivator {
	return &SubscriptionActivator{users: users}
}

func (a *SubscriptionActivator) Activate(ctx context.Context, p *models.Payment) error {
	user, err := a.users.ByID(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("Activate: %w", err)
	}
	if user == nil {
		return fmt.Errorf("Activate: пользователь %d не найден", p.UserID)
	}

	months := p.SubscriptionMonths
	if months <= 0 {
		months = 1
	}

	base := time.Now().UTC()
	if user.SubscriptionType == p.SubscriptionType &&
		user.SubscriptionExpiresAt != nil && user.SubscriptionExpiresAt.After(base) {
		base = *user.SubscriptionExpiresAt
	}
	expiresAt := base.AddDate(0, months, 0)

	if err := a.users.UpdateSubscription(ctx, p.UserID, p.SubscriptionType, expiresAt); err != nil {
		return fmt.Errorf("Activate: %w", err)
	}

	logging.Payment.Info("подписка активирована",
		zap.Int64("userID", p.UserID),
		zap.String("tier", string(p.SubscriptionType)),
		zap.Time("expiresAt", expiresAt))
	return nil
}
