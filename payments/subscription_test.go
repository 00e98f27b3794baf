package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfactory/models"
)

type fakeUserStore struct {
	user        *models.User
	gotTier     models.SubscriptionType
	gotExpires  time.Time
	updateCalls int
}

func (s *fakeUserStore) ByID(ctx context.Context, id int64) (*models.User, error) {
	return s.user, nil
}

func (s *fakeUserStore) UpdateSubscription(ctx context.Context, id int64, tier models.SubscriptionType, expiresAt time.Time) error {
	s.gotTier = tier
	s.gotExpires = expiresAt
	s.updateCalls++
	return nil
}

func TestActivateFromNow(t *testing.T) {
	users := &fakeUserStore{user: &models.User{ID: 7, SubscriptionType: models.SubscriptionFree}}
	a := NewSubscriptionActivator(users)

	payment := pendingPayment("order-1", 16500000)
	payment.SubscriptionMonths = 1
	require.NoError(t, a.Activate(context.Background(), payment))

	assert.Equal(t, models.SubscriptionStarter, users.gotTier)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 1, 0), users.gotExpires, time.Minute)
}

func TestActivateExtendsSameTier(t *testing.T) {
	current := time.Now().UTC().AddDate(0, 0, 10)
	users := &fakeUserStore{user: &models.User{
		ID:                    7,
		SubscriptionType:      models.SubscriptionStarter,
		SubscriptionExpiresAt: &current,
	}}
	a := NewSubscriptionActivator(users)

	payment := pendingPayment("order-1", 16500000)
	payment.SubscriptionMonths = 2
	require.NoError(t, a.Activate(context.Background(), payment))

	// Продление того же тарифа идёт от текущего конца подписки.
	assert.Equal(t, current.AddDate(0, 2, 0), users.gotExpires)
}

func TestActivateTierChangeStartsFromNow(t *testing.T) {
	current := time.Now().UTC().AddDate(0, 0, 10)
	users := &fakeUserStore{user: &models.User{
		ID:                    7,
		SubscriptionType:      models.SubscriptionBasic,
		SubscriptionExpiresAt: &current,
	}}
	a := NewSubscriptionActivator(users)

	payment := pendingPayment("order-1", 16500000) // starter
	require.NoError(t, a.Activate(context.Background(), payment))

	assert.Equal(t, models.SubscriptionStarter, users.gotTier)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 1, 0), users.gotExpires, time.Minute)
}

func TestActivateZeroMonthsDefaultsToOne(t *testing.T) {
	users := &fakeUserStore{user: &models.User{ID: 7}}
	a := NewSubscriptionActivator(users)

	payment := pendingPayment("order-1", 16500000)
	payment.SubscriptionMonths = 0
	require.NoError(t, a.Activate(context.Background(), payment))

	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 1, 0), users.gotExpires, time.Minute)
}

func TestActivateUnknownUser(t *testing.T) {
	a := NewSubscriptionActivator(&fakeUserStore{})
	err := a.Activate(context.Background(), pendingPayment("order-1", 16500000))
	assert.Error(t, err)
}
