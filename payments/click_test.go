package payments

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfactory/models"
)

const clickSecret = "click-secret"

func newClickForTest(store Store, activator Activator) *Click {
	return NewClick("merchant-1", "service-1", clickSecret, store, activator)
}

// signClick строит подпись в протокольном порядке полей.
func signClick(req *ClickRequest) {
	raw := req.ClickTransID +
		req.ServiceID +
		clickSecret +
		req.MerchantTransID +
		req.Amount +
		strconv.Itoa(req.Action) +
		req.SignTime
	sum := md5.Sum([]byte(raw))
	req.SignString = hex.EncodeToString(sum[:])
}

func clickPrepareReq(orderID, amount string) *ClickRequest {
	req := &ClickRequest{
		ClickTransID:    "555001",
		ServiceID:       "service-1",
		MerchantTransID: orderID,
		Amount:          amount,
		Action:          ClickActionPrepare,
		SignTime:        "2026-08-28 12:00:00",
	}
	signClick(req)
	return req
}

func clickCompleteReq(orderID, amount string) *ClickRequest {
	req := &ClickRequest{
		ClickTransID:    "555001",
		ServiceID:       "service-1",
		MerchantTransID: orderID,
		Amount:          amount,
		Action:          ClickActionComplete,
		SignTime:        "2026-08-28 12:05:00",
	}
	signClick(req)
	return req
}

func clickPayment(orderID string, amount int64) *models.Payment {
	p := pendingPayment(orderID, amount)
	p.Provider = models.ProviderClick
	return p
}

func TestClickVerifyWebhookFieldOrder(t *testing.T) {
	c := newClickForTest(newFakePaymentStore(), &fakeActivator{})

	req := clickPrepareReq("order-1", "165000.00")
	assert.True(t, c.VerifyWebhook(req))

	// Перестановка полей в конкатенации даёт другой дайджест.
	swapped := *req
	raw := swapped.ServiceID + // service_id и click_trans_id местами
		swapped.ClickTransID +
		clickSecret +
		swapped.MerchantTransID +
		swapped.Amount +
		strconv.Itoa(swapped.Action) +
		swapped.SignTime
	sum := md5.Sum([]byte(raw))
	swapped.SignString = hex.EncodeToString(sum[:])
	assert.False(t, c.VerifyWebhook(&swapped))
}

func TestClickPrepare(t *testing.T) {
	payment := clickPayment("order-1", 16500000)
	store := newFakePaymentStore(payment)
	c := newClickForTest(store, &fakeActivator{})

	resp := c.HandleWebhook(context.Background(), clickPrepareReq("order-1", "165000.00"))

	assert.Equal(t, 0, resp.Error)
	assert.Equal(t, "Success", resp.ErrorNote)
	assert.Equal(t, "555001", resp.ClickTransID)
	assert.Equal(t, "order-1", resp.MerchantTransID)
	assert.Equal(t, "order-1", resp.MerchantPrepareID)
	assert.Equal(t, models.PaymentProcessing, payment.Status)
	assert.Equal(t, "555001", payment.ProviderTxID)
}

func TestClickPrepareBadSign(t *testing.T) {
	payment := clickPayment("order-1", 16500000)
	store := newFakePaymentStore(payment)
	c := newClickForTest(store, &fakeActivator{})

	req := clickPrepareReq("order-1", "165000.00")
	req.SignString = "0000000000000000000000000000dead"
	resp := c.HandleWebhook(context.Background(), req)

	assert.Equal(t, -1, resp.Error)
	assert.Equal(t, "Sign check failed", resp.ErrorNote)
	// Битая подпись не трогает платёж.
	assert.Equal(t, 0, store.updates)
	assert.Equal(t, models.PaymentPending, payment.Status)
}

func TestClickPrepareOrderNotFound(t *testing.T) {
	c := newClickForTest(newFakePaymentStore(), &fakeActivator{})

	resp := c.HandleWebhook(context.Background(), clickPrepareReq("ghost", "165000.00"))

	assert.Equal(t, -5, resp.Error)
}

func TestClickPrepareIncorrectAmount(t *testing.T) {
	payment := clickPayment("order-1", 16500000)
	c := newClickForTest(newFakePaymentStore(payment), &fakeActivator{})

	resp := c.HandleWebhook(context.Background(), clickPrepareReq("order-1", "99000.00"))

	assert.Equal(t, -2, resp.Error)
}

func TestClickComplete(t *testing.T) {
	payment := clickPayment("order-1", 16500000)
	store := newFakePaymentStore(payment)
	activator := &fakeActivator{}
	c := newClickForTest(store, activator)

	c.HandleWebhook(context.Background(), clickPrepareReq("order-1", "165000.00"))
	resp := c.HandleWebhook(context.Background(), clickCompleteReq("order-1", "165000.00"))

	assert.Equal(t, 0, resp.Error)
	assert.Equal(t, "order-1", resp.MerchantConfirmID)
	assert.Equal(t, models.PaymentCompleted, payment.Status)
	assert.NotNil(t, payment.PaidAt)
	require.Len(t, activator.activated, 1)
}

func TestClickCompleteIdempotent(t *testing.T) {
	payment := clickPayment("order-1", 16500000)
	activator := &fakeActivator{}
	c := newClickForTest(newFakePaymentStore(payment), activator)

	c.HandleWebhook(context.Background(), clickCompleteReq("order-1", "165000.00"))
	resp := c.HandleWebhook(context.Background(), clickCompleteReq("order-1", "165000.00"))

	assert.Equal(t, 0, resp.Error)
	// Повторный complete не активирует подписку второй раз.
	assert.Len(t, activator.activated, 1)
}

func TestClickCompleteProviderError(t *testing.T) {
	payment := clickPayment("order-1", 16500000)
	activator := &fakeActivator{}
	c := newClickForTest(newFakePaymentStore(payment), activator)

	req := clickCompleteReq("order-1", "165000.00")
	req.Error = -4017
	req.ErrorNote = "Insufficient funds"
	signClick(req)
	resp := c.HandleWebhook(context.Background(), req)

	assert.Equal(t, -9, resp.Error)
	assert.Equal(t, "Transaction failed", resp.ErrorNote)
	assert.Equal(t, models.PaymentFailed, payment.Status)
	assert.Equal(t, "-4017", payment.ErrorCode)
	assert.Equal(t, "Insufficient funds", payment.ErrorMessage)
	assert.Empty(t, activator.activated)
}

func TestClickInvalidAction(t *testing.T) {
	c := newClickForTest(newFakePaymentStore(), &fakeActivator{})

	resp := c.HandleWebhook(context.Background(), &ClickRequest{Action: 7})

	assert.Equal(t, -3, resp.Error)
}

func TestClickCreatePaymentConvertsToSum(t *testing.T) {
	c := newClickForTest(newFakePaymentStore(), &fakeActivator{})

	res := c.CreatePayment(context.Background(), 16500000, "order-9", "Starter", "https://app.example/return")

	require.True(t, res.Success)
	assert.Contains(t, res.PaymentURL, "amount=165000")
	assert.Contains(t, res.PaymentURL, "transaction_param=order-9")
	assert.Contains(t, res.PaymentURL, "service_id=service-1")
}

func TestClickCancelPaymentUnsupported(t *testing.T) {
	c := newClickForTest(newFakePaymentStore(), &fakeActivator{})

	res := c.CancelPayment(context.Background(), "555001", "user request")

	assert.False(t, res.Success)
	assert.Equal(t, "Click to'lovini bekor qilish imkonsiz", res.ErrorMessage)
}

func TestClickBadRequestEnvelope(t *testing.T) {
	resp := ClickBadRequest()
	assert.Equal(t, -8, resp.Error)
	assert.Equal(t, "Invalid request", resp.ErrorNote)
}
