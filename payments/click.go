package payments

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"botfactory/logging"
	"botfactory/models"
)

const clickCheckoutURL = "https://my.click.uz/services/pay"

// Фазы webhook'а Click.
const (
	ClickActionPrepare  = 0
	ClickActionComplete = 1
)

// Коды ошибок протокола Click.
const (
	clickErrSignFailed      = -1
	clickErrIncorrectAmount = -2
	clickErrInvalidAction   = -3
	clickErrOrderNotFound   = -5
	clickErrBadRequest      = -8
	clickErrInternal        = -9
)

// ClickRequest — поля form-webhook'а Click. Все значения приходят
// строками; Amount разбирается при проверке суммы.
type ClickRequest struct {
	ClickTransID    string `form:"click_trans_id"`
	ServiceID       string `form:"service_id"`
	ClickPaydocID   string `form:"click_paydoc_id"`
	MerchantTransID string `form:"merchant_trans_id"`
	Amount          string `form:"amount"`
	Action          int    `form:"action"`
	Error           int    `form:"error"`
	ErrorNote       string `form:"error_note"`
	SignTime        string `form:"sign_time"`
	SignString      string `form:"sign_string"`
}

// ClickResponse — конверт ответа Click. Отдаётся с HTTP 200 всегда.
type ClickResponse struct {
	ClickTransID      string `json:"click_trans_id,omitempty"`
	MerchantTransID   string `json:"merchant_trans_id,omitempty"`
	MerchantPrepareID string `json:"merchant_prepare_id,omitempty"`
	MerchantConfirmID string `json:"merchant_confirm_id,omitempty"`
	Error             int    `json:"error"`
	ErrorNote         string `json:"error_note"`
}

// Click — провайдер Click.
type Click struct {
	merchantID string
	serviceID  string
	secretKey  string
	store      Store
	activator  Activator
}

func NewClick(merchantID, serviceID, secretKey string, store Store, activator Activator) *Click {
	return &Click{
		merchantID: merchantID,
		serviceID:  serviceID,
		secretKey:  secretKey,
		store:      store,
		activator:  activator,
	}
}

func (c *Click) Name() models.PaymentProviderKind { return models.ProviderClick }

// CreatePayment строит checkout-URL. Click — единственный провайдер,
// принимающий сумму в сумах: делим на 100 только здесь, на границе.
func (c *Click) CreatePayment(ctx context.Context, amount int64, orderID, description, returnURL string) Result {
	amountSum := amount / 100
	url := fmt.Sprintf("%s?service_id=%s&merchant_id=%s&amount=%d&transaction_param=%s&return_url=%s",
		clickCheckoutURL, c.serviceID, c.merchantID, amountSum, orderID, returnURL)

	logging.Payment.Info("Click: платёж создан",
		zap.String("orderID", orderID), zap.Int64("amountSum", amountSum))
	return Result{Success: true, TransactionID: orderID, PaymentURL: url}
}

// CheckPayment: у Click нет простого API статуса, состояние приходит
// webhook'ами.
func (c *Click) CheckPayment(ctx context.Context, providerTxID string) Result {
	return Result{Success: true, TransactionID: providerTxID}
}

// CancelPayment не поддерживается merchant API Click и всегда
// сообщает об отказе.
func (c *Click) CancelPayment(ctx context.Context, providerTxID, reason string) Result {
	return Result{ErrorMessage: "Click to'lovini bekor qilish imkonsiz"}
}

// VerifyWebhook сверяет MD5 от конкатенации полей в предписанном
// порядке: click_trans_id + service_id + secret + merchant_trans_id +
// amount + action + sign_time.
func (c *Click) VerifyWebhook(req *ClickRequest) bool {
	signString := req.ClickTransID +
		req.ServiceID +
		c.secretKey +
		req.MerchantTransID +
		req.Amount +
		strconv.Itoa(req.Action) +
		req.SignTime

	sum := md5.Sum([]byte(signString))
	return req.SignString == hex.EncodeToString(sum[:])
}

// HandleWebhook диспетчеризует фазу. Любая внутренняя ошибка
// сворачивается в {-9} — Click ждёт протокольный конверт, не HTTP 5xx.
func (c *Click) HandleWebhook(ctx context.Context, req *ClickRequest) *ClickResponse {
	logging.Payment.Info("Click webhook",
		zap.Int("action", req.Action), zap.String("clickTransID", req.ClickTransID))

	switch req.Action {
	case ClickActionPrepare:
		return c.prepare(ctx, req)
	case ClickActionComplete:
		return c.complete(ctx, req)
	default:
		return &ClickResponse{Error: clickErrInvalidAction, ErrorNote: "Invalid action"}
	}
}

// prepare — первая фаза: подпись, существование заказа, сумма.
func (c *Click) prepare(ctx context.Context, req *ClickRequest) *ClickResponse {
	if !c.VerifyWebhook(req) {
		return &ClickResponse{Error: clickErrSignFailed, ErrorNote: "Sign check failed"}
	}

	payment, err := c.store.ByOrderID(ctx, req.MerchantTransID)
	if err != nil {
		return c.internalError(err)
	}
	if payment == nil {
		return &ClickResponse{Error: clickErrOrderNotFound, ErrorNote: "Order not found"}
	}
	if !c.amountMatches(req.Amount, payment) {
		return &ClickResponse{Error: clickErrIncorrectAmount, ErrorNote: "Incorrect amount"}
	}

	payment.ProviderTxID = req.ClickTransID
	payment.Status = models.PaymentProcessing
	if err := c.store.Update(ctx, payment); err != nil {
		return c.internalError(err)
	}

	return &ClickResponse{
		ClickTransID:      req.ClickTransID,
		MerchantTransID:   req.MerchantTransID,
		MerchantPrepareID: req.MerchantTransID,
		ErrorNote:         "Success",
	}
}

// complete — вторая фаза: завершает платёж и включает подписку.
func (c *Click) complete(ctx context.Context, req *ClickRequest) *ClickResponse {
	if !c.VerifyWebhook(req) {
		return &ClickResponse{Error: clickErrSignFailed, ErrorNote: "Sign check failed"}
	}

	payment, err := c.store.ByOrderID(ctx, req.MerchantTransID)
	if err != nil {
		return c.internalError(err)
	}
	if payment == nil {
		return &ClickResponse{Error: clickErrOrderNotFound, ErrorNote: "Order not found"}
	}

	// Отрицательный error от Click — оплата сорвалась на их стороне.
	if req.Error < 0 {
		payment.Status = models.PaymentFailed
		payment.ErrorCode = strconv.Itoa(req.Error)
		payment.ErrorMessage = req.ErrorNote
		if err := c.store.Update(ctx, payment); err != nil {
			return c.internalError(err)
		}
		return &ClickResponse{Error: clickErrInternal, ErrorNote: "Transaction failed"}
	}

	if payment.Status != models.PaymentCompleted {
		now := time.Now().UTC()
		payment.Status = models.PaymentCompleted
		payment.PaidAt = &now
		if err := c.store.Update(ctx, payment); err != nil {
			return c.internalError(err)
		}
		if err := c.activator.Activate(ctx, payment); err != nil {
			logging.Payment.Error("Click: активация подписки не удалась",
				zap.Int64("paymentID", payment.ID), zap.Error(err))
		}
	}

	return &ClickResponse{
		ClickTransID:      req.ClickTransID,
		MerchantTransID:   req.MerchantTransID,
		MerchantConfirmID: req.MerchantTransID,
		ErrorNote:         "Success",
	}
}

// amountMatches сравнивает сумму webhook'а (сумы, возможно с дробной
// частью вида "165000.00") с суммой платежа в тийинах.
func (c *Click) amountMatches(amount string, p *models.Payment) bool {
	parsed, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return false
	}
	return int64(parsed*100+0.5) == p.Amount
}

func (c *Click) internalError(err error) *ClickResponse {
	logging.Payment.Error("Click webhook: внутренняя ошибка", zap.Error(err))
	return &ClickResponse{Error: clickErrInternal, ErrorNote: err.Error()}
}

// ClickBadRequest — конверт для синтаксически битого запроса.
func ClickBadRequest() *ClickResponse {
	return &ClickResponse{Error: clickErrBadRequest, ErrorNote: "Invalid request"}
}

// ClickInvalidAction — конверт для action, не совпадающего с фазой
// маршрута.
func ClickInvalidAction() *ClickResponse {
	return &ClickResponse{Error: clickErrInvalidAction, ErrorNote: "Invalid action"}
}
