package payments

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"botfactory/logging"
	"botfactory/models"
)

const (
	paymeCheckoutURL = "https://checkout.paycom.uz"
	paymeMerchantURL = "https://checkout.paycom.uz/api"
)

// Методы Merchant API.
const (
	paymeCheckPerform = "CheckPerformTransaction"
	paymeCreate       = "CreateTransaction"
	paymePerform      = "PerformTransaction"
	paymeCancel       = "CancelTransaction"
	paymeCheck        = "CheckTransaction"
)

// Коды ошибок Merchant API.
const (
	paymeErrInternal      = -31001
	paymeErrTxNotFound    = -31003
	paymeErrCannotPerform = -31008
	paymeErrOrderNotFound = -31050
	paymeErrOrderBusy     = -31099
	paymeErrUnknownMethod = -32601
	paymeErrUnauthorized  = -32504
	paymeErrParse         = -32700
)

// PaymeRequest — JSON-RPC 2.0 запрос Merchant API. ID возвращается
// провайдеру дословно.
type PaymeRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  PaymeParams     `json:"params"`
}

type PaymeParams struct {
	ID      string       `json:"id,omitempty"` // ID транзакции PayMe
	Time    int64        `json:"time,omitempty"`
	Amount  int64        `json:"amount,omitempty"` // тийин
	Reason  *int         `json:"reason,omitempty"`
	Account PaymeAccount `json:"account,omitempty"`
}

type PaymeAccount struct {
	OrderID string `json:"order_id"`
}

// Payme — провайдер PayMe Merchant API.
type Payme struct {
	merchantID string
	secretKey  string
	store      Store
	activator  Activator
	client     *http.Client
}

func NewPayme(merchantID, secretKey string, store Store, activator Activator) *Payme {
	return &Payme{
		merchantID: merchantID,
		secretKey:  secretKey,
		store:      store,
		activator:  activator,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *Payme) Name() models.PaymentProviderKind { return models.ProviderPayme }

// CreatePayment строит checkout-URL: base64 от JSON-параметров.
// Сумма — в тийинах, без конвертации.
func (p *Payme) CreatePayment(ctx context.Context, amount int64, orderID, description, returnURL string) Result {
	params := struct {
		M       string `json:"m"`
		OrderID string `json:"ac.order_id"`
		A       int64  `json:"a"`
		C       string `json:"c"`
	}{p.merchantID, orderID, amount, returnURL}

	encoded, err := json.Marshal(params)
	if err != nil {
		return Result{ErrorMessage: err.Error()}
	}
	url := fmt.Sprintf("%s/%s", paymeCheckoutURL, base64.StdEncoding.EncodeToString(encoded))

	logging.Payment.Info("PayMe: платёж создан",
		zap.String("orderID", orderID), zap.Int64("amount", amount))
	return Result{Success: true, TransactionID: orderID, PaymentURL: url}
}

// CheckPayment опрашивает статус транзакции в Merchant API.
func (p *Payme) CheckPayment(ctx context.Context, providerTxID string) Result {
	resp, err := p.merchantCall(ctx, paymeCheck, map[string]any{"id": providerTxID})
	if err != nil {
		logging.Payment.Error("PayMe: проверка статуса не удалась", zap.Error(err))
		return Result{ErrorMessage: err.Error()}
	}
	if errObj, ok := resp["error"]; ok {
		return Result{ErrorMessage: fmt.Sprintf("%v", errObj)}
	}
	return Result{Success: true, TransactionID: providerTxID}
}

// CancelPayment отменяет транзакцию (reason 1 — односторонняя отмена).
func (p *Payme) CancelPayment(ctx context.Context, providerTxID, reason string) Result {
	resp, err := p.merchantCall(ctx, paymeCancel, map[string]any{"id": providerTxID, "reason": 1})
	if err != nil {
		logging.Payment.Error("PayMe: отмена не удалась", zap.Error(err))
		return Result{ErrorMessage: err.Error()}
	}
	if errObj, ok := resp["error"]; ok {
		return Result{ErrorMessage: fmt.Sprintf("%v", errObj)}
	}
	logging.Payment.Info("PayMe: платёж отменён", zap.String("txID", providerTxID))
	return Result{Success: true, TransactionID: providerTxID}
}

func (p *Payme) merchantCall(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{"method": method, "params": params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, paymeMerchantURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte("Paycom:" + p.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyWebhook проверяет Basic-авторизацию входящего запроса PayMe.
// Ожидается "Paycom:<secret>"; сравнение за постоянное время.
func (p *Payme) VerifyWebhook(authHeader string) bool {
	if !strings.HasPrefix(authHeader, "Basic ") {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authHeader, "Basic "))
	if err != nil {
		return false
	}
	expected := []byte("Paycom:" + p.secretKey)
	return subtle.ConstantTimeCompare(decoded, expected) == 1
}

// HandleWebhook диспетчеризует JSON-RPC метод. Ответ всегда
// протокольный конверт, никогда не HTTP-ошибка.
func (p *Payme) HandleWebhook(ctx context.Context, req *PaymeRequest) map[string]any {
	logging.Payment.Info("PayMe webhook", zap.String("method", req.Method))

	switch req.Method {
	case paymeCheckPerform:
		return p.checkPerformTransaction(ctx, req)
	case paymeCreate:
		return p.createTransaction(ctx, req)
	case paymePerform:
		return p.performTransaction(ctx, req)
	case paymeCancel:
		return p.cancelTransaction(ctx, req)
	case paymeCheck:
		return p.checkTransaction(ctx, req)
	default:
		return paymeError(req.ID, paymeErrUnknownMethod, "Method not found")
	}
}

// checkPerformTransaction всегда отвечает allow:true.
// TODO: валидация заказа и суммы перед выводом в продакшен.
func (p *Payme) checkPerformTransaction(ctx context.Context, req *PaymeRequest) map[string]any {
	return paymeResult(req.ID, map[string]any{"allow": true})
}

// createTransaction привязывает транзакцию PayMe к заказу. Повторный
// вызов с тем же ID транзакции идемпотентен.
func (p *Payme) createTransaction(ctx context.Context, req *PaymeRequest) map[string]any {
	payment, err := p.store.ByOrderID(ctx, req.Params.Account.OrderID)
	if err != nil {
		return p.internalError(req.ID, err)
	}
	if payment == nil {
		return paymeError(req.ID, paymeErrOrderNotFound, "Buyurtma topilmadi")
	}
	if payment.Amount != req.Params.Amount {
		return paymeError(req.ID, paymeErrInternal, "Noto'g'ri summa")
	}

	if payment.ProviderTxID == "" {
		payment.ProviderTxID = req.Params.ID
		payment.State = models.TxStateCreated
		payment.CreateTime = req.Params.Time
		payment.Status = models.PaymentProcessing
		if err := p.store.Update(ctx, payment); err != nil {
			return p.internalError(req.ID, err)
		}
	} else if payment.ProviderTxID != req.Params.ID {
		// Заказ уже занят другой транзакцией.
		return paymeError(req.ID, paymeErrOrderBusy, "Buyurtma boshqa tranzaksiyaga bog'langan")
	}

	return paymeResult(req.ID, map[string]any{
		"create_time": payment.CreateTime,
		"transaction": payment.ProviderTxID,
		"state":       payment.State,
	})
}

// performTransaction завершает оплату и включает подписку.
func (p *Payme) performTransaction(ctx context.Context, req *PaymeRequest) map[string]any {
	payment, err := p.store.ByProviderTxID(ctx, models.ProviderPayme, req.Params.ID)
	if err != nil {
		return p.internalError(req.ID, err)
	}
	if payment == nil {
		return paymeError(req.ID, paymeErrTxNotFound, "Tranzaksiya topilmadi")
	}

	switch payment.State {
	case models.TxStateCreated:
		now := time.Now().UTC()
		payment.State = models.TxStatePerformed
		payment.PerformTime = nowMillis()
		payment.Status = models.PaymentCompleted
		payment.PaidAt = &now
		if err := p.store.Update(ctx, payment); err != nil {
			return p.internalError(req.ID, err)
		}
		if err := p.activator.Activate(ctx, payment); err != nil {
			logging.Payment.Error("PayMe: активация подписки не удалась",
				zap.Int64("paymentID", payment.ID), zap.Error(err))
		}
	case models.TxStatePerformed:
		// Повторный Perform — идемпотентный ответ.
	default:
		return paymeError(req.ID, paymeErrCannotPerform, "Tranzaksiyani bajarib bo'lmaydi")
	}

	return paymeResult(req.ID, map[string]any{
		"transaction":  payment.ProviderTxID,
		"perform_time": payment.PerformTime,
		"state":        payment.State,
	})
}

// cancelTransaction переводит транзакцию в -1 с кодом причины.
func (p *Payme) cancelTransaction(ctx context.Context, req *PaymeRequest) map[string]any {
	payment, err := p.store.ByProviderTxID(ctx, models.ProviderPayme, req.Params.ID)
	if err != nil {
		return p.internalError(req.ID, err)
	}
	if payment == nil {
		return paymeError(req.ID, paymeErrTxNotFound, "Tranzaksiya topilmadi")
	}

	if payment.State != models.TxStateCancelled {
		wasPerformed := payment.State == models.TxStatePerformed
		payment.State = models.TxStateCancelled
		payment.CancelTime = nowMillis()
		payment.CancelReason = req.Params.Reason
		if wasPerformed {
			payment.Status = models.PaymentRefunded
		} else {
			payment.Status = models.PaymentCancelled
		}
		if err := p.store.Update(ctx, payment); err != nil {
			return p.internalError(req.ID, err)
		}
		logging.Payment.Info("PayMe: транзакция отменена",
			zap.String("txID", payment.ProviderTxID), zap.Any("reason", req.Params.Reason))
	}

	return paymeResult(req.ID, map[string]any{
		"transaction": payment.ProviderTxID,
		"cancel_time": payment.CancelTime,
		"state":       payment.State,
	})
}

// checkTransaction — read-only слепок состояния.
func (p *Payme) checkTransaction(ctx context.Context, req *PaymeRequest) map[string]any {
	payment, err := p.store.ByProviderTxID(ctx, models.ProviderPayme, req.Params.ID)
	if err != nil {
		return p.internalError(req.ID, err)
	}
	if payment == nil {
		return paymeError(req.ID, paymeErrTxNotFound, "Tranzaksiya topilmadi")
	}

	var reason any
	if payment.CancelReason != nil {
		reason = *payment.CancelReason
	}
	return paymeResult(req.ID, map[string]any{
		"create_time":  payment.CreateTime,
		"perform_time": payment.PerformTime,
		"cancel_time":  payment.CancelTime,
		"transaction":  payment.ProviderTxID,
		"state":        payment.State,
		"reason":       reason,
	})
}

func (p *Payme) internalError(id json.RawMessage, err error) map[string]any {
	logging.Payment.Error("PayMe webhook: внутренняя ошибка", zap.Error(err))
	return paymeError(id, paymeErrInternal, err.Error())
}

func paymeResult(id json.RawMessage, result map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
}

// paymeError — трёхъязычный конверт ошибки. PayMe требует message
// с ключами uz/ru/en; один и тот же текст уходит во все три.
func paymeError(id json.RawMessage, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": map[string]string{"uz": message, "ru": message, "en": message},
		},
	}
}

// PaymeUnauthorized — конверт для провала Basic-авторизации.
func PaymeUnauthorized(id json.RawMessage) map[string]any {
	return paymeError(id, paymeErrUnauthorized, "Avtorizatsiya xatosi")
}

// PaymeParseError — конверт для нечитаемого JSON-RPC запроса;
// id в таком случае по спецификации JSON-RPC — null.
func PaymeParseError() map[string]any {
	return paymeError(nil, paymeErrParse, "So'rovni o'qib bo'lmadi")
}
