package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"botfactory/apperr"
	"botfactory/database/queries"
	"botfactory/logging"
	"botfactory/middleware"
	"botfactory/models"
	"botfactory/payments"
)

// paymentTTL — сколько живёт неоплаченный счёт.
const paymentTTL = 12 * time.Hour

// Plan — публичное описание тарифа.
type Plan struct {
	Type         models.SubscriptionType `json:"type"`
	Name         string                  `json:"name"`
	PriceMonthly int64                   `json:"priceMonthly"` // сумы
	BotLimit     int                     `json:"botLimit"`
	MessageLimit int                     `json:"messageLimit"`
	Features     []string                `json:"features"`
}

// subscriptionPlans — витрина тарифов.
var subscriptionPlans = []Plan{
	{
		Type: models.SubscriptionFree, Name: "Bepul", PriceMonthly: 0,
		BotLimit: 1, MessageLimit: 100,
		Features: []string{
			"1 ta bot",
			"100 ta xabar/oy",
			"Telegram integratsiyasi",
			"Asosiy AI javoblar",
		},
	},
	{
		Type: models.SubscriptionStarter, Name: "Starter", PriceMonthly: 165_000,
		BotLimit: 3, MessageLimit: 1000,
		Features: []string{
			"3 ta bot",
			"1,000 ta xabar/oy",
			"Telegram + WhatsApp",
			"Bilimlar bazasi",
			"Email qo'llab-quvvatlash",
		},
	},
	{
		Type: models.SubscriptionBasic, Name: "Basic", PriceMonthly: 290_000,
		BotLimit: 10, MessageLimit: 10000,
		Features: []string{
			"10 ta bot",
			"10,000 ta xabar/oy",
			"Barcha platformalar",
			"Bilimlar bazasi + FAQ",
			"Tezkor qo'llab-quvvatlash",
			"Analitika",
		},
	},
	{
		Type: models.SubscriptionPremium, Name: "Premium", PriceMonthly: 590_000,
		BotLimit: 50, MessageLimit: 100000,
		Features: []string{
			"50 ta bot",
			"100,000 ta xabar/oy",
			"Barcha platformalar",
			"Shaxsiy AI sozlamalari",
			"Prioritet qo'llab-quvvatlash",
			"API kirish",
			"Custom branding",
		},
	},
}

// PaymentsHandler — тарифы, создание платежей, история.
type PaymentsHandler struct {
	payments  *queries.Payments
	users     *queries.Users
	bots      *queries.Bots
	providers payments.Registry
	// Цены за месяц в тийинах по тарифам.
	prices map[models.SubscriptionType]int64
}

func NewPaymentsHandler(paymentsQ *queries.Payments, users *queries.Users, botsQ *queries.Bots, providers payments.Registry, priceStarter, priceBasic, pricePremium int64) *PaymentsHandler {
	return &PaymentsHandler{
		payments:  paymentsQ,
		users:     users,
		bots:      botsQ,
		providers: providers,
		prices: map[models.SubscriptionType]int64{
			models.SubscriptionStarter: priceStarter,
			models.SubscriptionBasic:   priceBasic,
			models.SubscriptionPremium: pricePremium,
		},
	}
}

// Plans отдаёт витрину тарифов.
func (h *PaymentsHandler) Plans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": subscriptionPlans})
}

// Subscription — текущее состояние подписки пользователя.
func (h *PaymentsHandler) Subscription(c *gin.Context) {
	user, err := h.users.ByID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if user == nil {
		fail(c, apperr.NotFound("Foydalanuvchi"))
		return
	}

	botsUsed, err := h.bots.CountByUser(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}

	var daysRemaining *int
	if user.SubscriptionExpiresAt != nil {
		d := int(time.Until(*user.SubscriptionExpiresAt).Hours() / 24)
		if d < 0 {
			d = 0
		}
		daysRemaining = &d
	}

	c.JSON(http.StatusOK, gin.H{
		"type":          user.SubscriptionType,
		"expiresAt":     user.SubscriptionExpiresAt,
		"isActive":      user.IsSubscriptionActive(),
		"daysRemaining": daysRemaining,
		"botLimit":      user.BotLimit(),
		"botsUsed":      botsUsed,
		"messageLimit":  user.MessageLimit(),
		"messagesUsed":  user.MessagesThisMonth,
	})
}

// Create выставляет счёт и возвращает checkout-URL провайдера.
func (h *PaymentsHandler) Create(c *gin.Context) {
	var req struct {
		Provider           models.PaymentProviderKind `json:"provider" binding:"required"`
		SubscriptionType   models.SubscriptionType    `json:"subscriptionType" binding:"required"`
		SubscriptionMonths int                        `json:"subscriptionMonths"`
		ReturnURL          string                     `json:"returnUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(err.Error()))
		return
	}
	if req.SubscriptionType == models.SubscriptionFree {
		fail(c, apperr.Validation("Bepul obuna uchun to'lov kerak emas"))
		return
	}
	basePrice, ok := h.prices[req.SubscriptionType]
	if !ok {
		fail(c, apperr.Validation("Noto'g'ri obuna turi"))
		return
	}
	if req.SubscriptionMonths < 1 {
		req.SubscriptionMonths = 1
	}

	provider := h.providers.For(req.Provider)
	if provider == nil {
		fail(c, apperr.Validation("To'lov provayderi qo'llab-quvvatlanmaydi"))
		return
	}

	amount := basePrice * int64(req.SubscriptionMonths)
	expiresAt := time.Now().UTC().Add(paymentTTL)
	payment := &models.Payment{
		UserID:             middleware.UserID(c),
		Provider:           req.Provider,
		Amount:             amount,
		Currency:           "UZS",
		Status:             models.PaymentPending,
		TransactionID:      uuid.New().String(),
		SubscriptionType:   req.SubscriptionType,
		SubscriptionMonths: req.SubscriptionMonths,
		ReturnURL:          req.ReturnURL,
		ExpiresAt:          &expiresAt,
	}

	result := provider.CreatePayment(c.Request.Context(), amount, payment.TransactionID,
		"BotFactory obuna: "+string(req.SubscriptionType), req.ReturnURL)
	if !result.Success {
		fail(c, apperr.ExternalService(string(req.Provider), nil))
		return
	}
	payment.PaymentURL = result.PaymentURL

	if err := h.payments.Create(c.Request.Context(), payment); err != nil {
		fail(c, err)
		return
	}

	logging.Payment.Info("счёт выставлен",
		zap.Int64("paymentID", payment.ID),
		zap.Int64("userID", payment.UserID),
		zap.Int64("amount", amount),
		zap.String("provider", string(req.Provider)))

	c.JSON(http.StatusCreated, gin.H{
		"paymentId":  payment.ID,
		"paymentUrl": payment.PaymentURL,
		"expiresAt":  payment.ExpiresAt,
	})
}

// List — история платежей пользователя.
func (h *PaymentsHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	list, err := h.payments.ListByUser(c.Request.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "total": len(list)})
}

// Get — один платёж пользователя.
func (h *PaymentsHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, apperr.Validation("Noto'g'ri to'lov ID"))
		return
	}

	payment, err := h.payments.ByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if payment == nil || payment.UserID != middleware.UserID(c) {
		fail(c, apperr.NotFound("To'lov"))
		return
	}
	c.JSON(http.StatusOK, payment)
}
