package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"botfactory/bots"
	"botfactory/chat"
	"botfactory/logging"
	"botfactory/models"
	"botfactory/payments"
)

// botResolver — поиск бота по токену из пути webhook'а.
type botResolver interface {
	ByToken(ctx context.Context, token string, platform models.BotPlatform) (*models.Bot, error)
}

// WebhookHandler принимает входящие вызовы внешних систем: мессенджеров
// и платёжных провайдеров. Все ответы — в формате, который ждёт вызывающая
// сторона, HTTP-статус почти всегда 200.
type WebhookHandler struct {
	bots  botResolver
	cache *bots.Cache
	chat  *chat.Service
	payme *payments.Payme
	click *payments.Click
}

func NewWebhookHandler(botsQ botResolver, cache *bots.Cache, chatSvc *chat.Service, payme *payments.Payme, click *payments.Click) *WebhookHandler {
	return &WebhookHandler{bots: botsQ, cache: cache, chat: chatSvc, payme: payme, click: click}
}

// TelegramVerify — GET-проверка доступности webhook-URL.
func (h *WebhookHandler) TelegramVerify(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Telegram обрабатывает Update от Telegram. Токен в пути идентифицирует
// бота. Telegram повторяет доставку при не-200, поэтому на любые ошибки
// обработки отвечаем {"ok":true}.
func (h *WebhookHandler) Telegram(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	bot, err := h.bots.ByToken(c.Request.Context(), c.Param("token"), models.PlatformTelegram)
	if err != nil {
		logging.Bot.Error("webhook: ошибка поиска бота", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	if bot == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false})
		return
	}

	adapter, err := h.cache.For(bot)
	if err != nil {
		logging.Bot.Error("webhook: адаптер недоступен",
			zap.Int64("botID", bot.ID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	inbound := adapter.DecodeInbound(raw)
	if inbound == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	// Callback от inline-кнопки подтверждаем сразу, текст из callback_data
	// идёт в пайплайн как обычное сообщение.
	if inbound.IsCallback {
		adapter.AnswerCallback(c.Request.Context(), inbound.CallbackID)
		inbound.Text = inbound.CallbackData
	}
	// Медиа без текста (голос, фото без подписи) в пайплайн не идёт:
	// модели нечего отвечать на пустое сообщение.
	if inbound.Text == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if bot.Settings.EnableTypingIndicator {
		adapter.SendTyping(c.Request.Context(), inbound.SenderID)
	}

	reply, err := h.chat.ProcessMessage(c.Request.Context(), bot,
		inbound.SenderID, inbound.SenderName, inbound.Text, inbound.MessageType, inbound.MediaURL)
	if err != nil {
		logging.Bot.Error("webhook: обработка сообщения не удалась",
			zap.Int64("botID", bot.ID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	// Сбой доставки не откатывает обработку: диалог уже сохранён.
	if !adapter.Send(c.Request.Context(), inbound.SenderID, &bots.Response{Text: reply}) {
		logging.Bot.Warn("webhook: ответ не доставлен",
			zap.Int64("botID", bot.ID), zap.String("senderID", inbound.SenderID))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Payme — единая точка Merchant API (JSON-RPC 2.0). PayMe требует
// HTTP 200 на протокольные ошибки; синтаксически битый JSON — это
// не протокольный запрос, он получает 400.
func (h *WebhookHandler) Payme(c *gin.Context) {
	var req payments.PaymeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, payments.PaymeParseError())
		return
	}
	if !h.payme.VerifyWebhook(c.GetHeader("Authorization")) {
		logging.Payment.Warn("payme: неверная авторизация webhook")
		c.JSON(http.StatusOK, payments.PaymeUnauthorized(req.ID))
		return
	}
	c.JSON(http.StatusOK, h.payme.HandleWebhook(c.Request.Context(), &req))
}

// ClickPrepare — шаг prepare протокола Click (action=0).
func (h *WebhookHandler) ClickPrepare(c *gin.Context) {
	h.clickAction(c, 0)
}

// ClickComplete — шаг complete протокола Click (action=1).
func (h *WebhookHandler) ClickComplete(c *gin.Context) {
	h.clickAction(c, 1)
}

func (h *WebhookHandler) clickAction(c *gin.Context, action int) {
	var req payments.ClickRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusOK, payments.ClickBadRequest())
		return
	}
	// Подпись считается по action из формы, поэтому поле не
	// переписывается: форма, не совпавшая с фазой маршрута, — ошибка
	// протокола.
	if req.Action != action {
		c.JSON(http.StatusOK, payments.ClickInvalidAction())
		return
	}
	c.JSON(http.StatusOK, h.click.HandleWebhook(c.Request.Context(), &req))
}
