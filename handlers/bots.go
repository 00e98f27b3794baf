package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"botfactory/apperr"
	"botfactory/bots"
	"botfactory/database/queries"
	"botfactory/logging"
	"botfactory/middleware"
	"botfactory/models"
)

// BotsHandler — CRUD и управление жизненным циклом ботов.
type BotsHandler struct {
	bots    *queries.Bots
	users   *queries.Users
	manager *bots.Manager
}

func NewBotsHandler(botsQ *queries.Bots, users *queries.Users, manager *bots.Manager) *BotsHandler {
	return &BotsHandler{bots: botsQ, users: users, manager: manager}
}

// ownedBot достаёт бота и проверяет владение текущим пользователем.
func (h *BotsHandler) ownedBot(c *gin.Context) (*models.Bot, bool) {
	id, err := strconv.ParseInt(c.Param("botId"), 10, 64)
	if err != nil {
		fail(c, apperr.Validation("Noto'g'ri bot ID"))
		return nil, false
	}
	bot, err := h.bots.ByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if bot == nil || bot.UserID != middleware.UserID(c) {
		fail(c, apperr.NotFound("Bot"))
		return nil, false
	}
	return bot, true
}

// Create создаёт бота с проверкой лимита тарифа и уникальности токена.
func (h *BotsHandler) Create(c *gin.Context) {
	var req struct {
		Name         string             `json:"name" binding:"required,max=255"`
		Description  string             `json:"description"`
		Platform     models.BotPlatform `json:"platform" binding:"required"`
		Token        string             `json:"token" binding:"required"`
		Language     models.BotLanguage `json:"language"`
		SystemPrompt string             `json:"systemPrompt"`
		Temperature  *float64           `json:"temperature"`
		MaxTokens    *int               `json:"maxTokens"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(err.Error()))
		return
	}

	userID := middleware.UserID(c)
	user, err := h.users.ByID(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	if user == nil {
		fail(c, apperr.NotFound("Foydalanuvchi"))
		return
	}

	count, err := h.bots.CountByUser(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	if count >= user.BotLimit() {
		fail(c, apperr.Authorization(fmt.Sprintf("Bot limiti (%d) to'lgan. Obunani yangilang.", user.BotLimit())))
		return
	}

	if existing, err := h.bots.ByTokenAny(c.Request.Context(), req.Token); err != nil {
		fail(c, err)
		return
	} else if existing != nil {
		fail(c, apperr.AlreadyExists("Bu token"))
		return
	}

	bot := &models.Bot{
		UserID:       userID,
		Name:         req.Name,
		Description:  req.Description,
		Platform:     req.Platform,
		Token:        req.Token,
		Language:     req.Language,
		SystemPrompt: req.SystemPrompt,
		Temperature:  0.7,
		MaxTokens:    1000,
		Settings:     models.DefaultSettings(),
		Status:       models.BotPending,
	}
	if req.Language == "" {
		bot.Language = models.LangUz
	}
	if req.Temperature != nil {
		bot.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		bot.MaxTokens = *req.MaxTokens
	}
	if err := bot.Validate(); err != nil {
		fail(c, apperr.Validation(err.Error()))
		return
	}

	if err := h.bots.Create(c.Request.Context(), bot); err != nil {
		fail(c, err)
		return
	}

	logging.API.Info("бот создан", zap.Int64("botID", bot.ID), zap.Int64("userID", userID))
	c.JSON(http.StatusCreated, bot)
}

// List возвращает всех ботов пользователя.
func (h *BotsHandler) List(c *gin.Context) {
	list, err := h.bots.ByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list, "total": len(list)})
}

// Get возвращает одного бота.
func (h *BotsHandler) Get(c *gin.Context) {
	bot, ok := h.ownedBot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, bot)
}

// Update меняет параметры бота.
func (h *BotsHandler) Update(c *gin.Context) {
	bot, ok := h.ownedBot(c)
	if !ok {
		return
	}

	var req struct {
		Name         *string             `json:"name"`
		Description  *string             `json:"description"`
		Language     *models.BotLanguage `json:"language"`
		SystemPrompt *string             `json:"systemPrompt"`
		Temperature  *float64            `json:"temperature"`
		MaxTokens    *int                `json:"maxTokens"`
		Settings     *models.BotSettings `json:"settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(err.Error()))
		return
	}

	if req.Name != nil {
		bot.Name = *req.Name
	}
	if req.Description != nil {
		bot.Description = *req.Description
	}
	if req.Language != nil {
		bot.Language = *req.Language
	}
	if req.SystemPrompt != nil {
		bot.SystemPrompt = *req.SystemPrompt
	}
	if req.Temperature != nil {
		bot.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		bot.MaxTokens = *req.MaxTokens
	}
	if req.Settings != nil {
		if err := req.Settings.Validate(); err != nil {
			fail(c, apperr.Validation(err.Error()))
			return
		}
		bot.Settings = *req.Settings
	}
	if err := bot.Validate(); err != nil {
		fail(c, apperr.Validation(err.Error()))
		return
	}

	if err := h.bots.Update(c.Request.Context(), bot); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bot)
}

// Delete удаляет бота и его адаптер из кэша.
func (h *BotsHandler) Delete(c *gin.Context) {
	bot, ok := h.ownedBot(c)
	if !ok {
		return
	}

	if bot.IsActive {
		h.manager.Deactivate(c.Request.Context(), bot)
	}
	if err := h.bots.Delete(c.Request.Context(), bot.ID); err != nil {
		fail(c, err)
		return
	}

	logging.API.Info("бот удалён", zap.Int64("botID", bot.ID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Activate проверяет токен у платформы и регистрирует webhook.
func (h *BotsHandler) Activate(c *gin.Context) {
	bot, ok := h.ownedBot(c)
	if !ok {
		return
	}

	err := h.manager.ValidateAndActivate(c.Request.Context(), bot)
	// Статус сохраняем в любом исходе: ошибка активации тоже состояние.
	if uerr := h.bots.Update(c.Request.Context(), bot); uerr != nil {
		fail(c, uerr)
		return
	}
	if err != nil {
		fail(c, apperr.Validation(bot.ErrorMessage))
		return
	}
	c.JSON(http.StatusOK, bot)
}

// Deactivate снимает webhook и останавливает бота.
func (h *BotsHandler) Deactivate(c *gin.Context) {
	bot, ok := h.ownedBot(c)
	if !ok {
		return
	}

	h.manager.Deactivate(c.Request.Context(), bot)
	if err := h.bots.Update(c.Request.Context(), bot); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bot)
}
