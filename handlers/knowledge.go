package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"botfactory/apperr"
	"botfactory/database/queries"
	"botfactory/middleware"
	"botfactory/models"
)

// KnowledgeHandler — база знаний бота.
type KnowledgeHandler struct {
	knowledge *queries.Knowledge
	bots      *queries.Bots
}

func NewKnowledgeHandler(knowledge *queries.Knowledge, botsQ *queries.Bots) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: knowledge, bots: botsQ}
}

// ownedBotID проверяет, что бот из пути принадлежит пользователю.
func (h *KnowledgeHandler) ownedBotID(c *gin.Context) (int64, bool) {
	botID, err := strconv.ParseInt(c.Param("botId"), 10, 64)
	if err != nil {
		fail(c, apperr.Validation("Noto'g'ri bot ID"))
		return 0, false
	}
	bot, err := h.bots.ByID(c.Request.Context(), botID)
	if err != nil {
		fail(c, err)
		return 0, false
	}
	if bot == nil || bot.UserID != middleware.UserID(c) {
		fail(c, apperr.NotFound("Bot"))
		return 0, false
	}
	return botID, true
}

// Create добавляет запись. Для FAQ обязательны вопрос и ответ.
func (h *KnowledgeHandler) Create(c *gin.Context) {
	botID, ok := h.ownedBotID(c)
	if !ok {
		return
	}

	var req struct {
		Title      string                     `json:"title" binding:"required,max=255"`
		Content    string                     `json:"content" binding:"required"`
		SourceType models.KnowledgeSourceType `json:"sourceType"`
		SourceURL  string                     `json:"sourceUrl"`
		Question   string                     `json:"question"`
		Answer     string                     `json:"answer"`
		ExtraData  map[string]any             `json:"extraData"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(err.Error()))
		return
	}
	if req.SourceType == "" {
		req.SourceType = models.SourceText
	}
	if req.SourceType == models.SourceFAQ && (req.Question == "" || req.Answer == "") {
		fail(c, apperr.Validation("FAQ uchun savol va javob majburiy"))
		return
	}

	item := &models.KnowledgeItem{
		BotID:      botID,
		Title:      req.Title,
		Content:    req.Content,
		SourceType: req.SourceType,
		SourceURL:  req.SourceURL,
		Question:   req.Question,
		Answer:     req.Answer,
		ExtraData:  req.ExtraData,
		IsActive:   true,
	}
	if err := h.knowledge.Create(c.Request.Context(), item); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// List — страница записей бота (дочерние чанки скрыты).
func (h *KnowledgeHandler) List(c *gin.Context) {
	botID, ok := h.ownedBotID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	items, total, err := h.knowledge.ListByBot(c.Request.Context(), botID, page, size)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "size": size})
}

// Search — поиск подстрокой по активным записям.
func (h *KnowledgeHandler) Search(c *gin.Context) {
	botID, ok := h.ownedBotID(c)
	if !ok {
		return
	}

	query := c.Query("q")
	if query == "" {
		fail(c, apperr.Validation("q parametri majburiy"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 50 {
		limit = 10
	}

	items, err := h.knowledge.SearchActive(c.Request.Context(), botID, query, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// item достаёт запись и проверяет, что она принадлежит боту из пути.
func (h *KnowledgeHandler) item(c *gin.Context, botID int64) (*models.KnowledgeItem, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, apperr.Validation("Noto'g'ri ID"))
		return nil, false
	}
	item, err := h.knowledge.ByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if item == nil || item.BotID != botID {
		fail(c, apperr.NotFound("Yozuv"))
		return nil, false
	}
	return item, true
}

// Update правит запись базы знаний.
func (h *KnowledgeHandler) Update(c *gin.Context) {
	botID, ok := h.ownedBotID(c)
	if !ok {
		return
	}
	item, ok := h.item(c, botID)
	if !ok {
		return
	}

	var req struct {
		Title     *string         `json:"title"`
		Content   *string         `json:"content"`
		Question  *string         `json:"question"`
		Answer    *string         `json:"answer"`
		ExtraData *map[string]any `json:"extraData"`
		IsActive  *bool           `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(err.Error()))
		return
	}

	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Content != nil {
		item.Content = *req.Content
	}
	if req.Question != nil {
		item.Question = *req.Question
	}
	if req.Answer != nil {
		item.Answer = *req.Answer
	}
	if req.ExtraData != nil {
		item.ExtraData = *req.ExtraData
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}

	if err := h.knowledge.Update(c.Request.Context(), item); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Delete удаляет запись.
func (h *KnowledgeHandler) Delete(c *gin.Context) {
	botID, ok := h.ownedBotID(c)
	if !ok {
		return
	}
	item, ok := h.item(c, botID)
	if !ok {
		return
	}

	if err := h.knowledge.Delete(c.Request.Context(), item.ID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
