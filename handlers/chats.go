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

// ChatsHandler — просмотр диалогов ботов их владельцем.
type ChatsHandler struct {
	chats *queries.Chats
	bots  *queries.Bots
}

func NewChatsHandler(chats *queries.Chats, botsQ *queries.Bots) *ChatsHandler {
	return &ChatsHandler{chats: chats, bots: botsQ}
}

func (h *ChatsHandler) ownedBot(c *gin.Context) (*models.Bot, bool) {
	botID, err := strconv.ParseInt(c.Param("botId"), 10, 64)
	if err != nil {
		fail(c, apperr.Validation("Noto'g'ri bot ID"))
		return nil, false
	}
	bot, err := h.bots.ByID(c.Request.Context(), botID)
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

// Sessions — список сессий бота, свежие первыми.
func (h *ChatsHandler) Sessions(c *gin.Context) {
	bot, ok := h.ownedBot(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	sessions, err := h.chats.SessionsByBot(c.Request.Context(), bot.ID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": sessions, "total": len(sessions)})
}

// Messages — полные реплики одной сессии в хронологии.
func (h *ChatsHandler) Messages(c *gin.Context) {
	bot, ok := h.ownedBot(c)
	if !ok {
		return
	}

	sessionID := c.Param("sessionId")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	messages, err := h.chats.MessagesBySession(c.Request.Context(), bot.ID, sessionID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": messages, "total": len(messages)})
}

// Feedback проставляет оценку ответу ассистента.
func (h *ChatsHandler) Feedback(c *gin.Context) {
	if _, ok := h.ownedBot(c); !ok {
		return
	}

	messageID, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
	if err != nil {
		fail(c, apperr.Validation("Noto'g'ri xabar ID"))
		return
	}

	var req struct {
		Score int    `json:"score" binding:"required,min=1,max=5"`
		Text  string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(err.Error()))
		return
	}

	if err := h.chats.SaveFeedback(c.Request.Context(), messageID, req.Score, req.Text); err != nil {
		fail(c, apperr.NotFound("Xabar"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
