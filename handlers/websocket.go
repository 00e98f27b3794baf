package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"botfactory/apperr"
	"botfactory/database/queries"
	"botfactory/logging"
	"botfactory/middleware"
	"botfactory/websocket"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Браузерные клиенты дашборда ходят с разных origin'ов,
	// доступ ограничивает JWT.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler поднимает соединение ленты диалогов дашборда.
type WebSocketHandler struct {
	hub  *websocket.Hub
	bots *queries.Bots
	auth *middleware.Auth
}

func NewWebSocketHandler(hub *websocket.Hub, botsQ *queries.Bots, auth *middleware.Auth) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, bots: botsQ, auth: auth}
}

// Feed аутентифицирует соединение и подписывает его на ботов владельца.
// Токен передаётся query-параметром token (браузерный WebSocket не умеет
// заголовки) либо обычным Authorization: Bearer.
func (h *WebSocketHandler) Feed(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}

	claims, err := h.auth.VerifyToken(token, middleware.TokenAccess)
	if err != nil {
		fail(c, apperr.Authentication("Noto'g'ri yoki muddati o'tgan token"))
		return
	}

	botsList, err := h.bots.ByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	botIDs := make([]int64, 0, len(botsList))
	for _, b := range botsList {
		botIDs = append(botIDs, b.ID)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.API.Warn("ws: upgrade не удался", zap.Error(err))
		return
	}

	client := websocket.NewClient(h.hub, conn, claims.UserID, botIDs)
	go client.WritePump()
	go client.ReadPump()

	logging.API.Info("ws: лента подключена",
		zap.Int64("userID", claims.UserID), zap.Int("bots", len(botIDs)))
}
