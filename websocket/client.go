package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"botfactory/logging"
)

const (
	writeWait      = 10 * time.Second    // время на запись одного сообщения
	pongWait       = 60 * time.Second    // максимальное ожидание PONG
	pingPeriod     = (pongWait * 9) / 10 // период PING
	maxMessageSize = 512
)

var newline = []byte{'\n'}

// Client — одно соединение ленты. Видит события только своих ботов.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	UserID int64
	botIDs map[int64]bool
}

// NewClient регистрирует соединение в хабе. botIDs — боты владельца,
// события которых клиент будет получать.
func NewClient(hub *Hub, conn *websocket.Conn, userID int64, botIDs []int64) *Client {
	ids := make(map[int64]bool, len(botIDs))
	for _, id := range botIDs {
		ids[id] = true
	}
	c := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		UserID: userID,
		botIDs: ids,
	}
	hub.register <- c
	return c
}

func (c *Client) watches(botID int64) bool { return c.botIDs[botID] }

// ReadPump держит соединение и следит за закрытием. Входящие данные
// от клиента лента игнорирует.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.API.Debug("ws: неожиданное закрытие", zap.Int64("userID", c.UserID), zap.Error(err))
			}
			return
		}
	}
}

// WritePump пишет из канала send и держит соединение ping/pong'ом.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Сбрасываем накопившиеся события тем же фреймом.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
