// Package websocket — живая лента диалогов для владельцев ботов.
package websocket

import (
	"go.uber.org/zap"

	"botfactory/logging"
	"botfactory/models"
)

// event — сообщение ленты, адресованное подписчикам одного бота.
type event struct {
	botID int64
	data  []byte
}

// Hub раздаёт события диалогов подключённым клиентам. Клиент видит
// только события ботов, на которые подписан.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan event
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run — цикл хаба; запускать одной горутиной из main.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logging.API.Debug("ws: клиент подключился", zap.Int("clients", len(h.clients)))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logging.API.Debug("ws: клиент отключился", zap.Int("clients", len(h.clients)))
			}
		case ev := <-h.broadcast:
			for client := range h.clients {
				if !client.watches(ev.botID) {
					continue
				}
				select {
				case client.send <- ev.data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// NotifyTurn публикует пару реплик (вопрос/ответ) в ленту бота.
// Реализует chat.Notifier.
func (h *Hub) NotifyTurn(botID int64, userMsg, botMsg *models.ChatMessage) {
	data, err := NewTurnMessage(botID, userMsg, botMsg)
	if err != nil {
		logging.API.Error("ws: не удалось сериализовать событие", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- event{botID: botID, data: data}:
	default:
		// Лента наблюдательная: при переполнении событие теряется.
		logging.API.Warn("ws: очередь событий переполнена", zap.Int64("botID", botID))
	}
}
