package websocket

import (
	"encoding/json"

	"botfactory/models"
)

// Message — конверт события ленты.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage собирает событие указанного типа.
func NewMessage(messageType string, payload any) ([]byte, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: messageType, Payload: payloadJSON})
}

// NewTurnMessage — событие "chat_turn": входящая реплика и ответ бота.
func NewTurnMessage(botID int64, userMsg, botMsg *models.ChatMessage) ([]byte, error) {
	payload := struct {
		BotID     int64               `json:"botId"`
		UserTurn  *models.ChatMessage `json:"userTurn"`
		BotTurn   *models.ChatMessage `json:"botTurn"`
		SessionID string              `json:"sessionId"`
	}{
		BotID:     botID,
		UserTurn:  userMsg,
		BotTurn:   botMsg,
		SessionID: userMsg.SessionID,
	}
	return NewMessage("chat_turn", payload)
}
