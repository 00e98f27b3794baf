package bots

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"botfactory/logging"
	"botfactory/models"
)

// buttonsPerRow — кнопки раскладываются рядами не шире двух.
const buttonsPerRow = 2

// Telegram — адаптер Telegram Bot API.
type Telegram struct {
	api      *tgbotapi.BotAPI
	settings models.BotSettings
}

// NewTelegram собирает адаптер без сетевых вызовов: getMe делается
// только в ValidateCredential, не в конструкторе.
func NewTelegram(token string, settings models.BotSettings) *Telegram {
	api := &tgbotapi.BotAPI{
		Token:  token,
		Client: &http.Client{Timeout: 30 * time.Second},
		Buffer: 100,
	}
	api.SetAPIEndpoint(tgbotapi.APIEndpoint)
	return &Telegram{api: api, settings: settings}
}

// TelegramFactory — фабрика для реестра адаптеров.
func TelegramFactory(bot *models.Bot) Adapter {
	return NewTelegram(bot.Token, bot.Settings)
}

// Send отправляет текст, затем фото и голос отдельными вызовами.
// false только при сбое основной текстовой отправки.
func (t *Telegram) Send(ctx context.Context, recipientID string, resp *Response) bool {
	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		logging.Bot.Error("Telegram: некорректный chat_id", zap.String("recipientID", recipientID))
		return false
	}

	msg := tgbotapi.NewMessage(chatID, resp.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(resp.Buttons) > 0 {
		msg.ReplyMarkup = buildKeyboard(resp.Buttons)
	}
	if _, err := t.api.Send(msg); err != nil {
		logging.Bot.Error("Telegram: отправка текста не удалась",
			zap.Int64("chatID", chatID), zap.Error(err))
		return false
	}

	if resp.ImageURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(resp.ImageURL))
		if _, err := t.api.Send(photo); err != nil {
			logging.Bot.Warn("Telegram: отправка фото не удалась", zap.Error(err))
		}
	}
	if resp.AudioURL != "" {
		voice := tgbotapi.NewVoice(chatID, tgbotapi.FileURL(resp.AudioURL))
		if _, err := t.api.Send(voice); err != nil {
			logging.Bot.Warn("Telegram: отправка голоса не удалась", zap.Error(err))
		}
	}

	return true
}

// buildKeyboard раскладывает плоский список кнопок рядами по две,
// сверху вниз, слева направо.
func buildKeyboard(buttons []Button) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(buttons); i += buttonsPerRow {
		end := i + buttonsPerRow
		if end > len(buttons) {
			end = len(buttons)
		}
		var row []tgbotapi.InlineKeyboardButton
		for _, b := range buttons[i:end] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// SendTyping показывает «печатает…»; сбой не фатален.
func (t *Telegram) SendTyping(ctx context.Context, recipientID string) {
	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return
	}
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := t.api.Request(action); err != nil {
		logging.Bot.Warn("Telegram: индикатор набора не отправлен", zap.Error(err))
	}
}

// DecodeInbound разбирает Telegram Update. nil — нераспознанный payload.
func (t *Telegram) DecodeInbound(raw []byte) *Inbound {
	var update tgbotapi.Update
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil
	}

	if cq := update.CallbackQuery; cq != nil {
		in := &Inbound{
			IsCallback:   true,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}
		if cq.From != nil {
			in.SenderID = strconv.FormatInt(cq.From.ID, 10)
			in.SenderName = cq.From.UserName
		}
		return in
	}

	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Chat == nil {
		return nil
	}

	in := &Inbound{
		SenderID:    strconv.FormatInt(msg.Chat.ID, 10),
		Text:        msg.Text,
		MessageType: models.TypeText,
		Metadata: map[string]any{
			"message_id": msg.MessageID,
			"chat_type":  msg.Chat.Type,
		},
	}
	if msg.From != nil {
		in.SenderName = msg.From.UserName
		in.Metadata["first_name"] = msg.From.FirstName
		in.Metadata["last_name"] = msg.From.LastName
	}

	if msg.Voice != nil {
		in.MessageType = models.TypeAudio
		in.MediaURL = fmt.Sprintf("file:%s", msg.Voice.FileID)
	}
	if len(msg.Photo) > 0 {
		// Крупнейший вариант по file_size; при равенстве побеждает
		// последний в списке.
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.FileSize >= best.FileSize {
				best = p
			}
		}
		in.MessageType = models.TypeImage
		in.MediaURL = fmt.Sprintf("file:%s", best.FileID)
	}

	return in
}

// ValidateCredential — getMe; токен жив, если Telegram его принимает.
func (t *Telegram) ValidateCredential(ctx context.Context) bool {
	me, err := t.api.GetMe()
	if err != nil {
		logging.Bot.Error("Telegram: проверка токена не удалась", zap.Error(err))
		return false
	}
	logging.Bot.Info("Telegram: токен подтверждён", zap.String("username", me.UserName))
	return true
}

// RegisterWebhook подписывается только на message/edited_message/callback_query.
func (t *Telegram) RegisterWebhook(ctx context.Context, url string) bool {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		logging.Bot.Error("Telegram: некорректный webhook URL", zap.String("url", url), zap.Error(err))
		return false
	}
	wh.AllowedUpdates = []string{"message", "edited_message", "callback_query"}
	if _, err := t.api.Request(wh); err != nil {
		logging.Bot.Error("Telegram: setWebhook не удался", zap.Error(err))
		return false
	}
	logging.Bot.Info("Telegram: webhook зарегистрирован", zap.String("url", url))
	return true
}

// AnswerCallback подтверждает callback_query без текста.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID string) {
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		logging.Bot.Warn("Telegram: answerCallbackQuery не удался", zap.Error(err))
	}
}
