package bots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfactory/models"
)

func newTelegramForTest() *Telegram {
	return NewTelegram("000000:test-token", models.DefaultSettings())
}

func TestDecodeInboundText(t *testing.T) {
	raw := []byte(`{
		"update_id": 1,
		"message": {
			"message_id": 10,
			"from": {"id": 100, "username": "alisher", "first_name": "Ali"},
			"chat": {"id": 100, "type": "private"},
			"text": "Salom"
		}
	}`)

	in := newTelegramForTest().DecodeInbound(raw)
	require.NotNil(t, in)
	assert.Equal(t, "100", in.SenderID)
	assert.Equal(t, "alisher", in.SenderName)
	assert.Equal(t, "Salom", in.Text)
	assert.Equal(t, models.TypeText, in.MessageType)
	assert.False(t, in.IsCallback)
	assert.Equal(t, "private", in.Metadata["chat_type"])
}

func TestDecodeInboundEditedMessage(t *testing.T) {
	raw := []byte(`{
		"update_id": 2,
		"edited_message": {
			"message_id": 11,
			"chat": {"id": 100, "type": "private"},
			"text": "tahrirlangan"
		}
	}`)

	in := newTelegramForTest().DecodeInbound(raw)
	require.NotNil(t, in)
	assert.Equal(t, "tahrirlangan", in.Text)
}

func TestDecodeInboundVoice(t *testing.T) {
	raw := []byte(`{
		"update_id": 3,
		"message": {
			"message_id": 12,
			"chat": {"id": 100, "type": "private"},
			"voice": {"file_id": "voice-abc", "duration": 3}
		}
	}`)

	in := newTelegramForTest().DecodeInbound(raw)
	require.NotNil(t, in)
	assert.Equal(t, models.TypeAudio, in.MessageType)
	assert.Equal(t, "file:voice-abc", in.MediaURL)
}

func TestDecodeInboundPhotoPicksLargest(t *testing.T) {
	raw := []byte(`{
		"update_id": 4,
		"message": {
			"message_id": 13,
			"chat": {"id": 100, "type": "private"},
			"photo": [
				{"file_id": "small", "file_size": 100},
				{"file_id": "big", "file_size": 900},
				{"file_id": "mid", "file_size": 500}
			]
		}
	}`)

	in := newTelegramForTest().DecodeInbound(raw)
	require.NotNil(t, in)
	assert.Equal(t, models.TypeImage, in.MessageType)
	assert.Equal(t, "file:big", in.MediaURL)
}

func TestDecodeInboundPhotoTieLastWins(t *testing.T) {
	raw := []byte(`{
		"update_id": 5,
		"message": {
			"message_id": 14,
			"chat": {"id": 100, "type": "private"},
			"photo": [
				{"file_id": "first", "file_size": 500},
				{"file_id": "second", "file_size": 500}
			]
		}
	}`)

	in := newTelegramForTest().DecodeInbound(raw)
	require.NotNil(t, in)
	assert.Equal(t, "file:second", in.MediaURL)
}

func TestDecodeInboundCallback(t *testing.T) {
	raw := []byte(`{
		"update_id": 6,
		"callback_query": {
			"id": "cb-1",
			"from": {"id": 100, "username": "alisher"},
			"data": "plan_starter"
		}
	}`)

	in := newTelegramForTest().DecodeInbound(raw)
	require.NotNil(t, in)
	assert.True(t, in.IsCallback)
	assert.Equal(t, "cb-1", in.CallbackID)
	assert.Equal(t, "plan_starter", in.CallbackData)
	assert.Equal(t, "100", in.SenderID)
}

func TestDecodeInboundUnrecognized(t *testing.T) {
	tg := newTelegramForTest()
	assert.Nil(t, tg.DecodeInbound([]byte("не json")))
	assert.Nil(t, tg.DecodeInbound([]byte(`{"update_id": 7}`)))
	assert.Nil(t, tg.DecodeInbound([]byte(`{"update_id": 8, "channel_post": {"message_id": 1}}`)))
}

func TestBuildKeyboardRows(t *testing.T) {
	buttons := []Button{
		{Text: "A", CallbackData: "a"},
		{Text: "B", CallbackData: "b"},
		{Text: "C", CallbackData: "c"},
		{Text: "D", CallbackData: "d"},
		{Text: "E", CallbackData: "e"},
	}

	kb := buildKeyboard(buttons)

	require.Len(t, kb.InlineKeyboard, 3)
	assert.Len(t, kb.InlineKeyboard[0], 2)
	assert.Len(t, kb.InlineKeyboard[1], 2)
	assert.Len(t, kb.InlineKeyboard[2], 1)
	assert.Equal(t, "A", kb.InlineKeyboard[0][0].Text)
	require.NotNil(t, kb.InlineKeyboard[2][0].CallbackData)
	assert.Equal(t, "e", *kb.InlineKeyboard[2][0].CallbackData)
}
