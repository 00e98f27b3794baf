package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validBot() *Bot {
	return &Bot{
		Platform:    PlatformTelegram,
		Language:    LangUz,
		Temperature: 0.7,
		MaxTokens:   1000,
		Settings:    DefaultSettings(),
	}
}

func TestBotValidate(t *testing.T) {
	assert.NoError(t, validBot().Validate())

	b := validBot()
	b.Temperature = 2.5
	assert.Error(t, b.Validate())

	b = validBot()
	b.MaxTokens = 50
	assert.Error(t, b.Validate())

	b = validBot()
	b.Platform = "viber"
	assert.Error(t, b.Validate())

	b = validBot()
	b.Language = "kz"
	assert.Error(t, b.Validate())
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	assert.NoError(t, s.Validate())

	s.TypingDelay = 11
	assert.Error(t, s.Validate())

	s = DefaultSettings()
	s.MaxContextMessages = 0
	assert.Error(t, s.Validate())
}

func TestFallbackMessage(t *testing.T) {
	b := validBot()
	assert.Equal(t, "Kechirasiz, bu savolga javob topa olmadim.", b.FallbackMessage())

	b.Settings.FallbackMessage = ""
	b.Language = LangRu
	assert.Equal(t, FallbackFor(LangRu), b.FallbackMessage())
}
