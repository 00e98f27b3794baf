// Package llm — генерация ответов и эмбеддингов через Google Gemini.
package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"botfactory/apperr"
	"botfactory/logging"
	"botfactory/models"
)

// GenerateRequest — входные данные одной генерации.
type GenerateRequest struct {
	Message      string
	Context      string
	History      []models.HistoryTurn // старые первыми
	SystemPrompt string
	Language     models.BotLanguage
	Temperature  float64
	MaxTokens    int
}

// Client ходит в Gemini API.
type Client struct {
	genai      *genai.Client
	model      string
	embedModel string
	timeout    time.Duration
}

// NewClient создаёт клиента Gemini. Пустой ключ — ошибка конфигурации.
func NewClient(ctx context.Context, apiKey, model, embedModel string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, apperr.Validation("GOOGLE_API_KEY sozlanmagan")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, apperr.ExternalService("Gemini AI", err)
	}
	logging.AI.Info("Gemini клиент готов", zap.String("model", model))
	return &Client{genai: gc, model: model, embedModel: embedModel, timeout: timeout}, nil
}

// Generate строит промпт и генерирует ответ. Никогда не возвращает
// ошибку наружу: при сбое или пустом ответе отдаёт заглушку на языке бота.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temp := clampTemperature(req.Temperature)
	tokens := clampMaxTokens(req.MaxTokens)
	prompt := BuildPrompt(req.Message, req.Context, req.History, req.SystemPrompt, req.Language)

	resp, err := c.genai.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(temp)),
			MaxOutputTokens: int32(tokens),
		})
	if err != nil {
		logging.AI.Error("генерация не удалась", zap.Error(err))
		return FallbackResponse(req.Language)
	}
	text := resp.Text()
	if text == "" {
		logging.AI.Warn("пустой ответ от Gemini")
		return FallbackResponse(req.Language)
	}
	return text
}

// Embed считает эмбеддинг текста для семантического поиска.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := c.genai.Models.EmbedContent(ctx, c.embedModel, contents,
		&genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"})
	if err != nil {
		return nil, apperr.ExternalService("Gemini AI", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, apperr.ExternalService("Gemini AI", nil)
	}
	return result.Embeddings[0].Values, nil
}

func clampTemperature(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 2 {
		return 2
	}
	return t
}

func clampMaxTokens(n int) int {
	if n < 100 {
		return 100
	}
	if n > 4000 {
		return 4000
	}
	return n
}
