package llm

import (
	"fmt"
	"strings"

	"botfactory/models"
)

// historyWindow — сколько последних реплик попадает в промпт.
const historyWindow = 10

// defaultPrompts — системные промпты по умолчанию для каждого языка.
var defaultPrompts = map[models.BotLanguage]string{
	models.LangUz: `Sen BotFactory AI yordamchisissan. Foydalanuvchilarga professional va samimiy tarzda yordam berasan.

Qoidalar:
- O'zbek tilida javob ber
- Qisqa va aniq javoblar ber
- Foydalanuvchiga yordam berishga harakat qil
- Noaniq savollar uchun aniqlik so'ra`,

	models.LangRu: `Ты AI-помощник BotFactory. Помогай пользователям профессионально и дружелюбно.

Правила:
- Отвечай на русском языке
- Давай краткие и точные ответы
- Старайся помочь пользователю
- При неясных вопросах проси уточнения`,

	models.LangEn: `You are BotFactory AI assistant. Help users professionally and friendly.

Rules:
- Respond in English
- Give concise and accurate answers
- Try to help the user
- Ask for clarification on unclear questions`,
}

// BuildPrompt собирает линейный промпт: системный блок, контекст из базы
// знаний, последние реплики и текущее сообщение.
func BuildPrompt(message, context string, history []models.HistoryTurn, systemPrompt string, language models.BotLanguage) string {
	prompt := systemPrompt
	if prompt == "" {
		var ok bool
		prompt, ok = defaultPrompts[language]
		if !ok {
			prompt = defaultPrompts[models.LangUz]
		}
	}

	parts := []string{fmt.Sprintf("SYSTEM: %s", prompt)}

	if context != "" {
		parts = append(parts, fmt.Sprintf("\nKONTEKST (bilimlar bazasidan):\n%s", context))
	}

	if len(history) > 0 {
		if len(history) > historyWindow {
			history = history[len(history)-historyWindow:]
		}
		parts = append(parts, "\nOLDINGI SUHBAT:")
		for _, turn := range history {
			role := "Yordamchi"
			if turn.Role == string(models.RoleUser) {
				role = "Foydalanuvchi"
			}
			parts = append(parts, fmt.Sprintf("%s: %s", role, turn.Content))
		}
	}

	parts = append(parts, fmt.Sprintf("\nFoydalanuvchi: %s", message))
	parts = append(parts, "\nYordamchi:")

	return strings.Join(parts, "\n")
}

// FallbackResponse — заглушка при сбое генерации.
func FallbackResponse(lang models.BotLanguage) string {
	return models.FallbackFor(lang)
}
