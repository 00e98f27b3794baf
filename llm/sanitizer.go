package llm

import (
	"regexp"
	"strings"
)

// Telegram в режиме parse_mode=HTML принимает только узкий набор тегов;
// всё остальное из ответа модели вырезаем.
var allowedTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true,
	"code": true, "pre": true, "a": true,
}

var tagRe = regexp.MustCompile(`</?([a-zA-Z][a-zA-Z0-9]*)[^>]*>`)

// markdownFence вычищает ограждения ```...```, которые Gemini любит
// добавлять вокруг ответа целиком.
var markdownFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\n?(.*?)\n?```$")

// SanitizeHTML оставляет в тексте только теги, понятные Telegram.
func SanitizeHTML(text string) string {
	text = strings.TrimSpace(text)
	if m := markdownFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	return tagRe.ReplaceAllStringFunc(text, func(tag string) string {
		name := strings.ToLower(tagRe.FindStringSubmatch(tag)[1])
		if allowedTags[name] {
			return tag
		}
		return ""
	})
}
