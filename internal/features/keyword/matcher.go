// Package keyword — matcher.go: чистые проверки квалификации поста.
package keyword

import (
	"fmt"
	"strings"

	"serotonyl.ru/reputation-scanner/internal/features/mentions"
)

// BonusNote возвращает текст заметки бонусной записи журнала.
// По этому шаблону бонусный путь ищет свои прежние начисления
// при дневной дедупликации — формат менять нельзя без миграции.
func BonusNote(word string) string {
	return fmt.Sprintf("бонус за слово дня: %s", strings.ToLower(word))
}

// ContainsWord проверяет, содержит ли текст слово без учёта регистра.
func ContainsWord(text, word string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(word))
}

// MentionsHandle проверяет, упомянут ли в тексте хэндл площадки.
// Посты с таким упоминанием идут через путь упоминаний и к бонусу
// за слово дня не допускаются — двойного вознаграждения за один пост
// быть не должно. Это явное правило, а не случайная строковая проверка.
func MentionsHandle(text, handle string) bool {
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(handle))
}

// Qualifies проверяет пост против активного слова дня:
// совпадение текста, дата поста не раньше активации, достаточно просмотров.
// Посты, предшествующие активации, не подходят НИКОГДА — даже если
// обрабатываются после неё.
func Qualifies(post *mentions.Post, kw *Keyword, minViews int64) bool {
	if !ContainsWord(post.Text, kw.Word) {
		return false
	}
	if post.PostedAt.Before(kw.ActiveOn) {
		return false
	}
	if post.Views < minViews {
		return false
	}
	return true
}
