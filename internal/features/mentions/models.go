// Package mentions определяет, кому адресовано публичное упоминание.
// models.go описывает нормализованный пост, который поставляет коллаборатор
// сбора данных. Разбор текста на упоминания делает внешний классификатор:
// мы доверяем его разметке и не перепарсиваем текст сами.
package mentions

import "time"

// Mention — одно упоминание из классификатора.
// JSON-теги соответствуют формату, в котором коллаборатор сбора
// складывает разметку в колонку posts.mentions.
type Mention struct {
	Handle string `json:"handle"`
	// InBody: автор набрал упоминание сам, в теле поста.
	// false — упоминание перенесено автоподстановкой из цепочки ответов.
	InBody bool `json:"in_body"`
}

// Post — нормализованный пост социальной сети.
// Сканер читает эту структуру и никогда её не изменяет.
type Post struct {
	ID               string
	AuthorHandle     string
	AuthorExternalID *int64 // числовой id платформы, если известен
	AuthorFollowers  int64
	Text             string
	PostedAt         time.Time

	IsRepost     bool
	IsQuote      bool
	QuotedAuthor string // хэндл автора цитируемого поста
	IsReply      bool

	Mentions []Mention

	// Счётчики вовлечённости
	Views   int64
	Likes   int64
	Reposts int64
	Replies int64
}

// Resolution — результат разбора поста.
type Resolution struct {
	Eligible  bool
	Reason    string // почему пост пропущен (для debug-логов)
	Recipient string // нормализованный хэндл получателя
	Author    *Author
	// Сколько строк аккаунтов создано лениво этим разбором (0..2)
	NewAccounts int
}

// Author — авторитет автора поста на момент разбора.
type Author struct {
	Handle     string
	Multiplier int
	Influencer bool
}
