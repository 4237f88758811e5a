// Package ingest читает нормализованные посты из таблицы posts.
// Таблицу наполняет внешний коллаборатор сбора данных; сканер только
// читает её за окно времени. Повторное сканирование одного окна
// безопасно — дедупликацию несут журнал и квоты, не этот слой.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/reputation-scanner/internal/features/mentions"
)

// Repository работает с таблицей posts.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий постов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Fetch возвращает посты с временем публикации в [since, until).
// Реализует scan.PostSource.
func (r *Repository) Fetch(ctx context.Context, since, until time.Time) ([]*mentions.Post, error) {
	query := `
		SELECT id, author_handle, author_external_id, author_followers, text,
		       posted_at, is_repost, is_quote, quoted_author, is_reply,
		       mentions, views, likes, reposts, replies
		FROM posts
		WHERE posted_at >= $1 AND posted_at < $2
		ORDER BY posted_at
	`
	rows, err := r.db.Query(ctx, query, since, until)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки постов: %w", err)
	}
	defer rows.Close()

	var posts []*mentions.Post
	for rows.Next() {
		var (
			p        mentions.Post
			rawMents []byte
		)
		err := rows.Scan(
			&p.ID, &p.AuthorHandle, &p.AuthorExternalID, &p.AuthorFollowers,
			&p.Text, &p.PostedAt, &p.IsRepost, &p.IsQuote, &p.QuotedAuthor,
			&p.IsReply, &rawMents, &p.Views, &p.Likes, &p.Reposts, &p.Replies,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования поста: %w", err)
		}
		// Разметка упоминаний хранится JSONB-колонкой как есть,
		// в формате классификатора
		if len(rawMents) > 0 {
			if err := json.Unmarshal(rawMents, &p.Mentions); err != nil {
				return nil, fmt.Errorf("ошибка разбора упоминаний поста %s: %w", p.ID, err)
			}
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

// Save сохраняет пост (для коллаборатора сбора и для тестовых наполнений).
// Повторное сохранение того же id обновляет счётчики вовлечённости.
func (r *Repository) Save(ctx context.Context, p *mentions.Post) error {
	rawMents, err := json.Marshal(p.Mentions)
	if err != nil {
		return fmt.Errorf("ошибка сериализации упоминаний: %w", err)
	}

	query := `
		INSERT INTO posts
			(id, author_handle, author_external_id, author_followers, text,
			 posted_at, is_repost, is_quote, quoted_author, is_reply,
			 mentions, views, likes, reposts, replies)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE
		SET views = EXCLUDED.views,
		    likes = EXCLUDED.likes,
		    reposts = EXCLUDED.reposts,
		    replies = EXCLUDED.replies
	`
	_, err = r.db.Exec(ctx, query,
		p.ID, p.AuthorHandle, p.AuthorExternalID, p.AuthorFollowers, p.Text,
		p.PostedAt, p.IsRepost, p.IsQuote, p.QuotedAuthor, p.IsReply,
		rawMents, p.Views, p.Likes, p.Reposts, p.Replies,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения поста: %w", err)
	}
	return nil
}
