// Package aggregate — repository.go выполняет операции с таблицей reputation.
// Все изменения — инкрементальные UPDATE-ы; добавление инфлюенсера
// в окно — условное SQL-выражение, а не read-modify-write, потому что
// одновременно могут работать несколько процессов сканера.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицей reputation.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий агрегатов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Ensure создаёт нулевую строку агрегатов, если её ещё нет.
func (r *Repository) Ensure(ctx context.Context, handle string) error {
	query := `
		INSERT INTO reputation (handle)
		VALUES ($1)
		ON CONFLICT (handle) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, handle)
	if err != nil {
		return fmt.Errorf("ошибка создания строки агрегатов: %w", err)
	}
	return nil
}

// AddPoints прибавляет очки к итогу и к тем окнам, куда попало время поста.
// in[i] соответствует окнам 1/7/30/90 дней.
func (r *Repository) AddPoints(ctx context.Context, handle string, points int64, in [4]bool) error {
	query := `
		UPDATE reputation
		SET total_points = total_points + $2,
		    points_1d  = points_1d  + CASE WHEN $3 THEN $2 ELSE 0 END,
		    points_7d  = points_7d  + CASE WHEN $4 THEN $2 ELSE 0 END,
		    points_30d = points_30d + CASE WHEN $5 THEN $2 ELSE 0 END,
		    points_90d = points_90d + CASE WHEN $6 THEN $2 ELSE 0 END,
		    updated_at = NOW()
		WHERE handle = $1
	`
	_, err := r.db.Exec(ctx, query, handle, points, in[0], in[1], in[2], in[3])
	if err != nil {
		return fmt.Errorf("ошибка обновления агрегатов: %w", err)
	}
	return nil
}

// appendExpr — условное добавление хэндла в текстовое множество колонки.
// Три ветки: окно не задето — колонка как была; множество пустое — кладём
// хэндл; хэндл уже есть — не трогаем; иначе дописываем через запятую.
// Обрамление запятыми в POSITION исключает совпадение по подстроке.
const appendExpr = `CASE
	WHEN NOT %[2]s THEN %[1]s
	WHEN %[1]s = '' THEN $2
	WHEN POSITION(',' || $2 || ',' IN ',' || %[1]s || ',') > 0 THEN %[1]s
	ELSE %[1]s || ',' || $2
END`

// AppendEndorser дописывает хэндл инфлюенсера в множества заданных окон.
// Идемпотентно: повторное добавление того же хэндла ничего не меняет.
func (r *Repository) AppendEndorser(ctx context.Context, handle, endorser string, in [4]bool) error {
	query := fmt.Sprintf(`
		UPDATE reputation
		SET endorsers_1d  = %s,
		    endorsers_7d  = %s,
		    endorsers_30d = %s,
		    endorsers_90d = %s,
		    updated_at = NOW()
		WHERE handle = $1
	`,
		fmt.Sprintf(appendExpr, "endorsers_1d", "$3"),
		fmt.Sprintf(appendExpr, "endorsers_7d", "$4"),
		fmt.Sprintf(appendExpr, "endorsers_30d", "$5"),
		fmt.Sprintf(appendExpr, "endorsers_90d", "$6"),
	)
	_, err := r.db.Exec(ctx, query, handle, endorser, in[0], in[1], in[2], in[3])
	if err != nil {
		return fmt.Errorf("ошибка добавления инфлюенсера: %w", err)
	}
	return nil
}

// Get возвращает строку агрегатов. Если строки нет — (nil, nil).
// Текстовые множества десериализуются здесь, на границе хранилища.
func (r *Repository) Get(ctx context.Context, handle string) (*Reputation, error) {
	query := `
		SELECT id, handle, total_points,
		       points_1d, points_7d, points_30d, points_90d,
		       endorsers_1d, endorsers_7d, endorsers_30d, endorsers_90d,
		       created_at, updated_at
		FROM reputation
		WHERE handle = $1
	`
	var (
		rep  Reputation
		sets [4]string
	)
	err := r.db.QueryRow(ctx, query, handle).Scan(
		&rep.ID, &rep.Handle, &rep.TotalPoints,
		&rep.Points1d, &rep.Points7d, &rep.Points30d, &rep.Points90d,
		&sets[0], &sets[1], &sets[2], &sets[3],
		&rep.CreatedAt, &rep.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка получения агрегатов: %w", err)
	}
	rep.Endorsers1d = ParseHandleSet(sets[0])
	rep.Endorsers7d = ParseHandleSet(sets[1])
	rep.Endorsers30d = ParseHandleSet(sets[2])
	rep.Endorsers90d = ParseHandleSet(sets[3])
	return &rep, nil
}

// SetTotal записывает пересчитанный из журнала итог (самовосстановление).
func (r *Repository) SetTotal(ctx context.Context, handle string, total int64) error {
	query := `
		UPDATE reputation
		SET total_points = $2, updated_at = NOW()
		WHERE handle = $1
	`
	_, err := r.db.Exec(ctx, query, handle, total)
	if err != nil {
		return fmt.Errorf("ошибка записи итога: %w", err)
	}
	return nil
}

// Top возвращает первые n аккаунтов по кэшированному итогу.
func (r *Repository) Top(ctx context.Context, n int) ([]*TopEntry, error) {
	query := `
		SELECT handle, total_points
		FROM reputation
		ORDER BY total_points DESC, handle
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения лидерборда: %w", err)
	}
	defer rows.Close()

	var top []*TopEntry
	for rows.Next() {
		var t TopEntry
		if err := rows.Scan(&t.Handle, &t.Total); err != nil {
			return nil, fmt.Errorf("ошибка сканирования лидерборда: %w", err)
		}
		top = append(top, &t)
	}
	return top, rows.Err()
}
