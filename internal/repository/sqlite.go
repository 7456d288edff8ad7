// sqlite.go — реализация FileRepository поверх встроенной SQLite
// (database/sql + mattn/go-sqlite3). Используется, когда TGU_DATABASE_URL
// не задан: нулевая внешняя инфраструктура для персонального развёртывания.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utkarshgupta188/tgupload/internal/domain/model"
)

// sqliteTimeLayout — формат created_at в SQLite. Фиксированная ширина
// дробной части: лексикографический порядок строк совпадает с хронологическим,
// что требуется для ORDER BY created_at.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteRepo — реализация FileRepository через database/sql.
type sqliteRepo struct {
	db *sql.DB
}

// NewSQLiteRepository создаёт репозиторий файлов поверх SQLite.
func NewSQLiteRepository(db *sql.DB) FileRepository {
	return &sqliteRepo{db: db}
}

func (r *sqliteRepo) Insert(ctx context.Context, params InsertParams) (*model.FileRecord, error) {
	if err := validateInsert(params); err != nil {
		return nil, err
	}

	rec := &model.FileRecord{
		ID:          uuid.New().String(),
		Name:        params.Name,
		Size:        params.Size,
		ExternalRef: params.ExternalRef,
		ChatID:      params.ChatID,
		MessageID:   params.MessageID,
		CreatedAt:   time.Now().UTC(),
	}

	query := `
		INSERT INTO files (id, name, size, external_ref, chat_id, message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.Size, rec.ExternalRef,
		nullString(rec.ChatID), nullInt64(rec.MessageID),
		rec.CreatedAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка вставки записи файла: %w", err)
	}
	return rec, nil
}

func (r *sqliteRepo) List(ctx context.Context, limit, offset int) ([]*model.FileRecord, int, error) {
	return r.Search(ctx, "", limit, offset)
}

func (r *sqliteRepo) Search(ctx context.Context, substring string, limit, offset int) ([]*model.FileRecord, int, error) {
	limit, offset = normalizeLimit(limit, offset)

	where := ""
	args := []any{}
	if substring != "" {
		// LOWER + LIKE вместо ILIKE: переносимый case-insensitive поиск
		where = "WHERE LOWER(name) LIKE LOWER(?)"
		args = append(args, "%"+substring+"%")
	}

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM files %s ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		fileColumns, where,
	)
	dataArgs := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataQuery, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка поиска файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		rec, scanErr := scanSQLiteRecord(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования файла: %w", scanErr)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM files %s`, where)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}

	return result, total, nil
}

func (r *sqliteRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = ?`, fileColumns)

	rec, err := scanSQLiteRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return rec, nil
}

func (r *sqliteRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("SQLite недоступна: %w", err)
	}
	return nil
}

// sqlRow — общий интерфейс *sql.Row и *sql.Rows для сканирования.
type sqlRow interface {
	Scan(dest ...any) error
}

// scanSQLiteRecord сканирует одну строку в FileRecord.
func scanSQLiteRecord(row sqlRow) (*model.FileRecord, error) {
	rec := &model.FileRecord{}
	var chatID sql.NullString
	var messageID sql.NullInt64
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Size, &rec.ExternalRef,
		&chatID, &messageID, &createdAt); err != nil {
		return nil, err
	}
	if chatID.Valid {
		rec.ChatID = chatID.String
	}
	if messageID.Valid {
		rec.MessageID = messageID.Int64
	}
	t, err := time.Parse(sqliteTimeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("некорректный created_at %q: %w", createdAt, err)
	}
	rec.CreatedAt = t
	return rec, nil
}
