// postgres.go — реализация FileRepository поверх PostgreSQL через pgx.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utkarshgupta188/tgupload/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `id, name, size, external_ref, chat_id, message_id, created_at`

// postgresRepo — реализация FileRepository через pgx.
type postgresRepo struct {
	db DBTX
}

// NewPostgresRepository создаёт репозиторий файлов поверх PostgreSQL.
func NewPostgresRepository(db DBTX) FileRepository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) Insert(ctx context.Context, params InsertParams) (*model.FileRecord, error) {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.Name, rec.Size, rec.ExternalRef,
		nullString(rec.ChatID), nullInt64(rec.MessageID), rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка вставки записи файла: %w", err)
	}
	return rec, nil
}

func (r *postgresRepo) List(ctx context.Context, limit, offset int) ([]*model.FileRecord, int, error) {
	return r.Search(ctx, "", limit, offset)
}

func (r *postgresRepo) Search(ctx context.Context, substring string, limit, offset int) ([]*model.FileRecord, int, error) {
	limit, offset = normalizeLimit(limit, offset)

	where := ""
	args := []any{}
	argNum := 1
	if substring != "" {
		// ILIKE подстрока, без учёта регистра
		where = fmt.Sprintf("WHERE name ILIKE $%d", argNum)
		args = append(args, "%"+substring+"%")
		argNum++
	}

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM files %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		fileColumns, where, argNum, argNum+1,
	)
	dataArgs := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.Query(ctx, dataQuery, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка поиска файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		rec, scanErr := scanPgRecord(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования файла: %w", scanErr)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	// Общее количество с теми же фильтрами, без LIMIT/OFFSET
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM files %s`, where)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}

	return result, total, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)

	rec, err := scanPgRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return rec, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("PostgreSQL недоступен: %w", err)
	}
	return nil
}

// scanPgRecord сканирует одну строку в FileRecord, разворачивая NULL-поля.
func scanPgRecord(row pgx.Row) (*model.FileRecord, error) {
	rec := &model.FileRecord{}
	var chatID *string
	var messageID *int64
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Size, &rec.ExternalRef,
		&chatID, &messageID, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if chatID != nil {
		rec.ChatID = *chatID
	}
	if messageID != nil {
		rec.MessageID = *messageID
	}
	return rec, nil
}

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullInt64 возвращает nil для нулевого значения (NULL в БД).
func nullInt64(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
