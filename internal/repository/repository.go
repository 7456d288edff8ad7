// Пакет repository — слой доступа к метаданным файлов.
// Два равноценных бэкенда за одним интерфейсом: PostgreSQL (pgx) и
// встроенная SQLite; вызывающий код не наблюдает, какой из них выбран.
// Все запросы — чистый SQL, без ORM.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utkarshgupta188/tgupload/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrInvalid — некорректные параметры вставки.
	ErrInvalid = errors.New("некорректные параметры записи")
)

// InsertParams — параметры создания записи файла.
// ID и CreatedAt генерирует репозиторий.
type InsertParams struct {
	// Name — имя файла, как прислал клиент
	Name string
	// Size — размер файла в байтах (>= 0)
	Size int64
	// ExternalRef — стабильный идентификатор документа в Telegram (непустой)
	ExternalRef string
	// ChatID — чат, куда отправлен документ (опционально)
	ChatID string
	// MessageID — сообщение с документом (опционально, 0 — не задано)
	MessageID int64
}

// FileRepository — интерфейс доступа к метаданным файлов.
// Записи неизменяемы после создания: только insert, чтение, delete.
type FileRepository interface {
	// Insert создаёт запись с новым UUID и временем создания.
	// Возвращает ErrInvalid при отрицательном Size или пустом ExternalRef.
	Insert(ctx context.Context, params InsertParams) (*model.FileRecord, error)
	// List возвращает страницу записей (created_at DESC) и общее количество.
	List(ctx context.Context, limit, offset int) ([]*model.FileRecord, int, error)
	// Search возвращает записи, имя которых содержит substring без учёта
	// регистра. Пустой substring эквивалентен List.
	Search(ctx context.Context, substring string, limit, offset int) ([]*model.FileRecord, int, error)
	// GetByID возвращает запись по UUID или ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	// Delete удаляет только строку метаданных (документ остаётся в Telegram).
	// Возвращает ErrNotFound, если записи нет.
	Delete(ctx context.Context, id string) error
	// Ping проверяет доступность хранилища (для readiness probe).
	Ping(ctx context.Context) error
}

// DBTX — интерфейс для выполнения SQL-запросов через pgx.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозиторий как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// validateInsert проверяет инварианты вставки, общие для всех бэкендов.
func validateInsert(params InsertParams) error {
	if params.Size < 0 {
		return ErrInvalid
	}
	if params.ExternalRef == "" {
		return ErrInvalid
	}
	return nil
}

// normalizeLimit приводит limit/offset к допустимым значениям.
// Значения по умолчанию и потолок — те же, что в HTTP-слое.
func normalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
