// Пакет database — подключение к хранилищу метаданных (PostgreSQL через
// pgxpool или встроенная SQLite), применение миграций (golang-migrate)
// и проверка готовности.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"

	"github.com/utkarshgupta188/tgupload/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// ConnectPostgres создаёт пул подключений к PostgreSQL.
// Выполняет ping для проверки доступности.
func ConnectPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	// Проверяем подключение
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("database", poolCfg.ConnConfig.Database),
		slog.String("host", poolCfg.ConnConfig.Host),
	)

	return pool, nil
}

// MigratePostgres применяет SQL-миграции PostgreSQL из embedded FS.
func MigratePostgres(cfg *config.Config, logger *slog.Logger) error {
	return runMigrations("migrations/postgres", migrateURLFromDSN(cfg.DatabaseURL), logger)
}

// ensureSQLiteDir создаёт директорию файла SQLite, если её ещё нет.
// Нужна и миграциям, и открытию: порядок вызовов в main не фиксирован.
func ensureSQLiteDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ошибка создания директории БД: %w", err)
		}
	}
	return nil
}

// OpenSQLite открывает (и при необходимости создаёт) файл SQLite.
// Директория файла создаётся автоматически.
func OpenSQLite(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	if err := ensureSQLiteDir(cfg.SQLitePath); err != nil {
		return nil, err
	}

	// _busy_timeout: параллельные вставки ждут блокировку, а не падают
	db, err := sql.Open("sqlite3", cfg.SQLitePath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка подключения к SQLite: %w", err)
	}

	logger.Info("Встроенная SQLite открыта",
		slog.String("path", cfg.SQLitePath),
	)

	return db, nil
}

// MigrateSQLite применяет SQL-миграции SQLite из embedded FS.
// На свежей установке файла БД (и его директории) ещё нет — создаём
// директорию до запуска миграций, иначе драйвер не откроет файл.
func MigrateSQLite(cfg *config.Config, logger *slog.Logger) error {
	if err := ensureSQLiteDir(cfg.SQLitePath); err != nil {
		return err
	}
	return runMigrations("migrations/sqlite", "sqlite3://"+cfg.SQLitePath, logger)
}

// runMigrations применяет миграции из embedded FS по указанному URL БД.
func runMigrations(dir, dbURL string, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)

	return nil
}

// migrateURLFromDSN приводит DSN к схеме pgx5://, которую ожидает
// драйвер golang-migrate. Supabase и Render выдают postgres://.
func migrateURLFromDSN(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"):
		return "pgx5://" + strings.TrimPrefix(dsn, "postgres://")
	case strings.HasPrefix(dsn, "postgresql://"):
		return "pgx5://" + strings.TrimPrefix(dsn, "postgresql://")
	default:
		return dsn
	}
}

// ReadinessChecker — проверка готовности хранилища для health endpoint.
// Реализует интерфейс handlers.StorageReadinessChecker.
type ReadinessChecker struct {
	ping func(ctx context.Context) error
	name string
}

// NewPostgresReadinessChecker создаёт проверку готовности PostgreSQL.
func NewPostgresReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{ping: pool.Ping, name: "PostgreSQL"}
}

// NewSQLiteReadinessChecker создаёт проверку готовности SQLite.
func NewSQLiteReadinessChecker(db *sql.DB) *ReadinessChecker {
	return &ReadinessChecker{ping: db.PingContext, name: "SQLite"}
}

// CheckReady проверяет подключение к хранилищу через ping.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		return "fail", fmt.Sprintf("%s недоступна: %v", c.name, err)
	}
	return "ok", "подключение активно"
}
