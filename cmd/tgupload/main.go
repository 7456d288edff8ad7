// Точка входа tgupload — личное файловое хранилище поверх Telegram.
// Загружает конфигурацию, подключается к хранилищу метаданных
// (PostgreSQL или встроенный SQLite), применяет миграции, создаёт
// Telegram-клиент и сервисный слой, запускает мониторинг зависимостей
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/utkarshgupta188/tgupload/internal/api/handlers"
	"github.com/utkarshgupta188/tgupload/internal/config"
	"github.com/utkarshgupta188/tgupload/internal/database"
	"github.com/utkarshgupta188/tgupload/internal/repository"
	"github.com/utkarshgupta188/tgupload/internal/server"
	"github.com/utkarshgupta188/tgupload/internal/service"
	"github.com/utkarshgupta188/tgupload/internal/telegram"
)

func main() {
	// .env — удобство локальной разработки, в кластере отсутствует
	_ = godotenv.Load()

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("tgupload запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	ctx := context.Background()

	// 3. Хранилище метаданных: PostgreSQL при заданном TGU_DATABASE_URL,
	// иначе встроенный SQLite
	var (
		repo         repository.FileRepository
		storageCheck *database.ReadinessChecker
		dephealthDB  *sql.DB
		dephealthDSN string
	)

	if cfg.UseSQLite() {
		logger.Info("Режим хранилища: встроенный SQLite",
			slog.String("path", cfg.SQLitePath),
		)

		if err := database.MigrateSQLite(cfg, logger); err != nil {
			logger.Error("Ошибка миграций SQLite", slog.String("error", err.Error()))
			os.Exit(1)
		}

		db, err := database.OpenSQLite(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка открытия SQLite", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()

		repo = repository.NewSQLiteRepository(db)
		storageCheck = database.NewSQLiteReadinessChecker(db)
	} else {
		logger.Info("Режим хранилища: PostgreSQL")

		if err := database.MigratePostgres(cfg, logger); err != nil {
			logger.Error("Ошибка миграций PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err := database.ConnectPostgres(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool
		// mode): проверка здоровья идёт через существующий пул
		dephealthDB = stdlib.OpenDBFromPool(pool)
		defer dephealthDB.Close()
		dephealthDSN = cfg.DatabaseURL

		repo = repository.NewPostgresRepository(pool)
		storageCheck = database.NewPostgresReadinessChecker(pool)
	}

	// 4. Telegram-клиент
	tgClient := telegram.New(cfg.TelegramAPIURL, cfg.BotToken, cfg.ChatID, cfg.TelegramTimeout, logger)
	logger.Info("Telegram-клиент создан",
		slog.String("api_url", cfg.TelegramAPIURL),
		slog.String("chat_id", cfg.ChatID),
	)

	// 5. Сервисный слой
	uploadSvc := service.NewUploadService(repo, tgClient, cfg.MaxFileSize, logger)
	downloadSvc := service.NewDownloadService(repo, tgClient, logger)

	// 6. topologymetrics — мониторинг зависимостей
	serviceID := "tgupload"
	if cfg.DephealthName != "" {
		serviceID = cfg.DephealthName
	}
	dephealthSvc, err := service.NewDephealthService(service.DephealthParams{
		ServiceID:      serviceID,
		Group:          cfg.DephealthGroup,
		DB:             dephealthDB,
		PGConnURL:      dephealthDSN,
		TelegramAPIURL: cfg.TelegramAPIURL,
		BotToken:       cfg.BotToken,
		CheckInterval:  cfg.DephealthCheckInterval,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания мониторинга зависимостей", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := dephealthSvc.Start(ctx); err != nil {
		logger.Error("Ошибка запуска мониторинга зависимостей", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dephealthSvc.Stop()

	// 7. Handlers и HTTP-сервер
	filesHandler := handlers.NewFilesHandler(uploadSvc, downloadSvc, repo, cfg.MaxFileSize, logger)
	healthHandler := handlers.NewHealthHandler(storageCheck)

	srv := server.New(cfg, logger, filesHandler, healthHandler)

	// 8. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Сервер завершился с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("tgupload остановлен")
}
