// Пакет service — бизнес-логика tgupload.
// upload.go — сервис relay-загрузки файлов в Telegram.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/utkarshgupta188/tgupload/internal/api/errors"
	"github.com/utkarshgupta188/tgupload/internal/domain/model"
	"github.com/utkarshgupta188/tgupload/internal/repository"
	"github.com/utkarshgupta188/tgupload/internal/telegram"
)

// Prometheus-метрики upload.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tgu_uploads_total",
		Help: "Общее количество загрузок (по статусу).",
	}, []string{"status"})

	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tgu_upload_duration_seconds",
		Help:    "Длительность relay-загрузки (от запроса до записи метаданных).",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgu_upload_bytes_total",
		Help: "Общее количество переданных байт при загрузке.",
	})

	activeUploads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tgu_active_uploads",
		Help: "Количество активных (in-progress) загрузок.",
	})
)

// UploadParams — параметры relay-загрузки файла.
type UploadParams struct {
	// Reader — поток данных файла от клиента
	Reader io.Reader
	// Filename — имя файла, как прислал клиент
	Filename string
	// ContentType — MIME-тип файла
	ContentType string
	// DeclaredSize — заявленный размер (Content-Length или размер multipart part);
	// -1, если размер неизвестен
	DeclaredSize int64
}

// UploadError — ошибка загрузки с HTTP-кодом.
type UploadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UploadService — сервис relay-загрузки файлов в Telegram.
// Данные проксируются потоком, без буферизации на диске.
// Запись метаданных создаётся только после подтверждения Telegram.
type UploadService struct {
	repo        repository.FileRepository
	tg          *telegram.Client
	maxFileSize int64
	logger      *slog.Logger
}

// NewUploadService создаёт сервис relay-загрузки.
func NewUploadService(repo repository.FileRepository, tg *telegram.Client, maxFileSize int64, logger *slog.Logger) *UploadService {
	return &UploadService{
		repo:        repo,
		tg:          tg,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "upload_service")),
	}
}

// Upload выполняет полный pipeline relay-загрузки файла.
//
// Поток:
//  1. Валидация имени и заявленного размера
//  2. Streaming-отправка в Telegram (io.Pipe, без буферизации)
//  3. Запись метаданных по подтверждённому file_id
//
// При обрыве потока или отказе Telegram запись метаданных не создаётся.
func (s *UploadService) Upload(ctx context.Context, params UploadParams) (*model.FileRecord, *UploadError) {
	start := time.Now()
	activeUploads.Inc()
	defer activeUploads.Dec()

	// 1. Валидация
	if params.Filename == "" {
		uploadsTotal.WithLabelValues("validation_error").Inc()
		return nil, &UploadError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Имя файла не указано",
		}
	}
	if params.DeclaredSize > s.maxFileSize {
		uploadsTotal.WithLabelValues("too_large").Inc()
		return nil, &UploadError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", params.DeclaredSize, s.maxFileSize),
		}
	}

	// 2. Streaming-отправка в Telegram. Счётчик фиксирует фактически
	// переданные байты — Content-Length может отсутствовать.
	counter := &countingReader{r: params.Reader}
	declared := params.DeclaredSize
	if declared < 0 {
		declared = 0
	}
	res, err := s.tg.SendDocument(ctx, params.Filename, params.ContentType, declared, counter)
	if err != nil {
		s.logger.Error("Ошибка отправки документа в Telegram",
			slog.String("filename", params.Filename),
			slog.Int64("bytes_sent", counter.n),
			slog.String("error", err.Error()),
		)
		// Тело выше лимита без Content-Length обрывается MaxBytesReader
		// уже в процессе чтения: это ошибка клиента, а не Telegram.
		var maxBytes *http.MaxBytesError
		if errors.As(counter.err, &maxBytes) || errors.Is(err, telegram.ErrTooLarge) {
			uploadsTotal.WithLabelValues("too_large").Inc()
			return nil, &UploadError{
				StatusCode: 413,
				Code:       apierrors.CodeFileTooLarge,
				Message:    fmt.Sprintf("Размер файла превышает максимум %d байт", s.maxFileSize),
			}
		}
		uploadsTotal.WithLabelValues("remote_error").Inc()
		return nil, &UploadError{
			StatusCode: 502,
			Code:       apierrors.CodeRemoteUploadError,
			Message:    "Ошибка загрузки документа во внешнее хранилище",
		}
	}

	// Telegram может сообщить точный размер; при отсутствии берём счётчик
	size := res.FileSize
	if size <= 0 {
		size = counter.n
	}

	// 3. Запись метаданных. Документ уже подтверждён Telegram —
	// отказ БД означает потерянную ссылку, логируем file_id.
	record, err := s.repo.Insert(ctx, repository.InsertParams{
		Name:        params.Filename,
		Size:        size,
		ExternalRef: res.FileID,
		ChatID:      res.ChatID,
		MessageID:   res.MessageID,
	})
	if err != nil {
		uploadsTotal.WithLabelValues("db_error").Inc()
		s.logger.Error("Документ отправлен, но метаданные не записаны",
			slog.String("filename", params.Filename),
			slog.String("external_ref", res.FileID),
			slog.String("error", err.Error()),
		)
		return nil, &UploadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка записи метаданных файла",
		}
	}

	duration := time.Since(start)
	uploadsTotal.WithLabelValues("success").Inc()
	uploadDuration.Observe(duration.Seconds())
	uploadBytesTotal.Add(float64(counter.n))

	s.logger.Info("Файл загружен",
		slog.String("file_id", record.ID),
		slog.String("filename", record.Name),
		slog.Int64("size", record.Size),
		slog.String("external_ref", record.ExternalRef),
		slog.Duration("duration", duration),
	)

	return record, nil
}

// countingReader считает байты, прочитанные из обёрнутого reader,
// и запоминает ошибку чтения. Streaming-клиент может переупаковать
// ошибку тела запроса, поэтому исходная причина сохраняется здесь.
type countingReader struct {
	r   io.Reader
	n   int64
	err error
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if err != nil && err != io.EOF {
		c.err = err
	}
	return n, err
}
