// Пакет handlers — HTTP-обработчики API tgupload.
// handler.go — общий каркас: конструктор, JSON-ответы, пагинация.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/utkarshgupta188/tgupload/internal/api/errors"
	"github.com/utkarshgupta188/tgupload/internal/repository"
	"github.com/utkarshgupta188/tgupload/internal/service"
)

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	uploadSvc   *service.UploadService
	downloadSvc *service.DownloadService
	repo        repository.FileRepository
	maxFileSize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(
	uploadSvc *service.UploadService,
	downloadSvc *service.DownloadService,
	repo repository.FileRepository,
	maxFileSize int64,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		uploadSvc:   uploadSvc,
		downloadSvc: downloadSvc,
		repo:        repo,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// parsePagination извлекает и валидирует limit/offset из query string.
// При некорректных значениях пишет 400 и возвращает ok=false.
func parsePagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit = 50
	offset = 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 1000 {
			apierrors.ValidationError(w, "Параметр limit должен быть от 1 до 1000")
			return 0, 0, false
		}
		limit = v
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			apierrors.ValidationError(w, "Параметр offset не может быть отрицательным")
			return 0, 0, false
		}
		offset = v
	}

	return limit, offset, true
}
