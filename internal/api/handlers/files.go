// files.go — HTTP handlers файловых операций.
// Upload, List/Search, Get metadata, Download, Delete.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/utkarshgupta188/tgupload/internal/api/errors"
	"github.com/utkarshgupta188/tgupload/internal/domain/model"
	"github.com/utkarshgupta188/tgupload/internal/repository"
	"github.com/utkarshgupta188/tgupload/internal/service"
)

// listResponse — ответ GET /api/files.
type listResponse struct {
	Files  []*model.FileRecord `json:"files"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// UploadFile обрабатывает POST /api/files.
//
// Два формата тела:
//   - multipart/form-data с частью "file" — имя берётся из части
//   - произвольное тело с query-параметром filename
//
// Данные проксируются в Telegram потоком, без буферизации на диске.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	// Страховка от тел выше лимита при отсутствующем Content-Length.
	// Запас на multipart-заголовки.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+(1<<20))

	contentType := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	var params service.UploadParams

	if strings.HasPrefix(mediaType, "multipart/") {
		// Streaming-разбор multipart: часть "file" передаётся в сервис
		// напрямую, без ParseMultipartForm и временных файлов
		mr, err := r.MultipartReader()
		if err != nil {
			apierrors.ValidationError(w, "Ошибка разбора multipart: "+err.Error())
			return
		}

		part, err := nextFilePart(mr)
		if err != nil {
			apierrors.ValidationError(w, "Часть 'file' обязательна")
			return
		}
		defer part.Close()

		params = service.UploadParams{
			Reader:       part,
			Filename:     part.FileName(),
			ContentType:  partContentType(part.Header.Get("Content-Type")),
			DeclaredSize: -1, // размер части multipart заранее неизвестен
		}
	} else {
		filename := r.URL.Query().Get("filename")
		if filename == "" {
			apierrors.ValidationError(w, "Query-параметр filename обязателен при загрузке без multipart")
			return
		}

		params = service.UploadParams{
			Reader:       r.Body,
			Filename:     filename,
			ContentType:  partContentType(contentType),
			DeclaredSize: r.ContentLength,
		}
	}

	record, uploadErr := h.uploadSvc.Upload(r.Context(), params)
	if uploadErr != nil {
		apierrors.WriteError(w, uploadErr.StatusCode, uploadErr.Code, uploadErr.Message)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// ListFiles обрабатывает GET /api/files.
// Пагинация: limit, offset. Фильтр: q — подстрока имени без учёта регистра.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePagination(w, r)
	if !ok {
		return
	}

	q := r.URL.Query().Get("q")

	records, total, err := h.repo.Search(r.Context(), q, limit, offset)
	if err != nil {
		h.logger.Error("Ошибка получения списка файлов",
			slog.String("q", q),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении списка файлов")
		return
	}

	if records == nil {
		records = []*model.FileRecord{}
	}

	writeJSON(w, http.StatusOK, listResponse{
		Files:  records,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetFile обрабатывает GET /api/files/{id}.
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.fileID(w, r)
	if !ok {
		return
	}

	record, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка получения метаданных файла",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении метаданных файла")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// DownloadFile обрабатывает GET /api/files/{id}/download.
// Свежий URL Telegram разрешается на каждый запрос.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.fileID(w, r)
	if !ok {
		return
	}

	err := h.downloadSvc.Download(r.Context(), w, id)
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, service.ErrRemote):
		h.logger.Error("Ошибка внешнего хранилища при скачивании",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.RemoteError(w, "Внешнее хранилище недоступно")
	default:
		h.logger.Error("Ошибка скачивания файла",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при скачивании файла")
	}
}

// DeleteFile обрабатывает DELETE /api/files/{id}.
// Удаляются только метаданные: документ остаётся в Telegram.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.fileID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка удаления записи файла",
			slog.String("file_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при удалении файла")
		return
	}

	h.logger.Info("Запись файла удалена", slog.String("file_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// fileID извлекает и валидирует UUID из пути запроса.
func (h *FilesHandler) fileID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор файла")
		return "", false
	}
	return id, true
}

// nextFilePart ищет в multipart-потоке часть "file".
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		// Пропускаем посторонние части
		_, _ = io.Copy(io.Discard, part)
		_ = part.Close()
	}
}

// partContentType нормализует Content-Type части.
// Если не указан — application/octet-stream, параметры отбрасываются.
func partContentType(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
