package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utkarshgupta188/tgupload/internal/domain/model"
	"github.com/utkarshgupta188/tgupload/internal/repository"
	"github.com/utkarshgupta188/tgupload/internal/service"
	"github.com/utkarshgupta188/tgupload/internal/telegram"
)

// mockRepo — mock репозитория метаданных для тестов handlers.
type mockRepo struct {
	insertFn  func(ctx context.Context, params repository.InsertParams) (*model.FileRecord, error)
	searchFn  func(ctx context.Context, substring string, limit, offset int) ([]*model.FileRecord, int, error)
	getByIDFn func(ctx context.Context, id string) (*model.FileRecord, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (m *mockRepo) Insert(ctx context.Context, params repository.InsertParams) (*model.FileRecord, error) {
	return m.insertFn(ctx, params)
}

func (m *mockRepo) List(ctx context.Context, limit, offset int) ([]*model.FileRecord, int, error) {
	return m.searchFn(ctx, "", limit, offset)
}

func (m *mockRepo) Search(ctx context.Context, substring string, limit, offset int) ([]*model.FileRecord, int, error) {
	return m.searchFn(ctx, substring, limit, offset)
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockRepo) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func (m *mockRepo) Ping(context.Context) error { return nil }

// newTestRouter собирает chi-маршруты файлового API поверх handler.
func newTestRouter(h *FilesHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/files", h.UploadFile)
	r.Get("/api/files", h.ListFiles)
	r.Get("/api/files/{id}", h.GetFile)
	r.Delete("/api/files/{id}", h.DeleteFile)
	r.Get("/api/files/{id}/download", h.DownloadFile)
	return r
}

// newTestHandler создаёт FilesHandler с mock репозиторием и mock Bot API.
func newTestHandler(t *testing.T, repo repository.FileRepository, botAPI *httptest.Server) *FilesHandler {
	t.Helper()
	logger := slog.Default()
	tg := telegram.New(botAPI.URL, "42:TEST", "-100500", 5*time.Second, logger)
	uploadSvc := service.NewUploadService(repo, tg, telegram.MaxFileSize, logger)
	downloadSvc := service.NewDownloadService(repo, tg, logger)
	return NewFilesHandler(uploadSvc, downloadSvc, repo, telegram.MaxFileSize, logger)
}

// sendDocumentResponse — стандартный успешный ответ mock Bot API.
const sendDocumentResponse = `{"ok":true,"result":{"message_id":7,"chat":{"id":-100500},"document":{"file_id":"BQAC-h","file_size":11}}}`

func TestUploadFile_Multipart(t *testing.T) {
	botAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sendDocumentResponse))
	}))
	defer botAPI.Close()

	repo := &mockRepo{
		insertFn: func(_ context.Context, params repository.InsertParams) (*model.FileRecord, error) {
			return &model.FileRecord{
				ID:          uuid.New().String(),
				Name:        params.Name,
				Size:        params.Size,
				ExternalRef: params.ExternalRef,
				CreatedAt:   time.Now().UTC(),
			}, nil
		},
	}

	router := newTestRouter(newTestHandler(t, repo, botAPI))

	// Формируем multipart-тело с частью file
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("CreateFormFile ошибка: %v", err)
	}
	_, _ = io.WriteString(part, "hello world")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, ожидался 201: %s", rec.Code, rec.Body.String())
	}

	var got model.FileRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}
	if got.Name != "notes.txt" {
		t.Errorf("Name = %q, ожидался notes.txt", got.Name)
	}
	if got.ExternalRef != "BQAC-h" {
		t.Errorf("ExternalRef = %q, ожидался BQAC-h", got.ExternalRef)
	}
}

func TestUploadFile_RawBody(t *testing.T) {
	botAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sendDocumentResponse))
	}))
	defer botAPI.Close()

	repo := &mockRepo{
		insertFn: func(_ context.Context, params repository.InsertParams) (*model.FileRecord, error) {
			return &model.FileRecord{ID: uuid.New().String(), Name: params.Name, Size: params.Size,
				ExternalRef: params.ExternalRef, CreatedAt: time.Now().UTC()}, nil
		},
	}

	router := newTestRouter(newTestHandler(t, repo, botAPI))

	req := httptest.NewRequest(http.MethodPost, "/api/files?filename=raw.bin",
		strings.NewReader("hello world"))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, ожидался 201: %s", rec.Code, rec.Body.String())
	}

	var got model.FileRecord
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Name != "raw.bin" {
		t.Errorf("Name = %q, ожидался raw.bin", got.Name)
	}
}

func TestUploadFile_RawBodyWithoutFilename(t *testing.T) {
	botAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer botAPI.Close()

	router := newTestRouter(newTestHandler(t, &mockRepo{}, botAPI))

	req := httptest.NewRequest(http.MethodPost, "/api/files", strings.NewReader("x"))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, ожидался 400", rec.Code)
	}
}

func TestListFiles(t *testing.T) {
	botAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer botAPI.Close()

	var gotQ string
	var gotLimit, gotOffset int
	repo := &mockRepo{
		searchFn: func(_ context.Context, substring string, limit, offset int) ([]*model.FileRecord, int, error) {
			gotQ, gotLimit, gotOffset = substring, limit, offset
			return []*model.FileRecord{
				{ID: uuid.New().String(), Name: "report.pdf", Size: 10, ExternalRef: "r", CreatedAt: time.Now().UTC()},
			}, 1, nil
		},
	}

	router := newTestRouter(newTestHandler(t, repo, botAPI))

	req := httptest.NewRequest(http.MethodGet, "/api/files?q=report&limit=10&offset=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}
	if gotQ != "report" || gotLimit != 10 || gotOffset != 5 {
		t.Errorf("параметры = (%q, %d, %d), ожидались (report, 10, 5)", gotQ, gotLimit, gotOffset)
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ошибка разбора ответа: %v", err)
	}
	if resp.Total != 1 || len(resp.Files) != 1 {
		t.Errorf("total = %d, files = %d, ожидалось по 1", resp.Total, len(resp.Files))
	}
}

func TestListFiles_InvalidPagination(t *testing.T) {
	botAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer botAPI.Close()

	router := newTestRouter(newTestHandler(t, &mockRepo{}, botAPI))

	for _, target := range []string{
		"/api/files?limit=0",
		"/api/files?limit=1001",
		"/api/files?limit=abc",
		"/api/files?offset=-1",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, ожидался 400", target, rec.Code)
		}
	}
}

func TestGetFile_NotFound(t *testing.T) {
	botAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer botAPI.Close()

	repo := &mockRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return nil, repository.ErrNotFound
		},
	}

	router := newTestRouter(newTestHandler(t, repo, botAPI))

	req := httptest.NewRequest(http.MethodGet, "/api/files/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, ожидался 404", rec.Code)
	}
}

func TestGetFile_MalformedID(t *testing.T) {
	botAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer botAPI.Close()

	router := newTestRouter(newTestHandler(t, &mockRepo{}, botAPI))

	req := httptest.NewRequest(http.MethodGet, "/api/files/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, ожидался 400", rec.Code)
	}
}

func TestDeleteFile(t *testing.T) {
	botAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer botAPI.Close()

	deleted := ""
	repo := &mockRepo{
		deleteFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}

	router := newTestRouter(newTestHandler(t, repo, botAPI))

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodDelete, "/api/files/"+id, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, ожидался 204", rec.Code)
	}
	if deleted != id {
		t.Errorf("удалён id = %q, ожидался %q", deleted, id)
	}
}

func TestDownloadFile_RoundTrip(t *testing.T) {
	fileContent := "streamed payload bytes"

	botAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getFile"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"result":{"file_id":"BQAC-h","file_size":22,"file_path":"documents/file_9.bin"}}`))
		case strings.HasPrefix(r.URL.Path, "/file/"):
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = io.WriteString(w, fileContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer botAPI.Close()

	id := uuid.New().String()
	repo := &mockRepo{
		getByIDFn: func(_ context.Context, gotID string) (*model.FileRecord, error) {
			if gotID != id {
				return nil, repository.ErrNotFound
			}
			return &model.FileRecord{
				ID: id, Name: "data.bin", Size: int64(len(fileContent)),
				ExternalRef: "BQAC-h", CreatedAt: time.Now().UTC(),
			}, nil
		},
	}

	router := newTestRouter(newTestHandler(t, repo, botAPI))

	req := httptest.NewRequest(http.MethodGet, "/api/files/"+id+"/download", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}
	if rec.Body.String() != fileContent {
		t.Errorf("тело искажено: %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "data.bin") {
		t.Errorf("Content-Disposition = %q, ожидалось имя data.bin", cd)
	}
}

func TestDownloadFile_NotFound(t *testing.T) {
	botAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer botAPI.Close()

	repo := &mockRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return nil, repository.ErrNotFound
		},
	}

	router := newTestRouter(newTestHandler(t, repo, botAPI))

	req := httptest.NewRequest(http.MethodGet, "/api/files/"+uuid.New().String()+"/download", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, ожидался 404", rec.Code)
	}
}

// TestUploadFile_RawBodyOverLimit проверяет загрузку без Content-Length,
// тело которой превышает лимит: ответ 413 FILE_TOO_LARGE, а не 502.
func TestUploadFile_RawBodyOverLimit(t *testing.T) {
	botAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sendDocumentResponse))
	}))
	defer botAPI.Close()

	insertCalled := false
	repo := &mockRepo{
		insertFn: func(_ context.Context, _ repository.InsertParams) (*model.FileRecord, error) {
			insertCalled = true
			return nil, nil
		},
	}

	// Лимит 1 КиБ, чтобы тело теста оставалось небольшим
	logger := slog.Default()
	tg := telegram.New(botAPI.URL, "42:TEST", "-100500", 5*time.Second, logger)
	uploadSvc := service.NewUploadService(repo, tg, 1<<10, logger)
	h := NewFilesHandler(uploadSvc, service.NewDownloadService(repo, tg, logger), repo, 1<<10, logger)
	router := newTestRouter(h)

	// io.NopCloser скрывает тип тела: httptest.NewRequest выставит
	// ContentLength = -1, как при chunked-загрузке
	body := io.NopCloser(strings.NewReader(strings.Repeat("x", 2<<20)))
	req := httptest.NewRequest(http.MethodPost, "/api/files?filename=big.bin", body)
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("статус = %d, ожидался 413", rec.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode ошибка: %v", err)
	}
	if resp.Error.Code != "FILE_TOO_LARGE" {
		t.Errorf("code = %q, ожидался FILE_TOO_LARGE", resp.Error.Code)
	}
	if insertCalled {
		t.Error("Insert не должен вызываться при превышении лимита")
	}
}

// TestDownloadFile_CDNFailure проверяет отказ CDN после успешного
// разрешения file_id: ответ 502 с нейтральным кодом REMOTE_ERROR.
func TestDownloadFile_CDNFailure(t *testing.T) {
	botAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getFile"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"result":{"file_id":"BQAC-h","file_size":22,"file_path":"documents/file_9.bin"}}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer botAPI.Close()

	id := uuid.New().String()
	repo := &mockRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return &model.FileRecord{
				ID: id, Name: "data.bin", Size: 22,
				ExternalRef: "BQAC-h", CreatedAt: time.Now().UTC(),
			}, nil
		},
	}

	router := newTestRouter(newTestHandler(t, repo, botAPI))

	req := httptest.NewRequest(http.MethodGet, "/api/files/"+id+"/download", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("статус = %d, ожидался 502", rec.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode ошибка: %v", err)
	}
	if resp.Error.Code != "REMOTE_ERROR" {
		t.Errorf("code = %q, ожидался REMOTE_ERROR", resp.Error.Code)
	}
}
