// Пакет telegram — HTTP-клиент Telegram Bot API для хранения документов.
// Переводит локальный байтовый поток в исходящий multipart-запрос
// sendDocument и стабильный file_id — в короткоживущий URL скачивания
// через getFile. Собственного долговременного состояния пакет не имеет:
// владелец байтов — Telegram.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// MaxFileSize — потолок размера документа в Telegram (2 GiB).
// Проверяется по заявленному размеру до открытия соединения,
// чтобы не тратить трафик на заведомо неудачную передачу.
const MaxFileSize int64 = 2 << 30

// Ошибки адаптера Telegram.
var (
	// ErrUpload — Telegram не принял документ (сеть или не-ok ответ).
	ErrUpload = errors.New("Telegram не принял документ")
	// ErrResolve — file_id неизвестен Telegram (ротация или истечение).
	ErrResolve = errors.New("документ не найден в Telegram")
	// ErrTooLarge — заявленный размер превышает потолок Telegram.
	ErrTooLarge = errors.New("размер файла превышает потолок Telegram")
)

// SendResult — результат успешной отправки документа.
type SendResult struct {
	// FileID — стабильный идентификатор документа (external_ref)
	FileID string
	// FileSize — размер по данным Telegram (0, если не сообщён)
	FileSize int64
	// ChatID — чат, куда отправлен документ
	ChatID string
	// MessageID — сообщение с документом
	MessageID int64
}

// Client — HTTP-клиент Telegram Bot API.
type Client struct {
	// apiClient — клиент для коротких JSON-вызовов (getFile), с таймаутом
	apiClient *http.Client
	// streamClient — клиент для потоковых передач (sendDocument, CDN).
	// Без общего таймаута: длительность передачи ограничена размером
	// файла и каналом клиента, обрыв обрабатывается через контекст.
	streamClient *http.Client
	baseURL      string
	fileBaseURL  string
	chatID       string
	logger       *slog.Logger
}

// New создаёт клиент Bot API.
// apiURL — базовый URL Bot API (https://api.telegram.org или локальный сервер).
// timeout — таймаут JSON-вызовов (TGU_TELEGRAM_TIMEOUT).
func New(apiURL, token, chatID string, timeout time.Duration, logger *slog.Logger) *Client {
	base := strings.TrimRight(apiURL, "/")

	transport := &http.Transport{
		// Пул idle-соединений для переиспользования между передачами
		MaxIdleConnsPerHost: 10,
		DialContext: (&net.Dialer{
			Timeout: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &Client{
		apiClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		streamClient: &http.Client{
			Transport: transport,
		},
		baseURL:     base + "/bot" + token,
		fileBaseURL: base + "/file/bot" + token,
		chatID:      chatID,
		logger:      logger.With(slog.String("component", "telegram_client")),
	}
}

// apiEnvelope — стандартный конверт ответа Bot API.
type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// sentMessage — интересующая часть результата sendDocument.
type sentMessage struct {
	MessageID int64 `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Document struct {
		FileID   string `json:"file_id"`
		FileSize int64  `json:"file_size"`
	} `json:"document"`
}

// fileInfo — результат getFile.
type fileInfo struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

// SendDocument отправляет документ в настроенный чат потоковым
// multipart-запросом: байты из r пишутся в исходящее соединение по мере
// чтения, в памяти держится не более одного буфера конвейера.
//
// declaredSize — заявленный размер (Content-Length клиента); при
// превышении потолка возвращается ErrTooLarge без открытия соединения.
// Ошибка чтения r (обрыв клиента) прерывает исходящий запрос.
func (c *Client) SendDocument(ctx context.Context, filename, contentType string, declaredSize int64, r io.Reader) (*SendResult, error) {
	if declaredSize > MaxFileSize {
		return nil, fmt.Errorf("%w: заявлено %d байт, потолок %d", ErrTooLarge, declaredSize, MaxFileSize)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// Пишем multipart-конверт в pipe из отдельной горутины:
	// http-клиент читает pr по мере отправки в сокет.
	go func() {
		if err := mw.WriteField("chat_id", c.chatID); err != nil {
			pw.CloseWithError(err)
			return
		}

		part, err := createDocumentPart(mw, filename, contentType)
		if err != nil {
			pw.CloseWithError(err)
			return
		}

		if _, err := io.Copy(part, r); err != nil {
			// Обрыв входящего потока прерывает исходящий запрос
			pw.CloseWithError(err)
			return
		}

		if err := mw.Close(); err != nil {
			pw.CloseWithError(err)
			return
		}
		_ = pw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sendDocument", pr)
	if err != nil {
		return nil, fmt.Errorf("создание запроса sendDocument: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	defer resp.Body.Close()

	var msg sentMessage
	if err := decodeEnvelope(resp, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}

	if msg.Document.FileID == "" {
		return nil, fmt.Errorf("%w: в ответе нет document.file_id", ErrUpload)
	}

	c.logger.Debug("Документ отправлен в Telegram",
		slog.String("filename", filename),
		slog.String("file_id", msg.Document.FileID),
		slog.Int64("message_id", msg.MessageID),
	)

	return &SendResult{
		FileID:    msg.Document.FileID,
		FileSize:  msg.Document.FileSize,
		ChatID:    fmt.Sprintf("%d", msg.Chat.ID),
		MessageID: msg.MessageID,
	}, nil
}

// ResolveFileURL обменивает стабильный file_id на короткоживущий URL
// скачивания через getFile. Telegram может возвращать разный file_path
// на каждый вызов — результат нельзя кэшировать дольше одной загрузки.
func (c *Client) ResolveFileURL(ctx context.Context, fileID string) (string, int64, error) {
	reqURL := c.baseURL + "/getFile?file_id=" + url.QueryEscape(fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", 0, fmt.Errorf("создание запроса getFile: %w", err)
	}

	resp, err := c.apiClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrResolve, err)
	}
	defer resp.Body.Close()

	var info fileInfo
	if err := decodeEnvelope(resp, &info); err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrResolve, err)
	}
	if info.FilePath == "" {
		return "", 0, fmt.Errorf("%w: в ответе нет file_path", ErrResolve)
	}

	return c.fileBaseURL + "/" + info.FilePath, info.FileSize, nil
}

// FetchFile выполняет streaming-загрузку байтов по URL от ResolveFileURL.
// Возвращает *http.Response — вызывающий код ОБЯЗАН закрыть resp.Body.
func (c *Client) FetchFile(ctx context.Context, fileURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса к CDN: %w", err)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolve, err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: CDN вернул статус %d", ErrResolve, resp.StatusCode)
	}

	// Не закрываем resp.Body — вызывающий код отвечает за это (streaming)
	return resp, nil
}

// decodeEnvelope разбирает конверт Bot API и извлекает result в out.
// Не-ok конверт и не-2xx статус считаются ошибкой с описанием Telegram.
func decodeEnvelope(resp *http.Response, out any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("чтение ответа Telegram: %w", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("некорректный JSON от Telegram (статус %d): %w", resp.StatusCode, err)
	}
	if !env.OK {
		desc := env.Description
		if desc == "" {
			desc = fmt.Sprintf("статус %d", resp.StatusCode)
		}
		return fmt.Errorf("Telegram API: %s", desc)
	}

	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("декодирование result: %w", err)
	}
	return nil
}

// createDocumentPart создаёт multipart-часть документа с явным Content-Type
// (CreateFormFile всегда ставит octet-stream).
func createDocumentPart(mw *multipart.Writer, filename, contentType string) (io.Writer, error) {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="document"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	return mw.CreatePart(h)
}
