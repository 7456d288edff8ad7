// Пакет model — доменные модели tgupload.
package model

import "time"

// FileRecord — запись метаданных файла, сохранённого в Telegram-канале.
// Байты файла хранит Telegram; локально — только индекс метаданных.
type FileRecord struct {
	// ID — UUID записи (генерируется при создании)
	ID string `json:"id"`
	// Name — оригинальное имя файла (как прислал клиент, без санитизации)
	Name string `json:"name"`
	// Size — размер файла в байтах
	Size int64 `json:"size"`
	// ExternalRef — стабильный идентификатор документа в Telegram (file_id)
	ExternalRef string `json:"external_ref"`
	// ChatID — идентификатор чата, куда был отправлен документ (опционально)
	ChatID string `json:"chat_id,omitempty"`
	// MessageID — идентификатор сообщения с документом (опционально)
	MessageID int64 `json:"message_id,omitempty"`
	// CreatedAt — время создания записи (UTC)
	CreatedAt time.Time `json:"created_at"`
}
