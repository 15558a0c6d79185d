// Пакет journal — файловый журнал операций File Organizer.
// Каждая операция — отдельный файл {tx_id}.journal.json в FO_JOURNAL_DIR.
// Пачка загрузки хранит список занятых путей назначения, чтобы после
// аварийного завершения удалить перемещённые файлы; очистка хранилища
// журналируется, чтобы незавершённую очистку довести до конца.
package journal

import (
	"time"
)

// OperationType — тип журналируемой операции.
type OperationType string

const (
	// OpUploadBatch — загрузка пачки файлов
	OpUploadBatch OperationType = "upload_batch"
	// OpClear — очистка всех файлов и записей
	OpClear OperationType = "clear"
)

// Status — статус операции.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// Entry — запись журнала.
type Entry struct {
	TransactionID string        `json:"transaction_id"`
	Operation     OperationType `json:"operation"`
	Status        Status        `json:"status"`

	// Paths — пути назначения, занятые пачкой загрузки (в порядке занятия)
	Paths []string `json:"paths,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

const fileSuffix = ".journal.json"

func entryFileName(txID string) string {
	return txID + fileSuffix
}
