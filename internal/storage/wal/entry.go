// Пакет wal — журнал намерений (intent log) для составных операций docstore.
// Составная операция затрагивает blob и строку метаданных; запись журнала
// фиксирует намерение до второго шага, чтобы после сбоя процесса
// незавершённую операцию можно было обнаружить и доработать.
// Каждая запись — отдельный файл {tx_id}.wal.json в DS_WAL_DIR.
package wal

import (
	"time"
)

// OperationType — тип составной операции.
type OperationType string

const (
	// OpFileCreate — upload: blob записан, вставляется строка метаданных
	OpFileCreate OperationType = "file_create"
	// OpFileDelete — delete: удаляется blob, затем строка метаданных
	OpFileDelete OperationType = "file_delete"
)

// TransactionStatus — статус записи журнала.
type TransactionStatus string

const (
	// StatusPending — операция начата и не завершена
	StatusPending TransactionStatus = "pending"
	// StatusCommitted — операция завершена полностью
	StatusCommitted TransactionStatus = "committed"
	// StatusRolledBack — операция отменена при восстановлении
	StatusRolledBack TransactionStatus = "rolled_back"
)

// Entry — запись журнала.
type Entry struct {
	TransactionID string            `json:"transaction_id"`
	Operation     OperationType     `json:"operation"`
	Status        TransactionStatus `json:"status"`

	// FileID — идентификатор записи метаданных
	FileID string `json:"file_id"`
	// StoragePath — абсолютный путь blob
	StoragePath string `json:"storage_path"`

	StartedAt time.Time `json:"started_at"`
	// CompletedAt — nil для pending записей
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// walFileName возвращает имя файла журнала для транзакции.
func walFileName(txID string) string {
	return txID + ".wal.json"
}
