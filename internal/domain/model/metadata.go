// Пакет model — доменные модели docstore.
// FileRecord — единственная сущность: связь идентификатора файла,
// оригинального имени и физического пути blob на диске.
package model

// FileRecord — запись метаданных загруженного файла.
// Записи неизменяемы: создаются при upload и удаляются при delete.
type FileRecord struct {
	// ID — уникальный идентификатор файла (UUID v4)
	ID string `json:"id"`

	// OriginalFilename — имя файла, переданное клиентом.
	// Используется только как имя при скачивании, не для построения пути.
	OriginalFilename string `json:"filename"`

	// StoragePath — абсолютный путь blob на диске.
	// Формат имени: {unix_millis}-{original_filename}
	StoragePath string `json:"filepath"`
}
