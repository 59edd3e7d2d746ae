// Пакет blobstore — операции с физическими файлами (blob) в директории загрузок.
// Обеспечивает запись потока на диск, открытие, удаление и перечисление blob.
package blobstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound — blob по указанному пути отсутствует.
var ErrNotFound = errors.New("blob не найден")

// tmpPattern — шаблон имени временного файла. Скрытое имя не может
// совпасть с именем blob ({unix_millis}-...) и пропускается в List.
const tmpPattern = ".upload-*"

// Store — управление blob в директории загрузок.
type Store struct {
	// dir — абсолютный путь директории загрузок (DS_UPLOAD_DIR)
	dir string
	// now — источник времени для префикса имени (подменяется в тестах)
	now func() time.Time
}

// New создаёт Store. Приводит путь к абсолютному и создаёт
// директорию, если она не существует.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("не удалось определить абсолютный путь %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию загрузок %s: %w", abs, err)
	}

	return &Store{dir: abs, now: time.Now}, nil
}

// Write записывает данные из reader в новый файл {unix_millis}-{nameHint}
// и возвращает абсолютный путь записанного blob.
//
// nameHint не санитизируется: имя, содержащее разделители пути,
// приведёт к ошибке создания файла или к записи во вложенную директорию.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *Store) Write(nameHint string, reader io.Reader) (string, error) {
	fullPath := filepath.Join(s.dir, storageName(s.now(), nameHint))

	// Уникальный temp файл на каждую запись: параллельные загрузки
	// с одинаковым именем не пишут в один файл
	f, err := os.CreateTemp(s.dir, tmpPattern)
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return fullPath, nil
}

// Open открывает blob для чтения. Вызывающий код обязан закрыть файл.
func (s *Store) Open(storagePath string) (*os.File, error) {
	f, err := os.Open(storagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}
	return f, nil
}

// Delete удаляет blob с диска.
// В отличие от idempotent-удаления, отсутствующий файл — ошибка (ErrNotFound).
func (s *Store) Delete(storagePath string) error {
	if err := os.Remove(storagePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}

// Exists проверяет существование blob на диске.
func (s *Store) Exists(storagePath string) bool {
	_, err := os.Stat(storagePath)
	return err == nil
}

// List возвращает абсолютные пути всех blob в директории загрузок,
// отсортированные по имени. Скрытые файлы (в том числе временные) пропускаются.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", s.dir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, name))
	}
	sort.Strings(paths)

	return paths, nil
}

// Dir возвращает абсолютный путь директории загрузок.
func (s *Store) Dir() string {
	return s.dir
}

// storageName формирует имя blob: {unix_millis}-{nameHint}.
// Пример: 1718000000000-report.pdf
func storageName(t time.Time, nameHint string) string {
	return strconv.FormatInt(t.UnixMilli(), 10) + "-" + nameHint
}
