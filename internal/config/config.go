// Пакет config — загрузка и валидация конфигурации docstore
// из переменных окружения.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Поддерживаемые драйверы хранилища метаданных.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config содержит все параметры конфигурации docstore.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Имя сервиса в метриках topologymetrics
	ServiceID string
	// Директория хранения загруженных файлов
	UploadDir string
	// Драйвер хранилища метаданных (sqlite, postgres)
	DBDriver string
	// Путь к файлу SQLite
	DBPath string
	// DSN PostgreSQL (только для драйвера postgres)
	DBDSN string
	// Директория журнала намерений
	WALDir string
	// Объём multipart-данных, удерживаемых в памяти при парсинге формы
	MultipartMemory int64
	// Максимум параллельных удалений в delete-all
	DeleteConcurrency int
	// Интервал фоновой сверки (0 — отключена)
	ReconcileInterval time.Duration
	// Разрешённые CORS origins
	CORSOrigins []string
	// Путь к TLS сертификату (опционально)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// PORT — порт HTTP-сервера (по умолчанию 3001)
	port, err := getEnvInt("PORT", 3001)
	if err != nil {
		return nil, fmt.Errorf("PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	cfg.ServiceID = getEnvDefault("DS_SERVICE_ID", "docstore")
	cfg.UploadDir = getEnvDefault("DS_UPLOAD_DIR", "uploads")
	cfg.WALDir = getEnvDefault("DS_WAL_DIR", "wal")

	// DS_DB_DRIVER — драйвер метаданных (по умолчанию sqlite)
	cfg.DBDriver = getEnvDefault("DS_DB_DRIVER", DriverSQLite)
	switch cfg.DBDriver {
	case DriverSQLite:
		cfg.DBPath = getEnvDefault("DS_DB_PATH", "db.sqlite")
	case DriverPostgres:
		cfg.DBDSN, err = getEnvRequired("DS_DB_DSN")
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("DS_DB_DRIVER: недопустимое значение %q, допустимые: sqlite, postgres", cfg.DBDriver)
	}

	// DS_MULTIPART_MEMORY — буфер multipart в памяти (по умолчанию 32 MiB)
	cfg.MultipartMemory, err = getEnvInt64("DS_MULTIPART_MEMORY", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("DS_MULTIPART_MEMORY: %w", err)
	}
	if cfg.MultipartMemory <= 0 {
		return nil, fmt.Errorf("DS_MULTIPART_MEMORY: значение должно быть положительным")
	}

	// DS_DELETE_CONCURRENCY — параллелизм delete-all (по умолчанию 16)
	cfg.DeleteConcurrency, err = getEnvInt("DS_DELETE_CONCURRENCY", 16)
	if err != nil {
		return nil, fmt.Errorf("DS_DELETE_CONCURRENCY: %w", err)
	}
	if cfg.DeleteConcurrency <= 0 {
		return nil, fmt.Errorf("DS_DELETE_CONCURRENCY: значение должно быть положительным")
	}

	// DS_RECONCILE_INTERVAL — интервал сверки (по умолчанию 1h, 0 — отключена)
	cfg.ReconcileInterval, err = getEnvDuration("DS_RECONCILE_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DS_RECONCILE_INTERVAL: %w", err)
	}
	if cfg.ReconcileInterval < 0 {
		return nil, fmt.Errorf("DS_RECONCILE_INTERVAL: значение не может быть отрицательным")
	}

	// DS_CORS_ORIGINS — список через запятую (по умолчанию фронтенд на :3000)
	cfg.CORSOrigins = splitList(getEnvDefault("DS_CORS_ORIGINS", "http://localhost:3000"))

	// DS_TLS_CERT / DS_TLS_KEY — задаются только вместе
	cfg.TLSCert = getEnvDefault("DS_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("DS_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("DS_TLS_CERT и DS_TLS_KEY должны быть заданы вместе")
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DS_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("DS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("DS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DS_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.DephealthCheckInterval, err = getEnvDuration("DS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// TLSEnabled возвращает true, если заданы сертификат и ключ.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
// Логи пишутся в w (сервер — stdout, утилиты командной строки — stderr).
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// splitList разбирает список через запятую, отбрасывая пустые элементы.
func splitList(val string) []string {
	var result []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
