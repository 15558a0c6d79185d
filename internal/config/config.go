// Пакет config — загрузка и валидация конфигурации File Organizer
// из переменных окружения с префиксом FO_.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые бэкенды хранилища записей.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config содержит все параметры конфигурации File Organizer.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Префикс путей API (по умолчанию /api)
	APIPrefix string
	// Разрешённые источники CORS; пустой список — CORS выключен
	CORSAllowedOrigins []string
	// Директория статического фронтенда, отдаётся с /; пустая — не отдаётся
	StaticDir string

	// Корень разложенных по категориям файлов
	OrganizedDir string
	// Директория приёма загружаемых файлов
	UploadDir string
	// Директория журнала операций
	JournalDir string

	// Максимальный размер одного файла в байтах
	MaxFileSize int64
	// Максимальное количество файлов в одной загрузке
	MaxFiles int

	// Бэкенд хранилища записей: sqlite или postgres
	Store string
	// Путь к файлу SQLite
	SQLitePath string

	// Параметры PostgreSQL (обязательны при Store=postgres)
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// YAML-файл переопределений таблицы категорий (опционально)
	CategoriesFile string
	// Локаль сортировки имён (BCP 47)
	CollationLocale language.Tag
	// Время жизни кэша статистики; 0 — кэш выключен
	StatsCacheTTL time.Duration

	// Лимит загрузок в секунду; 0 — без ограничения
	UploadRateLimit float64
	// Размер «корзины» токенов для лимита загрузок
	UploadRateBurst int

	// URL JWKS endpoint; пустой — аутентификация выключена
	JWKSUrl string
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Допуск расхождения часов при проверке exp/nbf
	JWTLeeway time.Duration

	// Зеркало S3 (опционально, включается FO_S3_ENDPOINT)
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool
	S3Prefix    string

	// Интервал фоновой сверки; 0 — выключена
	ReconcileInterval time.Duration

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// FO_PORT — порт HTTP-сервера (по умолчанию 3000)
	cfg.Port, err = getEnvInt("FO_PORT", 3000)
	if err != nil {
		return nil, fmt.Errorf("FO_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FO_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.APIPrefix = strings.TrimSuffix(getEnvDefault("FO_API_PREFIX", "/api"), "/")
	if cfg.APIPrefix != "" && !strings.HasPrefix(cfg.APIPrefix, "/") {
		return nil, fmt.Errorf("FO_API_PREFIX: значение %q должно начинаться с /", cfg.APIPrefix)
	}

	// FO_CORS_ALLOWED_ORIGINS — список через запятую, "*" — любой источник,
	// пустое значение выключает CORS
	origins, ok := os.LookupEnv("FO_CORS_ALLOWED_ORIGINS")
	if !ok {
		origins = "*"
	}
	cfg.CORSAllowedOrigins = splitList(origins)
	cfg.StaticDir = getEnvDefault("FO_STATIC_DIR", "")

	cfg.OrganizedDir = getEnvDefault("FO_ORGANIZED_DIR", "organized")
	cfg.UploadDir = getEnvDefault("FO_UPLOAD_DIR", "Uploads")
	cfg.JournalDir = getEnvDefault("FO_JOURNAL_DIR", ".journal")

	// FO_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 50 MB)
	cfg.MaxFileSize, err = getEnvInt64("FO_MAX_FILE_SIZE", 50*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("FO_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("FO_MAX_FILE_SIZE: значение должно быть положительным")
	}

	cfg.MaxFiles, err = getEnvInt("FO_MAX_FILES", 20)
	if err != nil {
		return nil, fmt.Errorf("FO_MAX_FILES: %w", err)
	}
	if cfg.MaxFiles < 1 || cfg.MaxFiles > 1000 {
		return nil, fmt.Errorf("FO_MAX_FILES: значение %d вне допустимого диапазона 1-1000", cfg.MaxFiles)
	}

	// FO_STORE — бэкенд хранилища записей
	cfg.Store = getEnvDefault("FO_STORE", StoreSQLite)
	switch cfg.Store {
	case StoreSQLite:
		cfg.SQLitePath = getEnvDefault("FO_SQLITE_PATH", "file-organizer.db")
	case StorePostgres:
		if err := loadPostgres(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("FO_STORE: недопустимое значение %q, допустимые: sqlite, postgres", cfg.Store)
	}

	cfg.CategoriesFile = getEnvDefault("FO_CATEGORIES_FILE", "")

	locale := getEnvDefault("FO_COLLATION_LOCALE", "en")
	cfg.CollationLocale, err = language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("FO_COLLATION_LOCALE: некорректный тег языка %q: %w", locale, err)
	}

	cfg.StatsCacheTTL, err = getEnvDuration("FO_STATS_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FO_STATS_CACHE_TTL: %w", err)
	}
	if cfg.StatsCacheTTL < 0 {
		return nil, fmt.Errorf("FO_STATS_CACHE_TTL: значение не может быть отрицательным")
	}

	cfg.UploadRateLimit, err = getEnvFloat("FO_UPLOAD_RATE_LIMIT", 0)
	if err != nil {
		return nil, fmt.Errorf("FO_UPLOAD_RATE_LIMIT: %w", err)
	}
	if cfg.UploadRateLimit < 0 {
		return nil, fmt.Errorf("FO_UPLOAD_RATE_LIMIT: значение не может быть отрицательным")
	}
	cfg.UploadRateBurst, err = getEnvInt("FO_UPLOAD_RATE_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("FO_UPLOAD_RATE_BURST: %w", err)
	}
	if cfg.UploadRateBurst < 1 {
		return nil, fmt.Errorf("FO_UPLOAD_RATE_BURST: значение должно быть >= 1")
	}

	if err := loadAuth(cfg); err != nil {
		return nil, err
	}
	if err := loadS3(cfg); err != nil {
		return nil, err
	}

	cfg.ReconcileInterval, err = getEnvDuration("FO_RECONCILE_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("FO_RECONCILE_INTERVAL: %w", err)
	}

	cfg.DephealthCheckInterval, err = getEnvDuration("FO_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FO_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("FO_DEPHEALTH_GROUP", "file-organizer")

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FO_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FO_LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = getEnvDefault("FO_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FO_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// Загрузка до 20 файлов по 50 MB требует больших таймаутов
	cfg.HTTPReadTimeout, err = getEnvDuration("FO_HTTP_READ_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FO_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("FO_HTTP_WRITE_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FO_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("FO_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FO_HTTP_IDLE_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout, err = getEnvDuration("FO_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FO_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

func loadPostgres(cfg *Config) error {
	var err error
	if cfg.DBHost, err = getEnvRequired("FO_DB_HOST"); err != nil {
		return err
	}
	cfg.DBPort, err = getEnvInt("FO_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("FO_DB_PORT: %w", err)
	}
	if cfg.DBPort < 1 || cfg.DBPort > 65535 {
		return fmt.Errorf("FO_DB_PORT: значение %d вне допустимого диапазона 1-65535", cfg.DBPort)
	}
	if cfg.DBName, err = getEnvRequired("FO_DB_NAME"); err != nil {
		return err
	}
	if cfg.DBUser, err = getEnvRequired("FO_DB_USER"); err != nil {
		return err
	}
	if cfg.DBPassword, err = getEnvRequired("FO_DB_PASSWORD"); err != nil {
		return err
	}
	cfg.DBSSLMode = getEnvDefault("FO_DB_SSL_MODE", "disable")
	return nil
}

func loadAuth(cfg *Config) error {
	var err error
	cfg.JWKSUrl = getEnvDefault("FO_JWKS_URL", "")
	cfg.JWKSRefreshInterval, err = getEnvDuration("FO_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return fmt.Errorf("FO_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWKSClientTimeout, err = getEnvDuration("FO_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return fmt.Errorf("FO_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("FO_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return fmt.Errorf("FO_JWT_LEEWAY: %w", err)
	}
	return nil
}

func loadS3(cfg *Config) error {
	var err error
	cfg.S3Endpoint = getEnvDefault("FO_S3_ENDPOINT", "")
	if cfg.S3Endpoint == "" {
		return nil
	}
	if cfg.S3Bucket, err = getEnvRequired("FO_S3_BUCKET"); err != nil {
		return err
	}
	if cfg.S3AccessKey, err = getEnvRequired("FO_S3_ACCESS_KEY"); err != nil {
		return err
	}
	if cfg.S3SecretKey, err = getEnvRequired("FO_S3_SECRET_KEY"); err != nil {
		return err
	}
	cfg.S3Region = getEnvDefault("FO_S3_REGION", "")
	cfg.S3UseSSL, err = getEnvBool("FO_S3_USE_SSL", false)
	if err != nil {
		return fmt.Errorf("FO_S3_USE_SSL: %w", err)
	}
	cfg.S3Prefix = strings.Trim(getEnvDefault("FO_S3_PREFIX", ""), "/")
	return nil
}

// AuthEnabled сообщает, включена ли проверка JWT.
func (c *Config) AuthEnabled() bool {
	return c.JWKSUrl != ""
}

// MirrorEnabled сообщает, включено ли зеркало S3.
func (c *Config) MirrorEnabled() bool {
	return c.S3Endpoint != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		dsnQuote(c.DBHost), c.DBPort, dsnQuote(c.DBName), dsnQuote(c.DBUser),
		dsnQuote(c.DBPassword), dsnQuote(c.DBSSLMode),
	)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
// Учётные данные экранируются, пароль может содержать @, / и :.
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// dsnQuote заключает значение keyword/value DSN в кавычки.
func dsnQuote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// DatabaseURL возвращает URL PostgreSQL без пароля — для лейблов метрик.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// splitList разбирает список через запятую, пропуская пустые элементы.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

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

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
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
