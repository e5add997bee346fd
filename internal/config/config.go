// Пакет config — загрузка и валидация конфигурации pdnsapi
// из переменных окружения, .env-файла и YAML-файла значений по умолчанию.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// ErrMisconfigured — параметры удалённого сервиса не заданы или некорректны.
var ErrMisconfigured = errors.New("конфигурация PowerDNS-Admin некорректна")

// Config содержит все параметры конфигурации pdnsapi.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- PowerDNS-Admin ---

	// Базовый URL API (например, https://dnsadmin.example/api/v1)
	PDNSBaseURL string
	// Пользователь и пароль admin-поверхности (/pdnsadmin/*, HTTP Basic)
	PDNSAdminUser     string
	PDNSAdminPassword string
	// Ключ server-поверхности (/servers/*, заголовок X-API-Key)
	PDNSServerKey string
	// Идентификатор сервера PowerDNS (по умолчанию localhost)
	PDNSServerID string
	// Префиксы путей, относящихся к server-поверхности
	PDNSServerPrefixes []string
	// Таймаут одного запроса к PowerDNS-Admin
	PDNSTimeout time.Duration
	// Путь к CA-сертификату для TLS-соединений с PowerDNS-Admin (опционально)
	PDNSCACertPath string
	// Путь, который опрашивает topologymetrics (без авторизации)
	PDNSHealthPath string

	// --- Синхронизация ---

	// Запускать синхронизацию после успешных мутаций
	AutoSync bool

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию и валидирует поля.
// Приоритет источников: переменные окружения, затем .env-файл (PA_ENV_FILE),
// затем YAML-файл значений по умолчанию (PA_CONFIG_FILE).
// Параметры PowerDNS-Admin не обязательны на этом этапе: их проверяет ValidateRemote.
func Load() (*Config, error) {
	l, err := newLoader()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	// --- Сервер ---

	// PA_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = l.getEnvInt("PA_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("PA_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PA_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// PA_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(l.getEnvDefault("PA_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PA_LOG_LEVEL: %w", err)
	}

	// PA_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = l.getEnvDefault("PA_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PA_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = l.getEnvRequired("PA_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = l.getEnvInt("PA_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PA_DB_PORT: %w", err)
	}

	cfg.DBName, err = l.getEnvRequired("PA_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = l.getEnvRequired("PA_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = l.getEnvRequired("PA_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// PA_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = l.getEnvDefault("PA_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("PA_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- PowerDNS-Admin ---

	cfg.PDNSBaseURL = strings.TrimRight(l.getEnvDefault("PA_PDNS_BASE_URL", ""), "/")
	cfg.PDNSAdminUser = l.getEnvDefault("PA_PDNS_ADMIN_USER", "")
	cfg.PDNSAdminPassword = l.getEnvDefault("PA_PDNS_ADMIN_PASSWORD", "")
	cfg.PDNSServerKey = l.getEnvDefault("PA_PDNS_SERVER_KEY", "")
	cfg.PDNSServerID = l.getEnvDefault("PA_PDNS_SERVER_ID", "localhost")
	cfg.PDNSServerPrefixes = parseCSV(l.getEnvDefault("PA_PDNS_SERVER_PREFIXES", "/servers"))

	// PA_PDNS_TIMEOUT — таймаут запроса (по умолчанию 30s)
	cfg.PDNSTimeout, err = l.getEnvDuration("PA_PDNS_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_PDNS_TIMEOUT: %w", err)
	}
	if cfg.PDNSTimeout <= 0 {
		return nil, fmt.Errorf("PA_PDNS_TIMEOUT: значение должно быть положительным")
	}

	cfg.PDNSCACertPath = l.getEnvDefault("PA_PDNS_CA_CERT_PATH", "")
	cfg.PDNSHealthPath = l.getEnvDefault("PA_PDNS_HEALTH_PATH", "/login")

	// --- Синхронизация ---

	// PA_AUTO_SYNC — синхронизация после мутаций (по умолчанию true)
	cfg.AutoSync, err = l.getEnvBool("PA_AUTO_SYNC", true)
	if err != nil {
		return nil, fmt.Errorf("PA_AUTO_SYNC: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = l.getEnvDefault("PA_DEPHEALTH_GROUP", "pdnsapi")

	cfg.DephealthCheckInterval, err = l.getEnvDuration("PA_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = l.getEnvDuration("PA_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// ValidateRemote проверяет, что параметры PowerDNS-Admin достаточны для работы
// команд, обращающихся к удалённому сервису. Ключ server-поверхности
// необязателен: без него недоступны только запросы к /servers/*.
func (c *Config) ValidateRemote() error {
	if c.PDNSBaseURL == "" {
		return fmt.Errorf("%w: PA_PDNS_BASE_URL не задан", ErrMisconfigured)
	}
	u, err := url.Parse(c.PDNSBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: PA_PDNS_BASE_URL %q не является http(s) URL", ErrMisconfigured, c.PDNSBaseURL)
	}
	if c.PDNSAdminUser == "" || c.PDNSAdminPassword == "" {
		return fmt.Errorf("%w: PA_PDNS_ADMIN_USER и PA_PDNS_ADMIN_PASSWORD обязательны", ErrMisconfigured)
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
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

// --- Источники значений ---

// loader читает значения из окружения, подставляя значения из файлов,
// если переменная окружения не задана.
type loader struct {
	defaults map[string]string
}

func newLoader() (*loader, error) {
	l := &loader{defaults: make(map[string]string)}

	// YAML — самый низкий приоритет, поэтому читается первым.
	if path := os.Getenv("PA_CONFIG_FILE"); path != "" {
		values, err := readYAMLDefaults(path)
		if err != nil {
			return nil, fmt.Errorf("PA_CONFIG_FILE: %w", err)
		}
		for k, v := range values {
			l.defaults[k] = v
		}
	}

	envFile := getEnvOr("PA_ENV_FILE", ".env")
	values, err := godotenv.Read(envFile)
	switch {
	case err == nil:
		for k, v := range values {
			l.defaults[k] = v
		}
	case errors.Is(err, fs.ErrNotExist) && os.Getenv("PA_ENV_FILE") == "":
		// .env по умолчанию необязателен
	default:
		return nil, fmt.Errorf("PA_ENV_FILE: чтение %s: %w", envFile, err)
	}

	return l, nil
}

// readYAMLDefaults читает плоский YAML-словарь KEY: value.
func readYAMLDefaults(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение %s: %w", path, err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("разбор %s: %w", path, err)
	}

	result := make(map[string]string, len(raw))
	for k, node := range raw {
		if node.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%s: значение %s должно быть скаляром", path, k)
		}
		result[k] = node.Value
	}
	return result, nil
}

func (l *loader) lookup(key string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return l.defaults[key]
}

// getEnvRequired возвращает значение или ошибку, если оно не задано ни в одном источнике.
func (l *loader) getEnvRequired(key string) (string, error) {
	val := l.lookup(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение или значение по умолчанию.
func (l *loader) getEnvDefault(key, defaultVal string) string {
	val := l.lookup(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (l *loader) getEnvInt(key string, defaultVal int) (int, error) {
	val := l.lookup(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func (l *loader) getEnvBool(key string, defaultVal bool) (bool, error) {
	val := l.lookup(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

func (l *loader) getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := l.lookup(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

func getEnvOr(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
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

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
