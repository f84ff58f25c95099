package app

import (
	"os"
	"strings"
)

// Config описывает настройки запуска приложения.
type Config struct {
	// HTTPAddr — адрес REST API.
	HTTPAddr string
	// MetricsAddr — адрес сервера метрик и health-endpoint'ов.
	MetricsAddr string
	// DBDSN — строка подключения PostgreSQL. Пустая строка означает
	// in-memory хранилище.
	DBDSN string
	// KafkaBrokers — список брокеров через запятую. Пустая строка
	// отключает публикацию событий.
	KafkaBrokers string
	// JWTSecret — ключ подписи HMAC-токенов.
	JWTSecret string
	// Roles — карта subject → роль для кассиров и администраторов.
	Roles map[string]string
}

// DefaultConfig возвращает адреса и секрет для локальной разработки.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		JWTSecret:   "dev-secret",
		Roles:       map[string]string{},
	}
}

// ConfigFromEnv накладывает переменные окружения на DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if addr := os.Getenv("POS_HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if addr := os.Getenv("POS_METRICS_ADDR"); addr != "" {
		cfg.MetricsAddr = addr
	}
	if dsn := os.Getenv("POS_DB_DSN"); dsn != "" {
		cfg.DBDSN = dsn
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = brokers
	}
	if secret := os.Getenv("POS_JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if roles := os.Getenv("POS_ROLES"); roles != "" {
		cfg.Roles = ParseRoles(roles)
	}

	return cfg
}

// ParseRoles разбирает строку вида "subject:role,subject:role".
// Некорректные пары пропускаются.
func ParseRoles(raw string) map[string]string {
	roles := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		subject, role, ok := strings.Cut(pair, ":")
		subject = strings.TrimSpace(subject)
		role = strings.TrimSpace(role)
		if !ok || subject == "" || role == "" {
			continue
		}
		roles[subject] = role
	}

	return roles
}
