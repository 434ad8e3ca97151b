package config

import (
	"net"
	"strconv"
	"time"
)

// Store drivers understood by the API.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Host               string
	Port               int
	APIURL             string
	SignKey            string
	TokenTTL           time.Duration
	HashRounds         int
	StoreDriver        string
	DatabaseURL        string
	MigrationsDir      string
	DocsDir            string
	LogLevel           string
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	port := GetInt("PORT", 8080)
	host := GetString("HOST", "localhost")
	driver := GetString("STORE_DRIVER", StoreMemory)
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Host:               host,
		Port:               port,
		APIURL:             GetString("API_URL", "http://"+net.JoinHostPort(host, strconv.Itoa(port))+"/v1"),
		SignKey:            GetString("AUTH_SIGN_KEY", "crate-development-sign-key"),
		TokenTTL:           GetDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		HashRounds:         GetInt("BCRYPT_HASH_ROUNDS", 10),
		StoreDriver:        driver,
		DatabaseURL:        GetString("DATABASE_URL", defaultDatabaseURL(driver)),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", ""),
		DocsDir:            GetString("DOCS_DIR", ""),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}

// Addr is the listen address for the HTTP server.
func (c APIConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func defaultDatabaseURL(driver string) string {
	switch driver {
	case StorePostgres:
		return "postgres://crate:crate@db:5432/crate?sslmode=disable"
	case StoreSQLite:
		return "file:crate.db?_pragma=foreign_keys(1)"
	default:
		return ""
	}
}
