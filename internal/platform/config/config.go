// Pacote config centraliza o carregamento das variáveis de ambiente usadas pelos binários.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BroadcastRedis = "redis"
	BroadcastNATS  = "nats"
)

// Config agrega todos os parâmetros necessários para API, worker e cliente de terminal.
type Config struct {
	HTTPAddress string
	LogLevel    string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FilaKeyPrefix    string
	VersionKeyPrefix string
	VoteAsync        bool

	BroadcastBackend string
	BroadcastChannel string
	NATSURL          string

	CORSAllowedOrigins []string

	RateLimitEnabled       bool
	RateLimitMaxActions    int
	RateLimitWindowSeconds int
	RateLimitKeyPrefix     string

	AutoMigrate bool

	WorkerMetricsAddress string

	VoteSyncAPIURL     string
	VoteSyncWSURL      string
	VoteSyncStaleGuard bool
}

func Load() (Config, error) {
	// .env é opcional: em Docker/K8s as variáveis já chegam pelo ambiente.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: .env invalido: %w", err)
	}

	// Defaults priorizam execução local; variáveis permitem sobrescrever em Docker/K8s.
	cfg := Config{
		HTTPAddress:            getEnv("HTTP_ADDRESS", ":3001"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		PostgresHost:           getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:           getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:           getEnv("POSTGRES_USER", "zelda"),
		PostgresPassword:       getEnv("POSTGRES_PASSWORD", "zelda"),
		PostgresDB:             getEnv("POSTGRES_DB", "zelda_votos"),
		PostgresSSLMode:        getEnv("POSTGRES_SSLMODE", "disable"),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		FilaKeyPrefix:          getEnv("REDIS_QUEUE_PREFIX", "fila:votos"),
		VersionKeyPrefix:       getEnv("VERSION_KEY_PREFIX", "versao"),
		VoteAsync:              getEnvAsBool("VOTE_ASYNC", false),
		BroadcastBackend:       strings.ToLower(getEnv("BROADCAST_BACKEND", BroadcastRedis)),
		BroadcastChannel:       getEnv("BROADCAST_CHANNEL", "votos.eventos"),
		NATSURL:                getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		CORSAllowedOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitEnabled:       getEnvAsBool("ANTIFRAUDE_RATE_LIMIT_ENABLED", false),
		RateLimitMaxActions:    getEnvAsInt("ANTIFRAUDE_RATE_LIMIT_MAX", 120),
		RateLimitWindowSeconds: getEnvAsInt("ANTIFRAUDE_RATE_LIMIT_WINDOW", 60),
		RateLimitKeyPrefix:     getEnv("ANTIFRAUDE_RATE_LIMIT_PREFIX", "ratelimit"),
		AutoMigrate:            getEnvAsBool("DB_AUTO_MIGRATE", true),
		WorkerMetricsAddress:   getEnv("WORKER_METRICS_ADDRESS", ":9090"),
		VoteSyncAPIURL:         getEnv("VOTESYNC_API_URL", "http://localhost:3001"),
		VoteSyncWSURL:          getEnv("VOTESYNC_WS_URL", "ws://localhost:3001/ws"),
		VoteSyncStaleGuard:     getEnvAsBool("VOTESYNC_STALE_GUARD", false),
	}

	dbStr := getEnv("REDIS_DB", "0")
	dbInt, err := strconv.Atoi(dbStr)
	if err != nil {
		return Config{}, fmt.Errorf("config: REDIS_DB invalido: %w", err)
	}
	cfg.RedisDB = dbInt

	switch cfg.BroadcastBackend {
	case BroadcastRedis, BroadcastNATS:
	default:
		return Config{}, fmt.Errorf("config: BROADCAST_BACKEND desconhecido: %q", cfg.BroadcastBackend)
	}

	return cfg, nil
}

func (c Config) PostgresDSN() string {
	// Mantemos o formato DSN compatível com GORM e ferramentas de migração.
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresSSLMode,
	)
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	switch value {
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return true
	}
}

func getEnvAsList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var itens []string
	for _, parte := range strings.Split(value, ",") {
		if p := strings.TrimSpace(parte); p != "" {
			itens = append(itens, p)
		}
	}
	if len(itens) == 0 {
		return fallback
	}
	return itens
}
