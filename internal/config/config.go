// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds configuration knobs for the HTTP server, the persistence
// writer, storage backends, sessions and the quote client.
type Config struct {
	ServiceName     string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	InitialWorkerCount      int
	WorkerMin               int
	WorkerMax               int
	ScaleInterval           time.Duration
	ScaleUpBacklogPerWorker int
	ScaleDownIdleTicks      int
	QueueHighWatermark      int

	StoreBackend string
	SQLitePath   string
	SQLiteDebug  bool
	RedisAddr    string
	RedisPrefix  string
	MongoURI     string
	MongoDBName  string

	SessionCacheSize int
	PaymentDelay     time.Duration
	QRISPayBaseURL   string

	QuoteAPIURL     string
	TranslateAPIURL string
	QuoteTimeout    time.Duration
	QuoteMaxID      int

	CORSAllowedOrigins []string
	OTELEndpoint       string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

func boolenv(key string, def bool) bool {
	b, err := strconv.ParseBool(getenv(key, ""))
	if err != nil {
		return def
	}
	return b
}

func listenv(key, def string) []string {
	var out []string
	for _, s := range strings.Split(getenv(key, def), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Load collects configuration from the environment with defaults. A .env
// file in the working directory is read first; variables already set in the
// environment take precedence over it.
func Load() Config {
	_ = godotenv.Load()

	minWorkers := atoienv("WORKER_MIN", 2)
	maxWorkers := atoienv("WORKER_MAX", 8)
	initialWorkers := atoienv("WORKER_COUNT", minWorkers)
	return Config{
		ServiceName:     getenv("SERVICE_NAME", "pos-session-service"),
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 15),

		InitialWorkerCount:      initialWorkers,
		WorkerMin:               minWorkers,
		WorkerMax:               maxWorkers,
		ScaleInterval:           durenvms("SCALE_INTERVAL_MS", 500),
		ScaleUpBacklogPerWorker: atoienv("SCALE_UP_BACKLOG_PER_WORKER", 50),
		ScaleDownIdleTicks:      atoienv("SCALE_DOWN_IDLE_TICKS", 6),
		QueueHighWatermark:      atoienv("QUEUE_HIGH_WATERMARK", 5000),

		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", "memory")),
		SQLitePath:   getenv("SQLITE_PATH", "pos.db"),
		SQLiteDebug:  boolenv("DB_DEBUG", false),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		RedisPrefix:  getenv("REDIS_PREFIX", "pos:"),
		MongoURI:     getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:  getenv("MONGO_DB_NAME", "pos"),

		SessionCacheSize: atoienv("SESSION_CACHE_SIZE", 1024),
		PaymentDelay:     durenvms("PAYMENT_DELAY_MS", 2000),
		QRISPayBaseURL:   getenv("QRIS_PAY_BASE_URL", "https://example.com/pay"),

		QuoteAPIURL:     getenv("QUOTE_API_URL", "https://dummyjson.com"),
		TranslateAPIURL: getenv("TRANSLATE_API_URL", "https://libretranslate.com"),
		QuoteTimeout:    durenvms("QUOTE_TIMEOUT_MS", 5000),
		QuoteMaxID:      atoienv("QUOTE_MAX_ID", 1454),

		CORSAllowedOrigins: listenv("CORS_ALLOWED_ORIGINS", "*"),
		OTELEndpoint:       getenv("OTEL_EXPORTER_ENDPOINT", ""),
	}
}
