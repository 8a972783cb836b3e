package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	Env        string
	ListenAddr string
	LogLevel   string

	DatabaseURL string

	AWSRegion      string
	AWSEndpoint    string
	ForcePathStyle bool

	QueueURL      string
	DeadLetterURL string

	ScanWorkers       int
	ReceiveBatch      int
	PollWait          time.Duration
	VisibilityTimeout time.Duration
	HeartbeatInterval time.Duration
	StuckAfter        time.Duration
	SweepInterval     time.Duration

	ChunkSize     int
	MaxObjectSize int64
}

func Load() (Config, error) {
	cfg := Config{
		Env:        getenv("APP_ENV", "development"),
		ListenAddr: getenv("LISTEN_ADDR", ":8080"),
		LogLevel:   getenv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		AWSRegion:      getenv("AWS_REGION", "us-east-1"),
		AWSEndpoint:    os.Getenv("AWS_ENDPOINT_URL"),
		ForcePathStyle: getenv("S3_FORCE_PATH_STYLE", "") == "true",

		QueueURL:      os.Getenv("SQS_QUEUE_URL"),
		DeadLetterURL: os.Getenv("SQS_DLQ_URL"),

		ScanWorkers:       getenvInt("SCAN_WORKERS", 4),
		ReceiveBatch:      getenvInt("MAX_MESSAGES", 1),
		PollWait:          getenvSeconds("POLL_WAIT_TIME", 20*time.Second),
		VisibilityTimeout: getenvSeconds("VISIBILITY_TIMEOUT", 300*time.Second),
		HeartbeatInterval: getenvSeconds("HEARTBEAT_INTERVAL", 100*time.Second),
		StuckAfter:        getenvSeconds("STUCK_SCAN_THRESHOLD", 1800*time.Second),
		SweepInterval:     getenvSeconds("STUCK_SWEEP_INTERVAL", 300*time.Second),

		ChunkSize:     getenvInt("CHUNK_SIZE", 10*1024*1024),
		MaxObjectSize: int64(getenvInt("MAX_FILE_SIZE", 500*1024*1024)),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	if cfg.QueueURL == "" {
		return cfg, fmt.Errorf("SQS_QUEUE_URL not set")
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		if _, err := fmt.Sscanf(v, "%d", &out); err == nil {
			return out
		}
	}
	return def
}

// getenvSeconds reads a whole number of seconds.
func getenvSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		var out int
		if _, err := fmt.Sscanf(v, "%d", &out); err == nil {
			return time.Duration(out) * time.Second
		}
	}
	return def
}
