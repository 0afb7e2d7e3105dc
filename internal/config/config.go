package config

import (
	"log"
	"os"
	"time"
)

type Config struct {
	Port       string
	DBDSN      string
	LogFile    string
	SagaWait   time.Duration // how long a saga waits for a status signal
	OutboxPoll time.Duration
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "shopline.db"
	} // sqlite file in project root
	logFile := os.Getenv("LOG_FILE")

	sagaWait := durationEnv("SAGA_WAIT", 7*24*time.Hour)
	outboxPoll := durationEnv("OUTBOX_POLL", 500*time.Millisecond)

	cfg := Config{Port: port, DBDSN: dsn, LogFile: logFile, SagaWait: sagaWait, OutboxPoll: outboxPoll}
	log.Printf("[config] PORT=%s DB_DSN=%s SAGA_WAIT=%s OUTBOX_POLL=%s", cfg.Port, cfg.DBDSN, cfg.SagaWait, cfg.OutboxPoll)
	return cfg
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
