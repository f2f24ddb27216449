package cache

import (
	"time"

	"blockd/pkg/cfg"
)

// Config describes a Redis connection.
type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

func LoadConfigFromEnv() Config {
	return Config{
		Addr:        cfg.String("REDIS_ADDR", "127.0.0.1:6379"),
		Password:    cfg.String("REDIS_PASSWORD", ""),
		DB:          cfg.Int("REDIS_DB", 0),
		DialTimeout: time.Duration(cfg.Int("REDIS_DIAL_TIMEOUT_MS", 2000)) * time.Millisecond,
	}
}
