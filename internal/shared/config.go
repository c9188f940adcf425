package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	MapsBase string
	MapsKey  string
	MapsRPS  int

	OpenAIKey    string
	PlannerModel string
	CopyModel    string

	FanOut     int
	SessionTTL time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:       env("APP_ENV", "prod"),
		HTTPAddr:     env("HTTP_ADDR", ":8080"),
		MetricsAddr:  env("METRICS_ADDR", ":9100"),
		MySQLDSN:     env("MYSQL_DSN", "root:root@tcp(localhost:3306)/tripsmith?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:    env("REDIS_ADDR", "localhost:6379"),
		RedisDB:      atoi("REDIS_DB", 0),
		RedisPass:    env("REDIS_PASSWORD", ""),
		MapsBase:     env("GOOGLE_MAPS_BASE_URL", "https://maps.googleapis.com"),
		MapsKey:      env("GOOGLE_MAPS_API_KEY", ""),
		MapsRPS:      atoi("GOOGLE_MAPS_RPS", 10),
		OpenAIKey:    env("OPENAI_API_KEY", ""),
		PlannerModel: env("PLANNER_MODEL", "gpt-5-2025-08-07"),
		CopyModel:    env("COPY_MODEL", "gpt-5-mini"),
		FanOut:       atoi("PIPELINE_FANOUT", 4),
		SessionTTL:   time.Duration(atoi("INTAKE_SESSION_TTL_SECONDS", 1800)) * time.Second,
	}
	if c.MapsKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY is empty")
	}
	if c.OpenAIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
