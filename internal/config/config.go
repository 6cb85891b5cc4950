package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CatalogTTLSeconds     int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ShiftUTCOffsetHours   int
	ShiftBoundaryHour     int
	CurrencyLocale        string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	catalogTTL, err := strconv.Atoi(getEnv("CATALOG_TTL_SECONDS", "60"))
	if err != nil || catalogTTL < 1 {
		catalogTTL = 60
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	utcOffset, err := strconv.Atoi(getEnv("SHIFT_UTC_OFFSET_HOURS", "-5"))
	if err != nil || utcOffset < -12 || utcOffset > 14 {
		utcOffset = -5
	}
	boundaryHour, err := strconv.Atoi(getEnv("SHIFT_BOUNDARY_HOUR", "6"))
	if err != nil || boundaryHour < 0 || boundaryHour > 23 {
		boundaryHour = 6
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		CatalogTTLSeconds:     catalogTTL,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		ShiftUTCOffsetHours:   utcOffset,
		ShiftBoundaryHour:     boundaryHour,
		CurrencyLocale:        getEnv("CURRENCY_LOCALE", "es-CO"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
