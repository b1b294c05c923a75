package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	DatabaseURL   string
	MigrationsDir string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SeedDemoData  bool
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	seed, _ := strconv.ParseBool(getEnv("SEED_DEMO_DATA", "true"))

	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		SeedDemoData:  seed,
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
