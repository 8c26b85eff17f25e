package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadOnce sync.Once

func load() {
	loadOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
}

func Config(key string) string {
	load()
	return os.Getenv(key)
}

func ConfigOr(key, def string) string {
	if v := strings.TrimSpace(Config(key)); v != "" {
		return v
	}
	return def
}

func ConfigInt(key string, def int) int {
	v := strings.TrimSpace(Config(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using %d", key, v, def)
		return def
	}
	return n
}

func ConfigDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(Config(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a duration, using %s", key, v, def)
		return def
	}
	return d
}

// ConfigList splits a comma separated value, dropping blanks.
func ConfigList(key, def string) []string {
	parts := strings.Split(ConfigOr(key, def), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
