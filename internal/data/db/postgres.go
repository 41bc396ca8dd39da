package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func postgresDSN(cfg Config) string {
	if url := strings.TrimSpace(cfg.URL); url != "" {
		return url
	}
	host := firstNonEmpty(cfg.Host, "localhost")
	port := firstNonEmpty(cfg.Port, "5432")
	user := firstNonEmpty(cfg.User, "postgres")
	name := firstNonEmpty(cfg.Name, "promptlab")
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user,
		cfg.Password,
		host,
		port,
		name,
	)
}

func postgresDialector(cfg Config) gorm.Dialector {
	return postgres.Open(postgresDSN(cfg))
}

func firstNonEmpty(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
