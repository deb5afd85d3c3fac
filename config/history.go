package config

import (
	"fmt"

	"github.com/kilianp07/teamalloc/core/factory"
)

// HistoryConfig selects where saved allocation runs are kept.
type HistoryConfig struct {
	// Backend selects the store type: "jsonl", "rotating", "sqlite", "postgres" or "redis".
	Backend string `json:"backend"`
	// Path is the file location of the file based stores.
	Path string `json:"path"`
	// DSN is the PostgreSQL connection string.
	DSN string `json:"dsn"`
	// URL is the redis:// address of the Redis backend.
	URL string `json:"url"`
	// Prefix namespaces Redis keys.
	Prefix string `json:"prefix"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *HistoryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "history.db"
		default:
			c.Path = "history.jsonl"
		}
	}
}

// Validate checks mandatory fields.
func (c HistoryConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "rotating", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("history: path is required")
		}
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("history: dsn is required for postgres")
		}
	case "redis":
		if c.URL == "" {
			return fmt.Errorf("history: url is required for redis")
		}
	default:
		return fmt.Errorf("history: unknown backend %s", c.Backend)
	}
	return nil
}

// Module converts the section into the factory description of the store.
func (c HistoryConfig) Module() factory.ModuleConfig {
	conf := map[string]any{"path": c.Path}
	switch c.Backend {
	case "rotating":
		conf["max_size_mb"] = c.MaxSizeMB
		conf["max_backups"] = c.MaxBackups
		conf["max_age_days"] = c.MaxAgeDays
		for k, v := range conf {
			if n, ok := v.(int); ok && n == 0 {
				delete(conf, k)
			}
		}
	case "postgres":
		conf = map[string]any{"dsn": c.DSN}
	case "redis":
		conf = map[string]any{"url": c.URL}
		if c.Prefix != "" {
			conf["prefix"] = c.Prefix
		}
	}
	return factory.ModuleConfig{Type: c.Backend, Conf: conf}
}
