package history

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/teamalloc/core/factory"
)

var storeRegistry = factory.NewRegistry[Store]()

// RegisterStore adds a history backend factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore creates the backend described by cfg.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	s, err := storeRegistry.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("history store %q: %w", cfg.Type, err)
	}
	return s, nil
}

type fileConf struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func init() {
	_ = RegisterStore("jsonl", func(conf map[string]any) (Store, error) {
		var c fileConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("path is required")
		}
		return NewJSONLStore(c.Path)
	})

	_ = RegisterStore("rotating", func(conf map[string]any) (Store, error) {
		c := fileConf{MaxSizeMB: 10, MaxBackups: 5, MaxAgeDays: 90}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("path is required")
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})

	_ = RegisterStore("sqlite", func(conf map[string]any) (Store, error) {
		var c fileConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, fmt.Errorf("path is required")
		}
		return NewSQLiteStore(c.Path)
	})

	_ = RegisterStore("postgres", func(conf map[string]any) (Store, error) {
		var c struct {
			DSN            string `json:"dsn"`
			TimeoutSeconds int    `json:"timeout_seconds"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.DSN == "" {
			return nil, fmt.Errorf("dsn is required")
		}
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = 10
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.TimeoutSeconds)*time.Second)
		defer cancel()
		return NewPostgresStore(ctx, c.DSN)
	})

	_ = RegisterStore("redis", func(conf map[string]any) (Store, error) {
		var c struct {
			URL    string `json:"url"`
			Prefix string `json:"prefix"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.URL == "" {
			return nil, fmt.Errorf("url is required")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return NewRedisStore(ctx, c.URL, c.Prefix)
	})
}
