package config

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr"`
	// Token enables bearer authentication when not empty.
	Token string `json:"token"`
	// PrometheusAddr exposes /metrics on a separate listener when set.
	PrometheusAddr string `json:"prometheus_addr"`
	// RunsPerSecond limits run submissions; zero disables the limit.
	RunsPerSecond float64 `json:"runs_per_second"`
	RunsBurst     int     `json:"runs_burst"`
	// AllowedOrigins enables CORS for the listed origins.
	AllowedOrigins []string `json:"allowed_origins"`
	MaxBodyBytes   int64    `json:"max_body_bytes"`
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.RunsPerSecond > 0 && c.RunsBurst == 0 {
		c.RunsBurst = 1
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 10 << 20
	}
}

// InputConfig controls station spreadsheet import.
type InputConfig struct {
	// Sheet names the worksheet to read; the first sheet is used when empty.
	Sheet string `json:"sheet"`
}
