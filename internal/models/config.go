package models

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Classifier ClassifierConfig `json:"classifier"`
	Tracing    TracingConfig    `json:"tracing"`
	LogLevel   string           `json:"log_level"`
}

// ServerConfig holds HTTP/websocket server configuration
type ServerConfig struct {
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig holds message store configuration
type DatabaseConfig struct {
	Path              string `json:"path"`
	ReconnectDelaySec int    `json:"reconnectDelaySec"`
}

// ClassifierConfig holds prediction service configuration
type ClassifierConfig struct {
	BaseURL    string `json:"base_url"`
	TimeoutSec int    `json:"timeoutSec"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	UseStdout    bool    `json:"use_stdout"`
	OTLPEndpoint string  `json:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate"`
	Environment  string  `json:"environment"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
