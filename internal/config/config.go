// Package config loads service configuration from defaults, an optional
// file overlay and environment variables, in that order of priority.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"server_address" json:"server_address" toml:"server_address"`
	Environment     string        `yaml:"environment" json:"environment" toml:"environment"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" toml:"shutdown_timeout"`

	// Lambda configuration
	IsLambda bool `yaml:"is_lambda" json:"is_lambda" toml:"is_lambda"`

	// Upstream collaborators
	MemoriesAPIURL  string        `yaml:"memories_api_url" json:"memories_api_url" toml:"memories_api_url"`
	NotifyWSURL     string        `yaml:"notify_ws_url" json:"notify_ws_url" toml:"notify_ws_url"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout" json:"upstream_timeout" toml:"upstream_timeout"`
	ReconnectDelay  time.Duration `yaml:"reconnect_delay" json:"reconnect_delay" toml:"reconnect_delay"`

	// Snapshot cache
	SnapshotCacheSize int           `yaml:"snapshot_cache_size" json:"snapshot_cache_size" toml:"snapshot_cache_size"`
	SnapshotTTL       time.Duration `yaml:"snapshot_ttl" json:"snapshot_ttl" toml:"snapshot_ttl"`

	// Logging
	LogLevel string `yaml:"log_level" json:"log_level" toml:"log_level"`

	// Authentication
	JWTSecret  string `yaml:"jwt_secret" json:"jwt_secret" toml:"jwt_secret"`
	JWTIssuer  string `yaml:"jwt_issuer" json:"jwt_issuer" toml:"jwt_issuer"`
	EnableAuth bool   `yaml:"enable_auth" json:"enable_auth" toml:"enable_auth"`

	// Feature flags
	EnableMetrics  bool     `yaml:"enable_metrics" json:"enable_metrics" toml:"enable_metrics"`
	EnableTracing  bool     `yaml:"enable_tracing" json:"enable_tracing" toml:"enable_tracing"`
	OTLPEndpoint   string   `yaml:"otlp_endpoint" json:"otlp_endpoint" toml:"otlp_endpoint"`
	EnableCORS     bool     `yaml:"enable_cors" json:"enable_cors" toml:"enable_cors"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins"`

	Network     NetworkConfig     `yaml:"network" json:"network" toml:"network"`
	Interaction InteractionConfig `yaml:"interaction" json:"interaction" toml:"interaction"`
}

// NetworkConfig parameterises graph construction.
type NetworkConfig struct {
	// NodeCap bounds the number of processed records that become nodes.
	NodeCap             int     `yaml:"node_cap" json:"node_cap" toml:"node_cap"`
	SphereRadius        float64 `yaml:"sphere_radius" json:"sphere_radius" toml:"sphere_radius"`
	MaxDistanceFraction float64 `yaml:"max_distance_fraction" json:"max_distance_fraction" toml:"max_distance_fraction"`
	// FamilyTablePath optionally replaces the built-in family keyword table.
	// The file is watched and reloaded on change.
	FamilyTablePath string `yaml:"family_table_path" json:"family_table_path" toml:"family_table_path"`
}

// InteractionConfig parameterises the camera and pointer controller.
type InteractionConfig struct {
	CameraDistance  float64       `yaml:"camera_distance" json:"camera_distance" toml:"camera_distance"`
	FieldOfView     float64       `yaml:"field_of_view" json:"field_of_view" toml:"field_of_view"`
	FrameInterval   time.Duration `yaml:"frame_interval" json:"frame_interval" toml:"frame_interval"`
	FrameSendEvery  int           `yaml:"frame_send_every" json:"frame_send_every" toml:"frame_send_every"`
	DefaultViewport [2]int        `yaml:"default_viewport" json:"default_viewport" toml:"default_viewport"`
}

// Defaults returns the configuration used when nothing else is supplied.
func Defaults() *Config {
	return &Config{
		ServerAddress:     ":8080",
		Environment:       "development",
		ShutdownTimeout:   30 * time.Second,
		MemoriesAPIURL:    "http://localhost:8000",
		NotifyWSURL:       "ws://localhost:8000",
		UpstreamTimeout:   10 * time.Second,
		ReconnectDelay:    3 * time.Second,
		SnapshotCacheSize: 256,
		SnapshotTTL:       time.Minute,
		LogLevel:          "info",
		JWTIssuer:         "",
		EnableAuth:        true,
		EnableCORS:        true,
		AllowedOrigins:    []string{"http://localhost:3000"},
		Network: NetworkConfig{
			NodeCap:             50,
			SphereRadius:        6,
			MaxDistanceFraction: 0.8,
		},
		Interaction: InteractionConfig{
			CameraDistance:  15,
			FieldOfView:     60,
			FrameInterval:   16 * time.Millisecond,
			FrameSendEvery:  4,
			DefaultViewport: [2]int{800, 600},
		},
	}
}

// LoadConfig loads configuration from environment variables, optionally
// layered over the file named by CONFIG_FILE.
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := NewLoader().LoadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnvironment(cfg *Config) {
	cfg.ServerAddress = getEnv("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.IsLambda = getEnvBool("IS_LAMBDA", cfg.IsLambda || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")

	cfg.MemoriesAPIURL = getEnv("MEMORIES_API_URL", cfg.MemoriesAPIURL)
	cfg.NotifyWSURL = getEnv("NOTIFY_WS_URL", cfg.NotifyWSURL)
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	cfg.ReconnectDelay = getEnvDuration("NOTIFY_RECONNECT_DELAY", cfg.ReconnectDelay)
	cfg.SnapshotCacheSize = getEnvInt("SNAPSHOT_CACHE_SIZE", cfg.SnapshotCacheSize)
	cfg.SnapshotTTL = getEnvDuration("SNAPSHOT_TTL", cfg.SnapshotTTL)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.EnableAuth = getEnvBool("ENABLE_AUTH", cfg.EnableAuth)

	cfg.EnableMetrics = getEnvBool("ENABLE_METRICS", cfg.EnableMetrics)
	cfg.EnableTracing = getEnvBool("ENABLE_TRACING", cfg.EnableTracing)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.EnableCORS = getEnvBool("ENABLE_CORS", cfg.EnableCORS)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	cfg.Network.NodeCap = getEnvInt("NETWORK_NODE_CAP", cfg.Network.NodeCap)
	cfg.Network.SphereRadius = getEnvFloat("NETWORK_SPHERE_RADIUS", cfg.Network.SphereRadius)
	cfg.Network.MaxDistanceFraction = getEnvFloat("NETWORK_MAX_DISTANCE_FRACTION", cfg.Network.MaxDistanceFraction)
	cfg.Network.FamilyTablePath = getEnv("FAMILY_TABLE_PATH", cfg.Network.FamilyTablePath)

	cfg.Interaction.CameraDistance = getEnvFloat("CAMERA_DISTANCE", cfg.Interaction.CameraDistance)
	cfg.Interaction.FrameInterval = getEnvDuration("FRAME_INTERVAL", cfg.Interaction.FrameInterval)
	cfg.Interaction.FrameSendEvery = getEnvInt("FRAME_SEND_EVERY", cfg.Interaction.FrameSendEvery)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.IsProduction() && c.EnableAuth && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.MemoriesAPIURL == "" {
		return fmt.Errorf("MEMORIES_API_URL is required")
	}
	if c.Network.NodeCap <= 0 {
		return fmt.Errorf("network node cap must be positive, got %d", c.Network.NodeCap)
	}
	if c.Network.SphereRadius <= 0 {
		return fmt.Errorf("sphere radius must be positive, got %v", c.Network.SphereRadius)
	}
	if c.Network.MaxDistanceFraction <= 0 || c.Network.MaxDistanceFraction > 1 {
		return fmt.Errorf("max distance fraction must be in (0, 1], got %v", c.Network.MaxDistanceFraction)
	}
	if c.Interaction.CameraDistance <= c.Network.SphereRadius {
		return fmt.Errorf("camera distance %v must lie outside the sphere", c.Interaction.CameraDistance)
	}
	if c.Interaction.FieldOfView <= 0 || c.Interaction.FieldOfView >= 180 {
		return fmt.Errorf("field of view must be in (0, 180), got %v", c.Interaction.FieldOfView)
	}
	if c.Interaction.FrameInterval <= 0 {
		return fmt.Errorf("frame interval must be positive")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
