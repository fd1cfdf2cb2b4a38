package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration for both the server and the
// device agent. Each deployable reads only the sections it needs.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HTTPAddr string

	// Intake rate limiting (per-organization token bucket).
	IngestRateLimit float64
	IngestBurst     int

	// Default geofence radius applied when a site is created without one.
	DefaultGeofenceRadiusM float64

	Agent AgentConfig
}

// AgentConfig configures the device-side capture and sync agent.
type AgentConfig struct {
	QueuePath        string
	ServerURL        string
	OrganizationID   string
	DeviceID         string
	SyncInterval     time.Duration
	BatchSize        int
	AbandonCeiling   int
	DriftTolerance   time.Duration
	RequestTimeout   time.Duration
	ResiliencePreset string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "presence"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "presence"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		IngestRateLimit: getenvFloat("INGEST_RATE_LIMIT", 5),
		IngestBurst:     getenvInt("INGEST_BURST", 20),

		DefaultGeofenceRadiusM: getenvFloat("DEFAULT_GEOFENCE_RADIUS_M", 150),

		Agent: AgentConfig{
			QueuePath:        getenv("AGENT_QUEUE_PATH", "presence-agent.db"),
			ServerURL:        getenv("AGENT_SERVER_URL", "http://localhost:8080"),
			OrganizationID:   getenv("AGENT_ORGANIZATION_ID", ""),
			DeviceID:         getenv("AGENT_DEVICE_ID", ""),
			SyncInterval:     getenvDuration("AGENT_SYNC_INTERVAL", 30*time.Second),
			BatchSize:        getenvInt("AGENT_BATCH_SIZE", 25),
			AbandonCeiling:   getenvInt("AGENT_ABANDON_CEILING", 10),
			DriftTolerance:   getenvDuration("AGENT_DRIFT_TOLERANCE", 2*time.Minute),
			RequestTimeout:   getenvDuration("AGENT_REQUEST_TIMEOUT", 10*time.Second),
			ResiliencePreset: getenv("AGENT_RESILIENCE_PRESET", "standard"),
		},
	}
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
