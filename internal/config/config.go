package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the gateway and worker processes
type Config struct {
	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration (task queue)
	Redis RedisConfig

	// Logging Configuration
	Logging LoggingConfig

	// Authorization Configuration
	Auth AuthConfig

	// Swarm Configuration
	Swarm SwarmConfig

	// Storage Configuration
	Storage StorageConfig
}

// StorageConfig holds report attachment storage configuration
type StorageConfig struct {
	// UploadDir is where voice notes and photos from reports are kept.
	UploadDir string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port)
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// AuthConfig holds role-authorization configuration
type AuthConfig struct {
	// OfficialWhitelist is the static set of emails authorized for the
	// official role, fixed at process start.
	OfficialWhitelist []string
}

// SwarmConfig holds swarm analysis configuration
type SwarmConfig struct {
	// TopologyFile optionally points at a YAML village topology definition.
	// Empty means the built-in topology is used.
	TopologyFile string

	// SweepSchedule is a cron expression for the periodic outbreak sweep.
	SweepSchedule string
}

// defaultWhitelist gates the official dashboard when OFFICIAL_WHITELIST is unset.
var defaultWhitelist = []string{
	"soham.pethkar1710@gmail.com",
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "sanket.sqlite"
	}

	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}

	whitelist := parseWhitelist(os.Getenv("OFFICIAL_WHITELIST"))
	if len(whitelist) == 0 {
		whitelist = defaultWhitelist
	}

	sweepSchedule := os.Getenv("SWEEP_SCHEDULE")
	if sweepSchedule == "" {
		sweepSchedule = "0 * * * *" // hourly
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	return &Config{
		Database: DatabaseConfig{
			URL: dbURL,
		},
		Redis: RedisConfig{
			Address: redisAddr,
		},
		Logging: LoggingConfig{
			Level:  logLevel,
			Format: logFormat,
		},
		Auth: AuthConfig{
			OfficialWhitelist: whitelist,
		},
		Swarm: SwarmConfig{
			TopologyFile:  os.Getenv("SWARM_TOPOLOGY_FILE"),
			SweepSchedule: sweepSchedule,
		},
		Storage: StorageConfig{
			UploadDir: uploadDir,
		},
	}, nil
}

// parseWhitelist splits a comma-separated email list, dropping empty entries
func parseWhitelist(raw string) []string {
	if raw == "" {
		return nil
	}

	var emails []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			emails = append(emails, part)
		}
	}
	return emails
}
