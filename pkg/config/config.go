package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	JWT      JWTConfig
	Dispatch DispatchConfig
	Pricing  PricingConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxConns     int
	MinConns     int
	QueryTimeout time.Duration // per-statement read budget
	TxTimeout    time.Duration // completion transaction budget
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool // when false the driver store and bus run in-process only
}

// NATSConfig holds NATS event bus configuration
type NATSConfig struct {
	URL     string
	Enabled bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string
	Expiration int // in hours
}

// DispatchConfig tunes the geospatial index and the offer fan-out.
type DispatchConfig struct {
	H3Resolution        int
	MaxKRing            int
	NearbyRadiusKm      float64
	HeartbeatStaleness  time.Duration
	LocationFlushPeriod time.Duration
	StatusFlushPeriod   time.Duration
	MaxPublishRetries   int
	MaxFlushRetries     int
}

// VehicleRate is one vehicle class's fare schedule.
type VehicleRate struct {
	BaseFare  float64
	PerKm     float64
	PerMinute float64
}

// PricingConfig holds the rate card, fee schedule, and commission
// defaults. The commission rate may still be overridden at runtime by
// the platform_fee_rate row in the platform_config table.
type PricingConfig struct {
	CommissionRate       float64
	ServiceFee           float64
	InsuranceFee         float64
	PlatformFee          float64
	StopRidingFee        float64
	StopRidingFeeEnabled bool

	CabRate  VehicleRate
	AutoRate VehicleRate
	BikeRate VehicleRate
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			DBName:       getEnv("DB_NAME", "ridedispatch"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxConns:     getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:     getEnvAsInt("DB_MIN_CONNS", 5),
			QueryTimeout: getEnvAsDuration("DB_QUERY_TIMEOUT_MS", 5000),
			TxTimeout:    getEnvAsDuration("DB_TX_TIMEOUT_MS", 15000),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", false),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Expiration: getEnvAsInt("JWT_EXPIRATION", 24),
		},
		Dispatch: DispatchConfig{
			H3Resolution:        getEnvAsInt("H3_RESOLUTION", 9),
			MaxKRing:            getEnvAsInt("H3_MAX_K", 3),
			NearbyRadiusKm:      getEnvAsFloat("NEARBY_RADIUS_KM", 10.0),
			HeartbeatStaleness:  getEnvAsDuration("HEARTBEAT_STALENESS_MS", 5*60*1000),
			LocationFlushPeriod: getEnvAsDuration("LOCATION_FLUSH_MS", 2000),
			StatusFlushPeriod:   getEnvAsDuration("STATUS_FLUSH_MS", 500),
			MaxPublishRetries:   getEnvAsInt("DISPATCH_MAX_PUBLISH_RETRIES", 3),
			MaxFlushRetries:     getEnvAsInt("FLUSH_MAX_RETRIES", 3),
		},
		Pricing: PricingConfig{
			CommissionRate:       getEnvAsFloat("COMMISSION_RATE", 0.20),
			ServiceFee:           getEnvAsFloat("SERVICE_FEE", 10),
			InsuranceFee:         getEnvAsFloat("INSURANCE_FEE", 2),
			PlatformFee:          getEnvAsFloat("PLATFORM_FEE", 10),
			StopRidingFee:        getEnvAsFloat("STOP_RIDING_FEE", 10),
			StopRidingFeeEnabled: getEnvAsBool("STOP_RIDING_FEE_ENABLED", true),
			CabRate: VehicleRate{
				BaseFare:  getEnvAsFloat("CAB_BASE_FARE", 30),
				PerKm:     getEnvAsFloat("CAB_PER_KM", 15),
				PerMinute: getEnvAsFloat("CAB_PER_MIN", 1.5),
			},
			AutoRate: VehicleRate{
				BaseFare:  getEnvAsFloat("AUTO_BASE_FARE", 30),
				PerKm:     getEnvAsFloat("AUTO_PER_KM", 10),
				PerMinute: getEnvAsFloat("AUTO_PER_MIN", 1.0),
			},
			BikeRate: VehicleRate{
				BaseFare:  getEnvAsFloat("BIKE_BASE_FARE", 20),
				PerKm:     getEnvAsFloat("BIKE_PER_KM", 7),
				PerMinute: getEnvAsFloat("BIKE_PER_MIN", 1.0),
			},
		},
	}

	if cfg.Dispatch.H3Resolution < 7 || cfg.Dispatch.H3Resolution > 10 {
		return nil, fmt.Errorf("H3_RESOLUTION must be between 7 and 10, got %d", cfg.Dispatch.H3Resolution)
	}
	if cfg.Dispatch.MaxKRing < 1 {
		cfg.Dispatch.MaxKRing = 1
	}
	if cfg.Pricing.CommissionRate < 0 || cfg.Pricing.CommissionRate >= 1 {
		return nil, fmt.Errorf("COMMISSION_RATE must be in [0,1), got %f", cfg.Pricing.CommissionRate)
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultMillis int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultMillis)) * time.Millisecond
}
