package config // package config loads application configuration from environment variables

import (
    "os"
    "strconv"
)

// Config holds the required runtime settings.  Optional subsystems have
// their own loaders (LoadCacheConfig, LoadRateLimitConfig,
// LoadProvisionConfig, LoadStorageConfig) with defaults.
type Config struct {
    Env            string // dev, test or prod
    Port           string // HTTP port to listen on
    DBUser         string
    DBPass         string // may be empty
    DBHost         string
    DBPort         string
    DBName         string
    JWTSecret      string
    AccessTTLMin   int // access token lifetime in minutes
    RefreshTTLDays int // refresh token lifetime in days
    BcryptCost     int
    AMQPURL        string // RabbitMQ URL; events are skipped when empty
    AutoMigrate    bool   // apply the embedded schema at start-up
}

// Load reads Config from the environment.  Missing required variables
// stop the process.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),
        Port:           must("APP_PORT"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"),
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:     mustInt("BCRYPT_COST"),
        AMQPURL:        amqpURL(),
        AutoMigrate:    envBool("DB_AUTO_MIGRATE", true),
    }
}

func amqpURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        GetLogger().WithField("env", key).Fatal("missing required env var")
    }
    return v
}

func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        GetLogger().WithFields(map[string]interface{}{"env": key, "value": s}).Fatal("invalid int env var")
    }
    return n
}
