package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	LockModeAccount = "account"
	LockModeStriped = "striped"
)

type Config struct {
	Port            string
	StoreBackend    string
	LockMode        string
	LockStripes     int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MemoryThrottle  time.Duration
}

// Load reads configFile (usually .env) when present, lets environment variables override it,
// and fills in defaults. Database and Redis settings stay in viper for the database package.
func Load(configFile string) (*Config, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}
	viper.AutomaticEnv()

	bindEnv()
	setDefaults()

	if configFile != "" {
		if err := viper.ReadInConfig(); err != nil {
			log.Printf("Config file not found, using defaults: %v", err)
		} else {
			promoteFileValues()
		}
	}

	cfg := &Config{
		Port:            viper.GetString("server.port"),
		StoreBackend:    viper.GetString("store.backend"),
		LockMode:        viper.GetString("lock.mode"),
		LockStripes:     viper.GetInt("lock.stripes"),
		ReadTimeout:     viper.GetDuration("server.read_timeout"),
		WriteTimeout:    viper.GetDuration("server.write_timeout"),
		ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
		MemoryThrottle:  viper.GetDuration("memory.throttle"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKeys maps viper keys to the environment variables (and .env entries) that set them.
var envKeys = []struct{ key, env string }{
	{"server.port", "PORT"},
	{"server.read_timeout", "SERVER_READ_TIMEOUT"},
	{"server.write_timeout", "SERVER_WRITE_TIMEOUT"},
	{"server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT"},

	{"store.backend", "STORE_BACKEND"},
	{"memory.throttle", "MEMORY_THROTTLE"},

	{"lock.mode", "LOCK_MODE"},
	{"lock.stripes", "LOCK_STRIPES"},

	{"database.host", "DATABASE_HOST"},
	{"database.port", "DATABASE_PORT"},
	{"database.user", "DATABASE_USER"},
	{"database.password", "DATABASE_PASSWORD"},
	{"database.name", "DATABASE_NAME"},
	{"database.ssl_mode", "DATABASE_SSL_MODE"},

	{"redis.host", "REDIS_HOST"},
	{"redis.port", "REDIS_PORT"},
	{"redis.password", "REDIS_PASSWORD"},
	{"redis.db", "REDIS_DB"},
}

func bindEnv() {
	for _, e := range envKeys {
		viper.BindEnv(e.key, e.env)
	}
}

// promoteFileValues copies flat .env entries onto their dotted keys. Values from the file sit
// below environment variables and above defaults.
func promoteFileValues() {
	for _, e := range envKeys {
		if v := viper.Get(strings.ToLower(e.env)); v != nil {
			viper.SetDefault(e.key, v)
		}
	}
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)

	viper.SetDefault("store.backend", BackendMemory)
	viper.SetDefault("memory.throttle", time.Duration(0))

	viper.SetDefault("lock.mode", LockModeAccount)
	viper.SetDefault("lock.stripes", 1024)
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}

	switch c.LockMode {
	case LockModeAccount, LockModeStriped:
	default:
		return fmt.Errorf("config: unknown lock mode %q", c.LockMode)
	}

	if c.LockMode == LockModeStriped && c.LockStripes <= 0 {
		return fmt.Errorf("config: lock stripes must be positive, got %d", c.LockStripes)
	}
	return nil
}
