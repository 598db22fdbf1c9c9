package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const defaultConfigPath = "./config/config.yaml"

type Config struct {
	Env            string `yaml:"env" env:"ENV" env-default:"local"`
	StorageDriver  string `yaml:"storage_driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	StoragePath    string `yaml:"storage_path" env:"STORAGE_PATH"`
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"MIGRATE_ON_START" env-default:"true"`
	RedisAddr      string `yaml:"redis_addr" env:"REDIS_ADDR"`
	NatsURL        string `yaml:"nats_url" env:"NATS_URL"`
	Timezone       string `yaml:"timezone" env:"TZ_NAME" env-default:"Europe/Berlin"`
	HTTPServer     `yaml:"http_server"`
	Scheduling     `yaml:"scheduling"`
	Auth           `yaml:"auth"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

type Scheduling struct {
	LockTTL            time.Duration `yaml:"lock_ttl" env-default:"10s"`
	LockWait           time.Duration `yaml:"lock_wait" env-default:"2s"`
	DBLockTimeout      time.Duration `yaml:"db_lock_timeout" env-default:"3s"`
	WeekDays           int           `yaml:"week_days" env-default:"5"`
	ListLimit          int           `yaml:"list_limit" env-default:"100"`
	DefaultBlockReason string        `yaml:"default_block_reason" env-default:"Beratung"`
	DefaultMaxStudents int           `yaml:"default_max_students" env-default:"200"`
}

type Auth struct {
	UserHeader   string `yaml:"user_header" env-default:"X-Iserv-User"`
	NameHeader   string `yaml:"name_header" env-default:"X-Iserv-Name"`
	GroupsHeader string `yaml:"groups_header" env-default:"X-Iserv-Groups"`
	AdminGroup   string `yaml:"admin_group" env-default:"sportoase-admin"`
}

func MustLoad() *Config {
	cfg, err := Load(configPath())
	if err != nil {
		log.Fatalf("Failed to read config: %v", err)
	}

	return cfg
}

// Load reads the YAML file at path with env overrides. A missing file falls back to env only.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load(".env")

	var cfg Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigPath
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
