package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env:"BIND_IP" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env:"PORT" env-default:"8080"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env:"MONGO_ENABLED" env-default:"false"`
	Host     string `yaml:"host" env:"MONGO_HOST" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
	User     string `yaml:"user" env:"MONGO_USER" env-default:""`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"wedlink"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"127.0.0.1:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Prefix   string `yaml:"prefix" env-default:"wedlink:"`
}

// CacheConfig controls the public slug lookup cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"60s"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-default:""`
	Issuer    string `yaml:"issuer" env-default:""`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	ApiKey   string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
	LogLevel string `yaml:"log_level" env-default:"warn"`
}

type SendGridConfig struct {
	ApiKey    string `yaml:"api_key" env:"SENDGRID_API_KEY" env-default:""`
	FromName  string `yaml:"from_name" env-default:"wedlink"`
	FromEmail string `yaml:"from_email" env-default:"no-reply@wedlink.app"`
}

type CloudinaryConfig struct {
	CloudName string `yaml:"cloud_name" env:"CLOUDINARY_CLOUD_NAME" env-default:""`
	ApiKey    string `yaml:"api_key" env:"CLOUDINARY_API_KEY" env-default:""`
	ApiSecret string `yaml:"api_secret" env:"CLOUDINARY_API_SECRET" env-default:""`
	Folder    string `yaml:"folder" env-default:"invitations"`
}

// EditorConfig controls edit sessions of the save pipeline.
type EditorConfig struct {
	SessionIdle   time.Duration `yaml:"session_idle" env-default:"2h"`
	SweepSchedule string        `yaml:"sweep_schedule" env-default:"@every 10m"`
	MaxUploadMB   int64         `yaml:"max_upload_mb" env-default:"10"`
}

type Config struct {
	Env           string           `yaml:"env" env:"ENV" env-default:"local"`
	PublicBaseURL string           `yaml:"public_base_url" env:"PUBLIC_BASE_URL" env-default:"http://localhost:8080"`
	Listen        Listen           `yaml:"listen"`
	Mongo         MongoConfig      `yaml:"mongo"`
	Redis         RedisConfig      `yaml:"redis"`
	Cache         CacheConfig      `yaml:"cache"`
	Auth          AuthConfig       `yaml:"auth"`
	Telegram      TelegramConfig   `yaml:"telegram"`
	SendGrid      SendGridConfig   `yaml:"sendgrid"`
	Cloudinary    CloudinaryConfig `yaml:"cloudinary"`
	Editor        EditorConfig     `yaml:"editor"`
}

var instance *Config
var once sync.Once

// Load reads path and applies environment overrides.
func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("config: %s; %s", err, desc)
	}
	if conf.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("config: auth.jwt_secret is required")
	}
	return conf, nil
}

func MustLoad(path string) *Config {
	once.Do(func() {
		var err error
		instance, err = Load(path)
		if err != nil {
			log.Fatal(err)
		}
	})
	return instance
}
