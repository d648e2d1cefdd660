package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sabyrkhan/cafe-pos/pkg/utils"
)

type Config struct {
	Env       string    `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTP      `yaml:"http"`
	Postgres  PG        `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	Kafka     Kafka     `yaml:"kafka"`
	Auth      Auth      `yaml:"auth"`
	Dashboard Dashboard `yaml:"dashboard"`
	Loyalty   Loyalty   `yaml:"loyalty"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type PG struct {
	URL string `yaml:"url" env:"DB_URL"`
}

type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type Kafka struct {
	Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	OrderTopic  string   `yaml:"order_topic" env:"ORDER_TOPIC" env-default:"order_events"`
	GroupPrefix string   `yaml:"group_prefix" env-default:"cafe-pos"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type Dashboard struct {
	TopProducts int           `yaml:"top_products" env-default:"5"`
	CacheTTL    time.Duration `yaml:"cache_ttl" env-default:"15s"`
}

type Loyalty struct {
	// LinkBase is the customer-facing page live short links redirect to.
	LinkBase string        `yaml:"link_base" env:"LOYALTY_LINK_BASE" env-default:"https://loyalty.local/c"`
	LinkTTL  time.Duration `yaml:"link_ttl" env-default:"0"`
}

func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exists: %v\n", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	return &cfg
}
