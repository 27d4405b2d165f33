package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sakashimaa/go-pet-project/pkg/utils"
)

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"local"`
	Log        Log        `yaml:"log"`
	HTTP       HTTP       `yaml:"http"`
	GRPC       GRPC       `yaml:"grpc"`
	Postgres   PG         `yaml:"postgres"`
	Redis      Redis      `yaml:"redis"`
	Kafka      Kafka      `yaml:"kafka"`
	Services   Services   `yaml:"services"`
	Resilience Resilience `yaml:"resilience"`
	Outbox     Outbox     `yaml:"outbox"`
	Limiter    Limiter    `yaml:"limiter"`
	Tracing    Tracing    `yaml:"tracing"`
	Inventory  Inventory  `yaml:"inventory"`
	Metrics    Metrics    `yaml:"metrics"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type GRPC struct {
	Port string `yaml:"port" env:"GRPC_PORT" env-default:":50053"`
}

type PG struct {
	URL             string        `yaml:"url" env:"DB_URL"`
	MaxConns        int32         `yaml:"max_conns" env-default:"10"`
	MinConns        int32         `yaml:"min_conns" env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env-default:"1h"`
}

type Redis struct {
	Addr           string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password       string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB             int           `yaml:"db" env-default:"0"`
	CacheTTL       time.Duration `yaml:"cache_ttl" env-default:"10m"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" env-default:"24h"`
	ClaimTTL       time.Duration `yaml:"idempotency_claim_ttl" env-default:"1m"`
}

type Kafka struct {
	Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	GroupID      string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"order-service-group"`
	OrderTopic   string   `yaml:"order_topic" env-default:"order_events"`
	PaymentTopic string   `yaml:"payment_topic" env-default:"payment_events"`
}

type Services struct {
	CatalogURL string `yaml:"catalog_url" env:"CATALOG_URL" env-default:"http://localhost:3002"`
	StockURL   string `yaml:"stock_url" env:"STOCK_URL" env-default:"http://localhost:3002"`
	PaymentURL string `yaml:"payment_url" env:"PAYMENT_URL" env-default:"http://localhost:3003"`
}

// Resilience holds the knobs shared by every remote call site. Each call site gets its own
// breaker built from these values.
type Resilience struct {
	CallTimeout         time.Duration `yaml:"call_timeout" env-default:"2s"`
	MaxAttempts         uint64        `yaml:"max_attempts" env-default:"3"`
	InitialBackoff      time.Duration `yaml:"initial_backoff" env-default:"100ms"`
	MaxBackoff          time.Duration `yaml:"max_backoff" env-default:"1s"`
	Multiplier          float64       `yaml:"multiplier" env-default:"2"`
	RandomizationFactor float64       `yaml:"randomization_factor" env-default:"0.5"`
	FailureRatio        float64       `yaml:"failure_ratio" env-default:"0.6"`
	MinRequests         uint32        `yaml:"min_requests" env-default:"5"`
	Interval            time.Duration `yaml:"interval" env-default:"10s"`
	OpenTimeout         time.Duration `yaml:"open_timeout" env-default:"10s"`
	HalfOpenRequests    uint32        `yaml:"half_open_requests" env-default:"1"`
}

type Outbox struct {
	BatchSize   int           `yaml:"batch_size" env-default:"50"`
	Interval    time.Duration `yaml:"interval" env-default:"500ms"`
	MaxAttempts int           `yaml:"max_attempts" env-default:"10"`
}

type Limiter struct {
	Max        int           `yaml:"max" env-default:"20"`
	Expiration time.Duration `yaml:"expiration" env-default:"5s"`
}

type Inventory struct {
	LowStockThreshold int32 `yaml:"low_stock_threshold" env:"LOW_STOCK_THRESHOLD" env-default:"10"`
}

type Metrics struct {
	Port string `yaml:"port" env:"METRICS_PORT" env-default:":9091"`
}

type Tracing struct {
	Endpoint string `yaml:"endpoint" env:"JAEGER_ENDPOINT" env-default:"localhost:4318"`
}

func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	return cfg
}
