package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"4000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Upstream struct {
		BaseURL        string `env:"BASE_URL,required"`
		RequestTimeout int    `env:"REQUEST_TIMEOUT" envDefault:"10"`
		RetryMax       int    `env:"RETRY_MAX" envDefault:"3"`
	} `envPrefix:"UPSTREAM_"`
	Calendar struct {
		// 拉取范围在可见窗口前后各加的缓冲天数，这样用户前后翻一页不需要立刻重新拉取
		BufferDays int `env:"BUFFER_DAYS" envDefault:"7"`
		// 一次请求允许的最大天数，防止超大范围查询拖垮上游
		MaxRangeDays int `env:"MAX_RANGE_DAYS" envDefault:"93"`
	} `envPrefix:"CALENDAR_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"1209600"` // 14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Redis struct {
		Host             string `env:"HOST" envDefault:"localhost"`
		Port             int    `env:"PORT" envDefault:"6379"`
		Password         string `env:"PASSWORD,required"`
		OperationTimeout int    `env:"OPERATION_TIMEOUT" envDefault:"10"`
		CacheExpiration  int    `env:"CACHE_EXPIRATION" envDefault:"300"` // 数据集缓存的过期时间（秒）
	} `envPrefix:"REDIS_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	MockPlatform struct {
		Port         string `env:"PORT" envDefault:"4100"`
		SeedPassword string `env:"SEED_PASSWORD" envDefault:"password"`
		SeedUsers    int    `env:"SEED_USERS" envDefault:"5"`
	} `envPrefix:"MOCK_PLATFORM_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
	}

	return cfg, nil
}
