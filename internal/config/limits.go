package config

import "time"

type Limits struct {
	MaxCodeSize    int64           `yaml:"max_code_size" validate:"required,min=1024,max=10485760"`
	RequestTimeout time.Duration   `yaml:"request_timeout" validate:"required,min=1s,max=5m"`
	ShutdownGrace  time.Duration   `yaml:"shutdown_grace" validate:"required,min=1s,max=5m"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

// RateLimitConfig throttles calls from the client to the analysis service.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=6000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=100"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxCodeSize:    1 << 20,
		RequestTimeout: 30 * time.Second,
		ShutdownGrace:  10 * time.Second,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
			BurstSize:         4,
		},
	}
}
