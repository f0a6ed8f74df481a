package relay

import "time"

// Config 控制代设备发起的 HTTP 请求。
type Config struct {
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	RateBurst int           `yaml:"rate_burst"`
	// AllowedPrefixes 非空时只请求以其中之一开头的 URL。
	AllowedPrefixes []string `yaml:"allowed_prefixes"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
}

// DefaultConfig 返回默认值。
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		RateLimit:    5,
		RateBurst:    2,
		MaxBodyBytes: 1 << 20,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	return c
}
