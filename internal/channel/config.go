package channel

import (
	"os"
	"strconv"
	"time"
)

// Config 控制设备通道与连接重试行为。
type Config struct {
	// Endpoint 为流式端点：host:port、unix:/path 或 vsock:cid:port。
	Endpoint string `yaml:"endpoint"`
	// SerialPort 非空时优先使用串口；"auto" 表示取第一个枚举到的端口。
	SerialPort      string        `yaml:"serial_port"`
	BaudRate        int           `yaml:"baud_rate"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
	ReadBufferSize  int           `yaml:"read_buffer"`
	MaxBuffer       int           `yaml:"max_buffer"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	Backoff         BackoffConfig `yaml:"backoff"`
}

// BackoffConfig 决定连接重试的指数退避参数。
type BackoffConfig struct {
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
	Jitter  float64       `yaml:"jitter"`
}

// DefaultConfig 返回本地模拟器的默认值。
func DefaultConfig() Config {
	return Config{
		Endpoint:        "127.0.0.1:30121",
		BaudRate:        115200,
		DialTimeout:     2 * time.Second,
		CallTimeout:     5 * time.Second,
		ReadBufferSize:  4 * 1024,
		MaxBuffer:       1 << 20,
		ConnectAttempts: 3,
		Backoff: BackoffConfig{
			Initial: 100 * time.Millisecond,
			Max:     2 * time.Second,
			Jitter:  0.2,
		},
	}
}

// LoadConfigFromEnv 在默认值之上叠加 JADE_* 环境变量。
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv 用已设置的 JADE_* 环境变量覆盖当前值。
func (c *Config) ApplyEnv() {
	if v := os.Getenv("JADE_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("JADE_SERIAL_PORT"); v != "" {
		c.SerialPort = v
	}
	if v := readInt("JADE_BAUD_RATE"); v > 0 {
		c.BaudRate = v
	}
	if d := readDuration("JADE_DIAL_TIMEOUT"); d > 0 {
		c.DialTimeout = d
	}
	if d := readDuration("JADE_CALL_TIMEOUT"); d > 0 {
		c.CallTimeout = d
	}
	if v := readInt("JADE_READ_BUFFER"); v > 0 {
		c.ReadBufferSize = v
	}
	if v := readInt("JADE_MAX_BUFFER"); v > 0 {
		c.MaxBuffer = v
	}
	if v := readInt("JADE_CONNECT_ATTEMPTS"); v > 0 {
		c.ConnectAttempts = v
	}
	if d := readDuration("JADE_RETRY_INITIAL"); d > 0 {
		c.Backoff.Initial = d
	}
	if d := readDuration("JADE_RETRY_MAX"); d > 0 {
		c.Backoff.Max = d
	}
	if j := readFloat("JADE_RETRY_JITTER"); j >= 0 {
		c.Backoff.Jitter = j
	}
	if c.Backoff.Max < c.Backoff.Initial {
		c.Backoff.Max = c.Backoff.Initial
	}
}

func readInt(key string) int {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return v
}

func readDuration(key string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func readFloat(key string) float64 {
	value := os.Getenv(key)
	if value == "" {
		return -1
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return -1
	}
	return v
}
