package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aegis-sign/jadelink/internal/channel"
	"github.com/aegis-sign/jadelink/internal/relay"
	"gopkg.in/yaml.v3"
)

// Config 是 jadectl 的完整配置。
type Config struct {
	Network string         `yaml:"network"`
	Device  channel.Config `yaml:"device"`
	Relay   relay.Config   `yaml:"relay"`
	Log     LogConfig      `yaml:"log"`
	Bridge  BridgeConfig   `yaml:"bridge"`
}

// LogConfig 控制日志级别与格式。
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BridgeConfig 控制本地 HTTP 桥。
type BridgeConfig struct {
	Addr string `yaml:"addr"`
}

// Default 返回默认配置。
func Default() Config {
	return Config{
		Network: "mainnet",
		Device:  channel.DefaultConfig(),
		Relay:   relay.DefaultConfig(),
		Log:     LogConfig{Level: "info", Format: "text"},
		Bridge:  BridgeConfig{Addr: "127.0.0.1:8080"},
	}
}

// Load 读取 YAML 文件（path 为空时只用默认值），再叠加 JADE_* 环境变量。
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Device.ApplyEnv()
	if v := os.Getenv("JADE_NETWORK"); v != "" {
		c.Network = v
	}
	if v := os.Getenv("JADE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("JADE_BRIDGE_ADDR"); v != "" {
		c.Bridge.Addr = v
	}
	if v := os.Getenv("JADE_RELAY_ALLOWED_PREFIXES"); v != "" {
		c.Relay.AllowedPrefixes = splitList(v)
	}
}

func (c *Config) validate() error {
	def := Default()
	if c.Network == "" {
		c.Network = def.Network
	}
	if c.Device.Endpoint == "" && c.Device.SerialPort == "" {
		return errors.New("config: device.endpoint or device.serial_port is required")
	}
	if c.Device.CallTimeout <= 0 {
		c.Device.CallTimeout = def.Device.CallTimeout
	}
	if c.Device.ConnectAttempts <= 0 {
		c.Device.ConnectAttempts = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "":
		c.Log.Format = def.Log.Format
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.Bridge.Addr == "" {
		c.Bridge.Addr = def.Bridge.Addr
	}
	return nil
}

// SlogLevel 解析日志级别。
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}

// NewLogger 按配置构建 slog Logger。
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
