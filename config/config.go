package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	BackendNone    = "none"
	BackendComfyUI = "comfyui"
	BackendRembg   = "rembg"
)

type Config struct {
	Backend        string        `json:"backend"`
	ComfyUI        ComfyUIConfig `json:"comfyui"`
	Rembg          RembgConfig   `json:"rembg"`
	TimeoutSeconds int           `json:"timeoutSeconds"`
	// MaxInputSize 送去抠图前最长边的上限，0 表示不限制
	MaxInputSize int          `json:"maxInputSize"`
	Server       ServerConfig `json:"server"`
	LogLevel     string       `json:"logLevel"`
}

// ComfyUIConfig BiRefNet 工作流所在的 ComfyUI 服务
type ComfyUIConfig struct {
	BaseURL      string `json:"baseUrl"`
	WorkflowFile string `json:"workflowFile"` // 为空时使用内置 workflow.json
	PollMillis   int    `json:"pollMillis"`
}

// RembgConfig rembg 的 HTTP 服务（rembg s）
type RembgConfig struct {
	BaseURL string `json:"baseUrl"`
	Model   string `json:"model"`
}

type ServerConfig struct {
	Addr       string `json:"addr"`
	HealthCron string `json:"healthCron"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend: BackendComfyUI,
		ComfyUI: ComfyUIConfig{
			BaseURL:    "http://127.0.0.1:8188/",
			PollMillis: 500,
		},
		Rembg: RembgConfig{
			BaseURL: "http://127.0.0.1:7000/",
		},
		TimeoutSeconds: 120,
		Server: ServerConfig{
			Addr:       ":8080",
			HealthCron: "@every 1m",
		},
		LogLevel: "info",
	}
}

// Load 从文件加载配置，path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := DefaultConfig()
		if err := applyEnvOverrides(cfg); err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return LoadFromReader(f)
}

func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// applyEnvOverrides 用 REMBG_ 前缀的环境变量覆盖配置
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"REMBG_BACKEND":              &cfg.Backend,
		"REMBG_COMFYUI_BASEURL":      &cfg.ComfyUI.BaseURL,
		"REMBG_COMFYUI_WORKFLOWFILE": &cfg.ComfyUI.WorkflowFile,
		"REMBG_REMBG_BASEURL":        &cfg.Rembg.BaseURL,
		"REMBG_REMBG_MODEL":          &cfg.Rembg.Model,
		"REMBG_SERVER_ADDR":          &cfg.Server.Addr,
		"REMBG_SERVER_HEALTHCRON":    &cfg.Server.HealthCron,
		"REMBG_LOGLEVEL":             &cfg.LogLevel,
	}
	for env, ptr := range strs {
		if val := os.Getenv(env); val != "" {
			*ptr = val
		}
	}

	ints := map[string]*int{
		"REMBG_TIMEOUTSECONDS":     &cfg.TimeoutSeconds,
		"REMBG_MAXINPUTSIZE":       &cfg.MaxInputSize,
		"REMBG_COMFYUI_POLLMILLIS": &cfg.ComfyUI.PollMillis,
	}
	for env, ptr := range ints {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", env, val, err)
		}
		*ptr = n
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNone:
	case BackendComfyUI:
		if c.ComfyUI.BaseURL == "" {
			return fmt.Errorf("comfyui.baseUrl is required for backend %q", c.Backend)
		}
		if c.ComfyUI.PollMillis <= 0 {
			return fmt.Errorf("comfyui.pollMillis must be positive, got %d", c.ComfyUI.PollMillis)
		}
	case BackendRembg:
		if c.Rembg.BaseURL == "" {
			return fmt.Errorf("rembg.baseUrl is required for backend %q", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeoutSeconds must be positive, got %d", c.TimeoutSeconds)
	}
	if c.MaxInputSize < 0 {
		return fmt.Errorf("maxInputSize must not be negative, got %d", c.MaxInputSize)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.ComfyUI.PollMillis) * time.Millisecond
}

// SlogLevel 日志级别，非法值在 Validate 中已经拦截
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
