package rembg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chaos-io/rembg-tool/config"
)

var ErrRemoval = errors.New("background removal failed")

// Remover 输入 PNG，输出同尺寸、背景透明的 PNG
type Remover interface {
	Remove(ctx context.Context, png []byte) ([]byte, error)
}

// Pinger 检查抠图服务是否可用
type Pinger interface {
	Ping(ctx context.Context) error
}

// Passthrough 不做抠图，原样返回
type Passthrough struct{}

func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

func (p *Passthrough) Remove(ctx context.Context, png []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoval, err)
	}
	return bytes.Clone(png), nil
}

func (p *Passthrough) Ping(context.Context) error {
	return nil
}

// New 按配置创建抠图后端
func New(cfg *config.Config) (Remover, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return NewPassthrough(), nil
	case config.BackendComfyUI:
		var workflow []byte
		if cfg.ComfyUI.WorkflowFile != "" {
			data, err := os.ReadFile(cfg.ComfyUI.WorkflowFile)
			if err != nil {
				return nil, fmt.Errorf("read workflow file: %w", err)
			}
			workflow = data
		}
		return NewBiRefNetRemBG(cfg.ComfyUI.BaseURL, cfg.PollInterval(), workflow)
	case config.BackendRembg:
		return NewRembgServer(cfg.Rembg.BaseURL, cfg.Rembg.Model), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
