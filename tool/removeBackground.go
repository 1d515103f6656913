package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chaos-io/rembg-tool/imaging"
	"github.com/chaos-io/rembg-tool/rembg"
)

const (
	RemoveBackgroundName    = "remove_background"
	RemoveBackgroundMessage = "Background has been removed"

	// 任何 alpha > 0 的像素都算主体
	trimThreshold = 0
	logPrefixLen  = 10
)

var removeBackgroundDefinition = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        RemoveBackgroundName,
		Description: "Remove the background from an image. The background should be removed if the image is a logo or an icon.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"imageBase64": {"type": "string", "description": "The base64 encoded string"}
			},
			"required": ["imageBase64"]
		}`),
	},
}

type RemoveBackgroundArgs struct {
	ImageBase64 string `json:"imageBase64"`
}

// RemoveBackgroundTool 去背景并裁掉四周的透明像素，输出 PNG
type RemoveBackgroundTool struct {
	remover      rembg.Remover
	maxInputSize int
	timeout      time.Duration
}

// NewRemoveBackgroundTool maxInputSize、timeout 为 0 时不限制
func NewRemoveBackgroundTool(remover rembg.Remover, maxInputSize int, timeout time.Duration) *RemoveBackgroundTool {
	return &RemoveBackgroundTool{
		remover:      remover,
		maxInputSize: maxInputSize,
		timeout:      timeout,
	}
}

func (t *RemoveBackgroundTool) Name() string {
	return RemoveBackgroundName
}

func (t *RemoveBackgroundTool) Definition() openai.Tool {
	return copyDefinition(removeBackgroundDefinition)
}

func (t *RemoveBackgroundTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	if len(bytes.TrimSpace(args)) == 0 {
		return nil, fmt.Errorf("%w: empty arguments", ErrInvalidArguments)
	}

	var in RemoveBackgroundArgs
	if err := jsonAPI.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if in.ImageBase64 == "" {
		return nil, fmt.Errorf("%w: imageBase64 is required", ErrInvalidArguments)
	}
	return t.Perform(ctx, in.ImageBase64)
}

// Perform 解码 -> 转 PNG -> 抠图 -> 补 alpha -> 裁剪 -> 编码
func (t *RemoveBackgroundTool) Perform(ctx context.Context, imageBase64 string) (*Result, error) {
	slog.Info("[ REMOVE BACKGROUND ]", "input", imageBase64[:min(logPrefixLen, len(imageBase64))])

	data, err := imaging.DecodeBase64(imageBase64)
	if err != nil {
		return nil, err
	}

	pngData, err := imaging.ToPNG(data, t.maxInputSize)
	if err != nil {
		return nil, fmt.Errorf("normalize input: %w", err)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	removed, err := t.remover.Remove(ctx, pngData)
	if err != nil {
		if !errors.Is(err, rembg.ErrRemoval) {
			err = fmt.Errorf("%w: %w", rembg.ErrRemoval, err)
		}
		return nil, err
	}

	img, _, err := imaging.Decode(removed)
	if err != nil {
		return nil, fmt.Errorf("%w: decode removal result: %w", rembg.ErrRemoval, err)
	}
	nrgba := imaging.EnsureAlpha(img)
	slog.Debug("background removed",
		"elapsed", time.Since(start),
		"bounds", nrgba.Bounds().String(),
		"transparent", imaging.HasTransparency(nrgba))

	trimmed, err := imaging.Trim(nrgba, trimThreshold)
	if err != nil {
		return nil, err
	}

	out, err := imaging.EncodePNG(trimmed)
	if err != nil {
		return nil, err
	}

	return &Result{
		Message: RemoveBackgroundMessage,
		Content: Content{
			Base64: imaging.EncodeBase64(out),
			Format: imaging.FormatPNG,
		},
	}, nil
}
