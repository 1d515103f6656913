package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	jsoniter "github.com/json-iterator/go"
	openai "github.com/sashabaranov/go-openai"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Tool 可以被 agent 调用的能力
// Definition 给模型看的函数声明，Execute 执行一次调用，调用之间不共享状态
type Tool interface {
	Name() string
	Definition() openai.Tool
	Execute(ctx context.Context, args json.RawMessage) (*Result, error)
}

type Result struct {
	Message string  `json:"message"`
	Content Content `json:"content"`
}

type Content struct {
	Base64 string `json:"base64"`
	Format string `json:"format"`
}

// copyDefinition 复制一份函数声明，避免调用方改到包级别的描述
func copyDefinition(def openai.Tool) openai.Tool {
	if def.Function != nil {
		fn := *def.Function
		if raw, ok := fn.Parameters.(json.RawMessage); ok {
			fn.Parameters = json.RawMessage(bytes.Clone(raw))
		}
		def.Function = &fn
	}
	return def
}
