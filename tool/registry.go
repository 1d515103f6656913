package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Registry 按名字保存工具
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register 同名工具会被覆盖
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions 按名字排序，可以直接放进 ChatCompletionRequest.Tools
func (r *Registry) Definitions() []openai.Tool {
	names := r.Names()
	defs := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		if t, ok := r.Get(name); ok {
			defs = append(defs, t.Definition())
		}
	}
	return defs
}

func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s, available tools: %v", ErrUnknownTool, name, r.Names())
	}
	return t.Execute(ctx, args)
}

// Dispatch 执行模型返回的一次 tool call
func (r *Registry) Dispatch(ctx context.Context, call openai.ToolCall) (*Result, error) {
	if call.Type != "" && call.Type != openai.ToolTypeFunction {
		return nil, fmt.Errorf("%w: unsupported tool call type %q", ErrUnknownTool, call.Type)
	}
	return r.Execute(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
}
