package http

import (
	"context"
	"time"
)

const defaultTimeout = 30 * time.Second

type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam 描述一次 HTTP 请求
//
//	Body 为 io.Reader / []byte 时原样发送，其他类型按 JSON 序列化
//	Response 为 *[]byte 时写入原始响应体，其他非 nil 值按 JSON 反序列化
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Query      map[string]string
	Body       interface{}
	Response   interface{}

	Timeout time.Duration
}
