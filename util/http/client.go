package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// 错误响应体最多保留的长度
const maxErrorBody = 1024

// HTTPClient 不设置 http.Client.Timeout，超时由 RequestParam.Timeout 或 ctx 决定
type HTTPClient struct {
	client         *http.Client
	defaultTimeout time.Duration
}

func NewHTTPClient() IClient {
	return NewHTTPClientWithTimeout(defaultTimeout)
}

// NewHTTPClientWithTimeout d 只在请求没有 Timeout 且 ctx 没有 deadline 时生效
func NewHTTPClientWithTimeout(d time.Duration) IClient {
	return &HTTPClient{
		client:         &http.Client{},
		defaultTimeout: d,
	}
}

func (c *HTTPClient) DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error {
	if requestParam == nil {
		return errors.New("request param is nil")
	}

	timeout := requestParam.Timeout
	if _, ok := ctx.Deadline(); !ok && timeout <= 0 {
		timeout = c.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, contentType, err := encodeBody(requestParam.Body)
	if err != nil {
		return err
	}

	uri, err := withQuery(requestParam.RequestURI, requestParam.Query)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, requestParam.Method, uri, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range requestParam.Header {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if len(respData) > maxErrorBody {
			respData = respData[:maxErrorBody]
		}
		return fmt.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, string(respData))
	}

	slog.Debug("http request done", "method", requestParam.Method, "uri", uri, "status", resp.StatusCode, "size", len(respData))

	switch out := requestParam.Response.(type) {
	case nil:
		return nil
	case *[]byte:
		*out = respData
		return nil
	default:
		if len(respData) == 0 {
			return nil
		}
		if err := json.Unmarshal(respData, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	}
}

// encodeBody 返回请求体以及默认的 Content-Type（Header 中的值优先）
func encodeBody(body interface{}) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(b), "application/octet-stream", nil
	case io.Reader:
		return b, "text/plain", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func withQuery(uri string, query map[string]string) (string, error) {
	if len(query) == 0 {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
