package rembg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	nhttp "github.com/chaos-io/rembg-tool/util/http"
)

const removePath = "api/remove"

// RembgServer 调用 rembg 自带的 HTTP 服务（rembg s --port 7000）
type RembgServer struct {
	baseURL string
	model   string
	cli     nhttp.IClient
}

// NewRembgServer model 为空时使用服务端默认模型（u2net）
func NewRembgServer(baseURL, model string) *RembgServer {
	return &RembgServer{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		model:   model,
		cli:     nhttp.NewHTTPClient(),
	}
}

/*
	curl -X POST "$BASE_URL/api/remove" \
	  -F "file=@my_image.png" \
	  -F "model=birefnet-general" -o out.png
*/
func (r *RembgServer) Remove(ctx context.Context, png []byte) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", ksuid.New().String()+".png")
	if err != nil {
		return nil, fmt.Errorf("%w: create form file: %w", ErrRemoval, err)
	}
	if _, err := part.Write(png); err != nil {
		return nil, fmt.Errorf("%w: write form file: %w", ErrRemoval, err)
	}
	if r.model != "" {
		_ = writer.WriteField("model", r.model)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: close multipart writer: %w", ErrRemoval, err)
	}

	var data []byte
	err = r.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: r.baseURL + removePath,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   &data,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoval, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrRemoval, errors.New("empty response"))
	}

	slog.Debug("rembg server done", "model", r.model, "size", len(data))
	return data, nil
}

// Ping rembg 服务把文档挂在 /api 下
func (r *RembgServer) Ping(ctx context.Context) error {
	return r.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: r.baseURL + "api",
		Method:     http.MethodGet,
		Timeout:    5 * time.Second,
	})
}
