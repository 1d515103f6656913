package util

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	nhttp "github.com/chaos-io/rembg-tool/util/http"
)

const downloadTimeout = 20 * time.Second

// IsURL 是否是 http(s) 地址
func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// ReadImage 读取本地图片或者下载远程图片，返回原始字节
func ReadImage(ctx context.Context, cli nhttp.IClient, src string) ([]byte, error) {
	if IsURL(src) {
		return DownloadImage(ctx, cli, src)
	}
	return OpenImage(src)
}

// DownloadImage 下载图片
func DownloadImage(ctx context.Context, cli nhttp.IClient, url string) ([]byte, error) {
	var data []byte
	err := cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: url,
		Method:     http.MethodGet,
		Response:   &data,
		Timeout:    downloadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download %s: empty body", url)
	}
	return data, nil
}

// OpenImage 打开本地图片
func OpenImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	return data, nil
}

// WriteFile 写文件，自动创建目录
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
