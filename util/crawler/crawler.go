package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	nhttp "github.com/chaos-io/rembg-tool/util/http"
)

// 匹配 img 标签中的 src
var imgSrcRe = regexp.MustCompile(`<img[^>]+src="([^">]+)"`)

// ImageURLs 抓取页面里的图片地址，match 非空时只保留包含 match 的地址
// 返回的地址已经补全为绝对路径并去重
func ImageURLs(ctx context.Context, cli nhttp.IClient, pageURL, match string) ([]string, error) {
	baseURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	var body []byte
	if err := cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: pageURL,
		Method:     http.MethodGet,
		Response:   &body,
	}); err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	return extractImageURLs(baseURL, body, match), nil
}

func extractImageURLs(baseURL *url.URL, body []byte, match string) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, m := range imgSrcRe.FindAllSubmatch(body, -1) {
		imgURL := string(m[1])
		if match != "" && !strings.Contains(imgURL, match) {
			continue
		}

		u, err := url.Parse(normalizeThumbURL(imgURL))
		if err != nil {
			continue
		}
		full := baseURL.ResolveReference(u).String()
		if _, ok := seen[full]; ok {
			continue
		}
		seen[full] = struct{}{}
		urls = append(urls, full)
	}
	return urls
}

// normalizeThumbURL MediaWiki 缩略图地址换成原图地址
// /images/thumb/a/ab/X.png/120px-X.png -> /images/a/ab/X.png
func normalizeThumbURL(imgURL string) string {
	parts := strings.Split(imgURL, "/thumb/")
	if len(parts) != 2 {
		return imgURL
	}
	sub := parts[1]
	idx := strings.LastIndex(sub, "/")
	if idx == -1 {
		return imgURL
	}
	return parts[0] + "/" + sub[:idx]
}

// FileName 图片地址对应的文件名，不带扩展名
func FileName(imgURL string) string {
	u, err := url.Parse(imgURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	return strings.TrimSuffix(name, path.Ext(name))
}
