package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const FormatPNG = "image/png"

var (
	ErrInvalidBase64 = errors.New("invalid base64 image data")
	ErrInvalidImage  = errors.New("invalid image data")
)

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeBase64 解码 base64 图片数据
// 允许 data URL 前缀（data:image/png;base64,...）、换行空白以及省略 padding
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ";base64,")
		if idx < 0 {
			return nil, fmt.Errorf("%w: data url is not base64 encoded", ErrInvalidBase64)
		}
		s = s[idx+len(";base64,"):]
	}
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidBase64)
	}

	var lastErr error
	for _, enc := range base64Encodings {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, lastErr)
}

func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode 解码任意支持的格式：png、jpeg、gif、webp、bmp、tiff
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, format, nil
}

// ToPNG 把任意格式的图片统一转成 PNG，maxSize > 0 时先把最长边缩放到 maxSize 以内
func ToPNG(data []byte, maxSize int) ([]byte, error) {
	img, format, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if maxSize > 0 {
		if resized := resizeWithinMax(toNRGBA(img), maxSize); resized.Bounds() != img.Bounds() {
			img, format = resized, ""
		}
	}
	if format == "png" {
		return data, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNG 编码为带 alpha 通道的 PNG
// 标准库对完全不透明的 NRGBA 会写成 RGB，这里强制保留 alpha
func EncodePNG(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, alphaImage{img}); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}

type alphaImage struct {
	*image.NRGBA
}

func (alphaImage) Opaque() bool { return false }
