package imaging

import (
	"errors"
	"image"

	"golang.org/x/image/draw"
)

var ErrNoForeground = errors.New("no foreground pixels above alpha threshold")

// EnsureAlpha 转为 NRGBA，没有 alpha 的源图 alpha 为 255
func EnsureAlpha(img image.Image) *image.NRGBA {
	return toNRGBA(img)
}

// AlphaBBox 从 alpha 通道计算主体 bounding box
// 把 alpha > threshold 的像素当作主体，返回的矩形使用图片自身的坐标
func AlphaBBox(img *image.NRGBA, threshold uint8) (image.Rectangle, error) {
	b := img.Bounds()

	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1

	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.Pix[off+3] > threshold {
				minX = min(minX, x)
				maxX = max(maxX, x)
				minY = min(minY, y)
				maxY = max(maxY, y)
			}
			off += 4
		}
	}

	if maxX < minX {
		return image.Rectangle{}, ErrNoForeground
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), nil
}

// Trim 裁掉四周 alpha <= threshold 的像素
// 透明区域视为 (0,0,0,0) 的背景；bbox 与原图一致时直接返回原图
func Trim(img *image.NRGBA, threshold uint8) (*image.NRGBA, error) {
	bbox, err := AlphaBBox(img, threshold)
	if err != nil {
		return nil, err
	}
	if bbox == img.Bounds() {
		return img, nil
	}

	// 按行复制，避免 draw 经过预乘 alpha 转换损失低 alpha 像素的颜色
	src := img.SubImage(bbox).(*image.NRGBA)
	dst := image.NewNRGBA(image.Rect(0, 0, bbox.Dx(), bbox.Dy()))
	rowLen := bbox.Dx() * 4
	for y := 0; y < bbox.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowLen], src.Pix[y*src.Stride:y*src.Stride+rowLen])
	}
	return dst, nil
}

// HasTransparency 检查 alpha 通道是否真的包含透明信息
// 只要存在非 255（非完全不透明）的像素就返回 true
func HasTransparency(img *image.NRGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.Pix[off+3] != 255 {
				return true
			}
			off += 4
		}
	}
	return false
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
