package annotation

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/up-zero/gotool/imageutil"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// imageExts 支持解码的图片扩展名
var imageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
	".webp": {},
}

// IsImageFile 根据扩展名判断是否为可解码的图片
func IsImageFile(name string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// LoadImage 读取图片并转换为 RGBA
func LoadImage(path string) (*image.RGBA, error) {
	img, err := imageutil.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开图片失败 %s: %w", path, err)
	}
	return ToRGBA(img), nil
}

// ToRGBA 转换为原点位于 (0, 0) 的 RGBA 图片
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
