package sam2

import (
	"errors"
	"image"

	"github.com/getcharzp/go-annotation/boxmatch"
)

var (
	ErrEmptyPrompt        = errors.New("提示为空，至少需要一个点或一个框")
	ErrPointLabelMismatch = errors.New("点的数量与标签数量不一致")
	ErrImageNotSet        = errors.New("尚未设置图片")
	ErrContextDestroyed   = errors.New("图片特征已销毁")
)

// Model 图片编码器，Engine 为其 ONNX 实现
type Model interface {
	Encode(img image.Image) (Embedding, error)
}

// Embedding 单张图片的特征缓存，可重复解码
type Embedding interface {
	DecodeRaw(points []Point) (*Result, error)
	Destroy()
}

// Prompt 解码提示，坐标均为原图坐标
type Prompt struct {
	Points []Point
	// Box (x0, y0, x1, y1)
	Box *boxmatch.Box[float32]
}

// toPoints 将框转换为左上/右下两个点并追加在点提示之后
func (p Prompt) toPoints() ([]Point, error) {
	if len(p.Points) == 0 && p.Box == nil {
		return nil, ErrEmptyPrompt
	}
	points := make([]Point, 0, len(p.Points)+2)
	points = append(points, p.Points...)
	if p.Box != nil {
		b := *p.Box
		points = append(points,
			Point{X: min(b[0], b[2]), Y: min(b[1], b[3]), Label: LabelBoxTopLeft},
			Point{X: max(b[0], b[2]), Y: max(b[1], b[3]), Label: LabelBoxBotRight},
		)
	}
	return points, nil
}

// Result Mask 预测结果
type Result struct {
	Mask   []uint8 // 0 or 255
	Score  float32
	Width  int
	Height int
}

// Gray 转换为灰度图
func (r *Result) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
	copy(img.Pix, r.Mask)
	return img
}

// Area mask 的前景像素数
func (r *Result) Area() int {
	n := 0
	for _, v := range r.Mask {
		if v != 0 {
			n++
		}
	}
	return n
}

// Bounds 前景像素的外接矩形，mask 为空时返回 false
func (r *Result) Bounds() (image.Rectangle, bool) {
	minX, minY := r.Width, r.Height
	maxX, maxY := -1, -1
	for y := 0; y < r.Height; y++ {
		row := r.Mask[y*r.Width : (y+1)*r.Width]
		for x, v := range row {
			if v == 0 {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}
