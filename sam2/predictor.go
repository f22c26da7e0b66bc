package sam2

import (
	"fmt"
	"image"

	"github.com/getcharzp/go-annotation"
	"github.com/getcharzp/go-annotation/boxmatch"
	"github.com/sirupsen/logrus"
)

// PredictOptions 单个目标的提示
type PredictOptions struct {
	Box    *boxmatch.Box[float32] // 目标框
	Points [][2]float32           // 提示点 (x, y)
	Labels []Label                // 与 Points 一一对应
	// SwapBoxAxes 框为 (y0, x0, y1, x1) 时置为 true，会先转换为 (x0, y0, x1, y1)。
	// 零值表示 Box 已经是 (x0, y0, x1, y1)，不做转换；行列顺序的外部标注框需显式置为 true。
	SwapBoxAxes bool
}

func (o PredictOptions) prompt() (Prompt, error) {
	if len(o.Points) != len(o.Labels) {
		return Prompt{}, fmt.Errorf("%w: %d != %d", ErrPointLabelMismatch, len(o.Points), len(o.Labels))
	}
	var p Prompt
	for i, pt := range o.Points {
		p.Points = append(p.Points, Point{X: pt[0], Y: pt[1], Label: o.Labels[i]})
	}
	if o.Box != nil {
		b := *o.Box
		if o.SwapBoxAxes {
			b = boxmatch.SwapAxes(b)
		}
		p.Box = &b
	}
	if len(p.Points) == 0 && p.Box == nil {
		return Prompt{}, ErrEmptyPrompt
	}
	return p, nil
}

// ImagePredictor 对单张图片做点/框提示分割，图片特征只计算一次
type ImagePredictor struct {
	model Model
	emb   Embedding
	image image.Image
	log   logrus.FieldLogger
}

// NewImagePredictor 创建图片预测器
func NewImagePredictor(model Model, log logrus.FieldLogger) *ImagePredictor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ImagePredictor{model: model, log: log}
}

// SetImage 设置图片并提取特征，替换之前的图片
func (p *ImagePredictor) SetImage(img image.Image) error {
	emb, err := p.model.Encode(img)
	if err != nil {
		return fmt.Errorf("图片 Encode 失败: %w", err)
	}
	p.release()
	p.emb = emb
	p.image = img
	return nil
}

// SetImagePath 从文件读取图片后调用 SetImage
func (p *ImagePredictor) SetImagePath(path string) error {
	img, err := annotation.LoadImage(path)
	if err != nil {
		return err
	}
	return p.SetImage(img)
}

// Image 当前图片
func (p *ImagePredictor) Image() image.Image {
	return p.image
}

// PredictItem 按提示预测单个目标的 mask
func (p *ImagePredictor) PredictItem(opts PredictOptions) (*Result, error) {
	if p.emb == nil {
		return nil, ErrImageNotSet
	}
	prompt, err := opts.prompt()
	if err != nil {
		return nil, err
	}
	points, err := prompt.toPoints()
	if err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{"points": prompt.Points, "box": prompt.Box}).Debug("predict item")
	return p.emb.DecodeRaw(points)
}

// Close 释放图片特征
func (p *ImagePredictor) Close() {
	p.release()
	p.image = nil
}

func (p *ImagePredictor) release() {
	if p.emb != nil {
		p.emb.Destroy()
		p.emb = nil
	}
}
