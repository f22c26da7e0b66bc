package sam2

import (
	"fmt"
	"image"

	"github.com/getcharzp/go-annotation/boxmatch"
	"github.com/sirupsen/logrus"
)

// Annotation 自动分割出的单个 mask
type Annotation struct {
	Segmentation *image.Gray
	Area         int
	// BBox 模型原生格式 (x, y, w, h)
	BBox         [4]float32
	PredictedIOU float32
	PointCoords  Point // 产生该 mask 的提示点
}

// Rect 外接矩形
func (a Annotation) Rect() image.Rectangle {
	x, y := int(a.BBox[0]), int(a.BBox[1])
	return image.Rect(x, y, x+int(a.BBox[2]), y+int(a.BBox[3]))
}

// MatchBox 转换为 (y0, x0, y1, x1)，与外部标注框比较时使用
func (a Annotation) MatchBox() boxmatch.Box[float32] {
	return boxmatch.FromXYWH(a.BBox[0], a.BBox[1], a.BBox[2], a.BBox[3])
}

// MaskGenerator 基于网格点提示的整图自动分割
type MaskGenerator struct {
	model  Model
	config GeneratorConfig
	log    logrus.FieldLogger
}

// NewMaskGenerator 创建自动分割器
func NewMaskGenerator(model Model, cfg GeneratorConfig, log logrus.FieldLogger) *MaskGenerator {
	if cfg.PointsPerSide <= 0 {
		cfg.PointsPerSide = DefaultGeneratorConfig().PointsPerSide
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MaskGenerator{model: model, config: cfg, log: log}
}

// Generate 对整张图片生成 mask，结果按 PredictedIOU 降序
//
// 第一遍只记录每个网格点的外接框和分数，NMS 之后再对保留的点重新解码生成 mask，
// 内存占用与保留数量成正比。
func (g *MaskGenerator) Generate(img image.Image) ([]Annotation, error) {
	emb, err := g.model.Encode(img)
	if err != nil {
		return nil, fmt.Errorf("图片 Encode 失败: %w", err)
	}
	defer emb.Destroy()

	b := img.Bounds()
	points := gridPoints(b.Dx(), b.Dy(), g.config.PointsPerSide)
	anns := make([]Annotation, 0, len(points))

	for _, pt := range points {
		res, err := emb.DecodeRaw([]Point{pt})
		if err != nil {
			return nil, fmt.Errorf("点 (%.1f, %.1f) 解码失败: %w", pt.X, pt.Y, err)
		}
		ann, ok := g.annotation(res, pt)
		if !ok {
			continue
		}
		anns = append(anns, ann)
	}

	kept := nms(anns, g.config.BoxNMSThreshold)
	for i := range kept {
		res, err := emb.DecodeRaw([]Point{kept[i].PointCoords})
		if err != nil {
			return nil, fmt.Errorf("点 (%.1f, %.1f) 解码失败: %w", kept[i].PointCoords.X, kept[i].PointCoords.Y, err)
		}
		kept[i].Segmentation = res.Gray()
	}

	g.log.WithFields(logrus.Fields{
		"points":   len(points),
		"decoded":  len(anns),
		"retained": len(kept),
	}).Debug("自动分割完成")
	return kept, nil
}

// annotation 不带 mask 的候选结果，分数过低、mask 为空或面积过小时返回 false
func (g *MaskGenerator) annotation(res *Result, pt Point) (Annotation, bool) {
	if res.Score < g.config.ScoreThreshold {
		return Annotation{}, false
	}
	rect, ok := res.Bounds()
	if !ok {
		return Annotation{}, false
	}
	area := res.Area()
	if area < g.config.MinMaskArea {
		return Annotation{}, false
	}
	return Annotation{
		Area:         area,
		BBox:         [4]float32{float32(rect.Min.X), float32(rect.Min.Y), float32(rect.Dx()), float32(rect.Dy())},
		PredictedIOU: res.Score,
		PointCoords:  pt,
	}, true
}
