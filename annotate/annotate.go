// Package annotate 将外部标注框映射到 SAM2 自动分割出的 mask 上
package annotate

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/getcharzp/go-annotation"
	"github.com/getcharzp/go-annotation/boxmatch"
	"github.com/getcharzp/go-annotation/sam2"
	"github.com/sirupsen/logrus"
	"github.com/up-zero/gotool/imageutil"
)

// Generator 整图自动分割，sam2.MaskGenerator 为其实现
type Generator interface {
	Generate(img image.Image) ([]sam2.Annotation, error)
}

// Match 与目标框最接近的 mask
type Match struct {
	Annotation sam2.Annotation
	// BBox 选中 mask 的 (y0, x0, y1, x1)
	BBox boxmatch.Box[float32]
	// Candidates 全部 mask 的 (y0, x0, y1, x1)，与 Annotations 下标一致
	Candidates []boxmatch.Box[float32]
	Index      int
	Distance   float32
}

// Mask 选中的 mask
func (m *Match) Mask() *image.Gray {
	return m.Annotation.Segmentation
}

// Annotator 标注流程
type Annotator struct {
	gen Generator
	log logrus.FieldLogger
}

// New 创建标注流程
func New(gen Generator, log logrus.FieldLogger) *Annotator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Annotator{gen: gen, log: log}
}

// AllMasks 读取图片并返回全部自动分割结果
func (a *Annotator) AllMasks(imagePath string) ([]sam2.Annotation, error) {
	a.log.WithField("image", imagePath).Info("Getting all masks")
	img, err := annotation.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}
	anns, err := a.gen.Generate(img)
	if err != nil {
		return nil, fmt.Errorf("自动分割失败: %w", err)
	}
	a.log.WithField("masks", len(anns)).Info("Getting final mask")
	return anns, nil
}

// MaskForBox 返回与 target 最接近的 mask
//
// # Params:
//
//	imagePath: 图片路径
//	target: (y0, x0, y1, x1) 格式的目标框
func (a *Annotator) MaskForBox(imagePath string, target boxmatch.Box[float32]) (*Match, error) {
	a.log.WithFields(logrus.Fields{"image": imagePath, "box": target}).Info("Getting mask")
	img, err := annotation.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}
	anns, err := a.gen.Generate(img)
	if err != nil {
		return nil, fmt.Errorf("自动分割失败: %w", err)
	}
	a.log.WithField("masks", len(anns)).Info("Getting final mask")
	return MatchAnnotations(anns, target)
}

// MaskForBoxes 对同一张图片只分割一次，为每个目标框分别找最接近的 mask
func (a *Annotator) MaskForBoxes(imagePath string, targets []boxmatch.Box[float32]) ([]*Match, error) {
	anns, err := a.AllMasks(imagePath)
	if err != nil {
		return nil, err
	}
	matches := make([]*Match, 0, len(targets))
	for i, target := range targets {
		m, err := MatchAnnotations(anns, target)
		if err != nil {
			return nil, fmt.Errorf("第 %d 个目标框匹配失败: %w", i, err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// MatchAnnotations 在 anns 中查找外接框与 target 距离最小的 mask
func MatchAnnotations(anns []sam2.Annotation, target boxmatch.Box[float32]) (*Match, error) {
	candidates := make([]boxmatch.Box[float32], len(anns))
	for i, ann := range anns {
		candidates[i] = ann.MatchBox()
	}
	best, idx, err := boxmatch.FindNearest(target, candidates)
	if err != nil {
		return nil, fmt.Errorf("没有可匹配的 mask: %w", err)
	}
	return &Match{
		Annotation: anns[idx],
		BBox:       best,
		Candidates: candidates,
		Index:      idx,
		Distance:   boxmatch.Distance(target, best),
	}, nil
}

// SaveMasks 将每个 mask 保存为 dir/mask_<i>.png，返回文件路径
func SaveMasks(dir string, anns []sam2.Annotation) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	paths := make([]string, 0, len(anns))
	for i, ann := range anns {
		p := filepath.Join(dir, fmt.Sprintf("mask_%d.png", i))
		if err := imageutil.Save(p, ann.Segmentation, 100); err != nil {
			return paths, fmt.Errorf("保存 mask 失败 %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
