package detect

import (
	"fmt"
	"image"
	"image/color"

	"github.com/getcharzp/go-annotation/sam2"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// SegResult 分割结果
type SegResult struct {
	Result
	Mask *image.Gray // 解码后的 Mask
}

// SegEngine YOLOv11-seg Engine，可替代 SAM2 作为标注流程的 mask 来源
type SegEngine struct {
	session *ort.DynamicAdvancedSession
	config  Config
	log     logrus.FieldLogger
}

// NewSegEngine 初始化分割引擎
func NewSegEngine(cfg Config, log logrus.FieldLogger) (*SegEngine, error) {
	session, err := newSession(cfg, []string{"output0", "output1"})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SegEngine{session: session, config: cfg, log: log}, nil
}

// Destroy 释放相关资源
func (e *SegEngine) Destroy() {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
}

// Predict 执行分割推理
func (e *SegEngine) Predict(img image.Image) ([]SegResult, error) {
	inputTensor, params, err := preprocess(img, e.config.InputSize)
	if err != nil {
		return nil, fmt.Errorf("预处理失败: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := e.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("推理失败: %w", err)
	}
	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	// output0: Detections [1, 116, 8400]
	// output1: Mask Protos [1, 32, 160, 160]
	out0, ok0 := outputs[0].(*ort.Tensor[float32])
	out1, ok1 := outputs[1].(*ort.Tensor[float32])
	if !ok0 || !ok1 {
		return nil, fmt.Errorf("输出类型错误")
	}
	shape0, shape1 := out0.GetShape(), out1.GetShape()
	if len(shape0) != 3 || len(shape1) != 4 {
		return nil, fmt.Errorf("输出形状错误: %v %v", shape0, shape1)
	}

	protos := protoMasks{
		data: out1.GetData(),
		c:    int(shape1[1]),
		h:    int(shape1[2]),
		w:    int(shape1[3]),
	}
	return e.postprocess(out0.GetData(), int(shape0[1]), int(shape0[2]), protos, params), nil
}

// Generate 实现 annotate.Generator，BBox 为 (x, y, w, h)
func (e *SegEngine) Generate(img image.Image) ([]sam2.Annotation, error) {
	results, err := e.Predict(img)
	if err != nil {
		return nil, err
	}
	return toAnnotations(results), nil
}

// protoMasks Mask 原型图 [c, h, w]
type protoMasks struct {
	data    []float32
	c, h, w int
}

// postprocess 后处理
func (e *SegEngine) postprocess(data []float32, channels, anchors int, protos protoMasks, params imageParams) []SegResult {
	candidates := parseCandidates(e.config, e.log, data, channels, anchors, e.config.NumMaskCoeffs, params)
	keptIndices := nms(candidates, e.config.IOUThreshold)

	results := make([]SegResult, 0, len(keptIndices))
	for _, idx := range keptIndices {
		cand := candidates[idx]
		results = append(results, SegResult{
			Result: Result{
				ClassID: cand.classID,
				Score:   cand.score,
				Box:     cand.origBox,
			},
			Mask: decodeMask(cand, protos, e.config.InputSize, e.config.MaskThreshold, params),
		})
	}
	return results
}

// decodeMask Mask解码，只计算检测框内的像素
//
// # Params:
//
//	cand: 候选结果
//	protos: 模型输出的 Mask 原型图
//	inputSize: 模型输入尺寸
//	threshold: 二值化阈值
//	params: 图片尺寸信息
func decodeMask(cand candidate, protos protoMasks, inputSize int, threshold float32, params imageParams) *image.Gray {
	finalMask := image.NewGray(image.Rect(0, 0, params.origW, params.origH))
	if protos.w == 0 || len(cand.maskCoeffs) < protos.c {
		return finalMask
	}

	// Mask 原型图相对于 InputSize(640) 的缩放比例
	maskStride := float32(inputSize) / float32(protos.w)
	plane := protos.h * protos.w

	box := cand.origBox
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			mx := int(float32(x) * params.scale / maskStride)
			my := int(float32(y) * params.scale / maskStride)
			if mx < 0 || mx >= protos.w || my < 0 || my >= protos.h {
				continue
			}

			sum := float32(0.0)
			for k := 0; k < protos.c; k++ {
				sum += cand.maskCoeffs[k] * protos.data[k*plane+my*protos.w+mx]
			}
			if sigmoid(sum) > threshold {
				finalMask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return finalMask
}

// toAnnotations 转换为与 SAM2 自动分割相同的结构
func toAnnotations(results []SegResult) []sam2.Annotation {
	anns := make([]sam2.Annotation, 0, len(results))
	for _, r := range results {
		area := 0
		for _, v := range r.Mask.Pix {
			if v != 0 {
				area++
			}
		}
		anns = append(anns, sam2.Annotation{
			Segmentation: r.Mask,
			Area:         area,
			BBox:         [4]float32{float32(r.Box.Min.X), float32(r.Box.Min.Y), float32(r.Box.Dx()), float32(r.Box.Dy())},
			PredictedIOU: r.Score,
			PointCoords: sam2.Point{
				X:     float32(r.Box.Min.X+r.Box.Max.X) / 2,
				Y:     float32(r.Box.Min.Y+r.Box.Max.Y) / 2,
				Label: sam2.LabelForeground,
			},
		})
	}
	return anns
}
