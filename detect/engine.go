package detect

import (
	"fmt"
	"image"
	"slices"

	"github.com/getcharzp/go-annotation"
	"github.com/sirupsen/logrus"
	"github.com/up-zero/gotool/convertutil"
	ort "github.com/yalue/onnxruntime_go"
)

// Engine YOLOv11 检测引擎，为标注流程提供目标框
type Engine struct {
	session *ort.DynamicAdvancedSession
	config  Config
	log     logrus.FieldLogger
}

// newSession 创建输入为 images 的 ONNX 会话
func newSession(cfg Config, outputNames []string) (*ort.DynamicAdvancedSession, error) {
	oc := new(annotation.OnnxConfig)
	if err := convertutil.CopyProperties(cfg, oc); err != nil {
		return nil, fmt.Errorf("复制参数失败: %w", err)
	}
	if err := oc.New(); err != nil {
		return nil, err
	}
	defer oc.Close()

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, []string{"images"}, outputNames, oc.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("创建 ONNX 会话失败: %w", err)
	}
	return session, nil
}

// NewEngine 初始化检测引擎
func NewEngine(cfg Config, log logrus.FieldLogger) (*Engine, error) {
	session, err := newSession(cfg, []string{"output0"})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Engine{
		session: session,
		config:  cfg,
		log:     log,
	}, nil
}

// Destroy 释放相关资源
func (e *Engine) Destroy() {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
}

// Predict 执行检测推理
func (e *Engine) Predict(img image.Image) ([]Result, error) {
	inputTensor, params, err := preprocess(img, e.config.InputSize)
	if err != nil {
		return nil, fmt.Errorf("预处理失败: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("推理失败: %w", err)
	}
	defer outputs[0].Destroy()

	// Output Shape: [1, 84, 8400]
	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output0 输出类型错误")
	}
	shape := out.GetShape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("输出形状错误: %v", shape)
	}

	return e.postprocess(out.GetData(), int(shape[1]), int(shape[2]), params), nil
}

// postprocess 后处理
func (e *Engine) postprocess(data []float32, channels, anchors int, params imageParams) []Result {
	candidates := parseCandidates(e.config, e.log, data, channels, anchors, 0, params)
	keptIndices := nms(candidates, e.config.IOUThreshold)

	results := make([]Result, 0, len(keptIndices))
	for _, idx := range keptIndices {
		cand := candidates[idx]
		results = append(results, Result{
			ClassID: cand.classID,
			Score:   cand.score,
			Box:     cand.origBox,
		})
	}
	return results
}

// parseCandidates 解析候选框
//
// # Params:
//
//	data: 模型输出的数组
//		[x1, x2 ..., x8400]
//		[y1, y2 ..., y8400]
//		[w1, w2 ..., w8400]
//		[h1, h2 ..., h8400]
//		[c1_1, c1_2 ..., c1_8400]
//		...
//		[m1, m2 ..., m8400]
//	channels: 模型输出的通道数
//	anchors: 模型输出的锚点数
//	numCoeffs: 每个锚点的 Mask 系数个数，检测模型为 0
//	params: 图片尺寸信息
func parseCandidates(cfg Config, log logrus.FieldLogger, data []float32, channels, anchors, numCoeffs int, params imageParams) []candidate {
	var cands []candidate

	expectedChannels := 4 + cfg.NumClasses + numCoeffs
	if channels != expectedChannels || len(data) < channels*anchors {
		if log != nil {
			log.Warnf("传入的通道数(%d)与预期(%d)不匹配", channels, expectedChannels)
		}
		return cands
	}

	for i := 0; i < anchors; i++ {
		// 找最大类别分数
		maxScore := float32(0.0)
		classID := -1
		for c := 0; c < cfg.NumClasses; c++ {
			score := data[(4+c)*anchors+i]
			if score > maxScore {
				maxScore = score
				classID = c
			}
		}
		if maxScore < cfg.ConfThreshold {
			continue
		}
		if len(cfg.ClassIDs) > 0 && !slices.Contains(cfg.ClassIDs, classID) {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		var coeffs []float32
		if numCoeffs > 0 {
			coeffs = make([]float32, numCoeffs)
			for j := 0; j < numCoeffs; j++ {
				coeffs[j] = data[(4+cfg.NumClasses+j)*anchors+i]
			}
		}

		// 转换回原图矩形坐标
		origX1 := max(0, int((cx-w/2)/params.scale))
		origY1 := max(0, int((cy-h/2)/params.scale))
		origX2 := min(params.origW, int((cx+w/2)/params.scale))
		origY2 := min(params.origH, int((cy+h/2)/params.scale))

		cands = append(cands, candidate{
			origBox:    image.Rect(origX1, origY1, origX2, origY2),
			score:      maxScore,
			classID:    classID,
			maskCoeffs: coeffs,
		})
	}
	return cands
}
