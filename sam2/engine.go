package sam2

import (
	"fmt"
	"image"
	"runtime"

	"github.com/getcharzp/go-annotation"
	"github.com/up-zero/gotool/convertutil"
	"github.com/up-zero/gotool/imageutil"
	ort "github.com/yalue/onnxruntime_go"
)

// Engine 持有 ONNX Session，负责创建 ImageContext
type Engine struct {
	encoderSession *ort.DynamicAdvancedSession
	decoderSession *ort.DynamicAdvancedSession
	config         Config
}

// NewEngine 初始化 sam2 引擎
func NewEngine(cfg Config) (*Engine, error) {
	onnxConfig := new(annotation.OnnxConfig)
	if err := convertutil.CopyProperties(cfg, onnxConfig); err != nil {
		return nil, fmt.Errorf("复制参数失败: %w", err)
	}
	if err := onnxConfig.New(); err != nil {
		return nil, err
	}
	defer onnxConfig.Close()

	encInputs := []string{"pixel_values"}
	encOutputs := []string{"image_embeddings.0", "image_embeddings.1", "image_embeddings.2"}
	encSession, err := ort.NewDynamicAdvancedSession(cfg.EncodeModelPath, encInputs, encOutputs, onnxConfig.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("创建 Encoder ONNX 会话失败: %w", err)
	}

	decInputs := []string{
		"input_points", "input_labels", "input_boxes",
		"image_embeddings.0", "image_embeddings.1", "image_embeddings.2",
	}
	decOutputs := []string{"iou_scores", "pred_masks", "object_score_logits"}
	decSession, err := ort.NewDynamicAdvancedSession(cfg.DecodeModelPath, decInputs, decOutputs, onnxConfig.SessionOptions)
	if err != nil {
		encSession.Destroy()
		return nil, fmt.Errorf("创建 Decoder ONNX 会话失败: %w", err)
	}

	return &Engine{
		encoderSession: encSession,
		decoderSession: decSession,
		config:         cfg,
	}, nil
}

// Destroy 释放相关资源
func (e *Engine) Destroy() error {
	if e.encoderSession != nil {
		if err := e.encoderSession.Destroy(); err != nil {
			return fmt.Errorf("销毁 Encoder ONNX 会话失败: %w", err)
		}
		e.encoderSession = nil
	}
	if e.decoderSession != nil {
		if err := e.decoderSession.Destroy(); err != nil {
			return fmt.Errorf("销毁 Decoder ONNX 会话失败: %w", err)
		}
		e.decoderSession = nil
	}
	return nil
}

// ImageContext 包含特定图像的特征缓存和参数
type ImageContext struct {
	engine          *Engine
	imageEmbeddings []ort.Value

	origW, origH int
	scale        float32
	newW, newH   int
	isDestroyed  bool
}

// Encode 实现 Model 接口
func (e *Engine) Encode(img image.Image) (Embedding, error) {
	ctx, err := e.EncodeImage(img)
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

// EncodeImage 图像特征提取
func (e *Engine) EncodeImage(img image.Image) (*ImageContext, error) {
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()
	if origW == 0 || origH == 0 {
		return nil, fmt.Errorf("图片尺寸无效: %dx%d", origW, origH)
	}

	scale := float32(inputSize) / float32(max(origW, origH))
	newW := int(float32(origW) * scale)
	newH := int(float32(origH) * scale)

	resizedImg := imageutil.Resize(img, newW, newH)
	tensorData := normalizeAndPad(resizedImg, inputSize, inputSize)

	inputShape := ort.NewShape(1, 3, int64(inputSize), int64(inputSize))
	inputTensor, err := ort.NewTensor(inputShape, tensorData)
	if err != nil {
		return nil, fmt.Errorf("创建图片 Input Tensor 失败: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 3)
	if err := e.encoderSession.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("encoder 推理失败: %w", err)
	}

	ctx := &ImageContext{
		engine:          e,
		imageEmbeddings: outputs,
		origW:           origW,
		origH:           origH,
		scale:           scale,
		newW:            newW,
		newH:            newH,
	}

	// 设置 Finalizer 以防用户忘记 Destroy
	runtime.SetFinalizer(ctx, func(c *ImageContext) { c.Destroy() })

	return ctx, nil
}

// Destroy 释放图像特征缓存
func (ctx *ImageContext) Destroy() {
	if ctx.isDestroyed {
		return
	}
	destroyValues(ctx.imageEmbeddings)
	ctx.imageEmbeddings = nil
	ctx.isDestroyed = true
}

// DecodeRaw Mask解码并返回原始结果
//
// # Params:
//
//	points: 原图坐标系下的提示点，框以 LabelBoxTopLeft/LabelBoxBotRight 两点表示
func (ctx *ImageContext) DecodeRaw(points []Point) (*Result, error) {
	if ctx.isDestroyed {
		return nil, ErrContextDestroyed
	}
	if len(points) == 0 {
		return nil, ErrEmptyPrompt
	}

	prompts, err := promptTensors(points, ctx.scale)
	if err != nil {
		return nil, err
	}
	defer destroyValues(prompts)

	inputs := append(prompts, ctx.imageEmbeddings...)
	outputs := make([]ort.Value, 3)
	if err := ctx.engine.decoderSession.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("decoder 推理失败: %w", err)
	}
	defer destroyValues(outputs)

	scores, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("iou_scores 输出类型错误")
	}
	masks, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("pred_masks 输出类型错误")
	}
	return ctx.selectMask(scores.GetData(), masks.GetData())
}

// selectMask 取分数最高的 mask logits (256x256) 并还原到原图尺寸
func (ctx *ImageContext) selectMask(scores, logits []float32) (*Result, error) {
	idx, score := bestMask(scores)
	if idx < 0 {
		return nil, fmt.Errorf("decoder 未输出任何 mask")
	}

	size := maskLogitsDim * maskLogitsDim
	start := idx * size
	if start+size > len(logits) {
		return nil, fmt.Errorf("pred_masks 长度不足: %d < %d", len(logits), start+size)
	}

	// logits 对应 1024 输入的 1/4，只有缩放后图片覆盖的区域有效
	validW := int(float32(ctx.newW) / 4.0)
	validH := int(float32(ctx.newH) / 4.0)

	return &Result{
		Mask:   upscaleMaskLogits(logits[start:start+size], maskLogitsDim, validW, validH, ctx.origW, ctx.origH),
		Score:  score,
		Width:  ctx.origW,
		Height: ctx.origH,
	}, nil
}

// promptTensors 构造 decoder 的 input_points / input_labels / input_boxes
//
// 框通过 label 为 2/3 的点传入，input_boxes 为空。
func promptTensors(points []Point, scale float32) ([]ort.Value, error) {
	coords := make([]float32, 0, len(points)*2)
	labels := make([]int64, 0, len(points))
	for _, pt := range points {
		coords = append(coords, pt.X*scale, pt.Y*scale)
		labels = append(labels, int64(pt.Label))
	}
	n := int64(len(points))

	values := make([]ort.Value, 0, 3)
	tPoints, err := ort.NewTensor(ort.NewShape(1, 1, n, 2), coords)
	if err != nil {
		return nil, fmt.Errorf("创建 Decoder Points Tensor 失败: %w", err)
	}
	values = append(values, tPoints)

	tLabels, err := ort.NewTensor(ort.NewShape(1, 1, n), labels)
	if err != nil {
		destroyValues(values)
		return nil, fmt.Errorf("创建 Decoder Labels Tensor 失败: %w", err)
	}
	values = append(values, tLabels)

	tBoxes, err := ort.NewTensor(ort.NewShape(1, 0, 4), []float32{})
	if err != nil {
		destroyValues(values)
		return nil, fmt.Errorf("创建 Decoder Boxes Tensor 失败: %w", err)
	}
	return append(values, tBoxes), nil
}

func destroyValues(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}

// Decode Mask解码并返回图片
func (ctx *ImageContext) Decode(prompt Prompt) (image.Image, float32, error) {
	points, err := prompt.toPoints()
	if err != nil {
		return nil, 0, err
	}
	result, err := ctx.DecodeRaw(points)
	if err != nil {
		return nil, 0, err
	}
	return result.Gray(), result.Score, nil
}
