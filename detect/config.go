package detect

import (
	"image"

	"github.com/getcharzp/go-annotation"
	"github.com/getcharzp/go-annotation/boxmatch"
)

// Config 检测引擎的初始化参数
type Config struct {
	ModelPath          string // ONNX 模型路径
	OnnxRuntimeLibPath string // ONNX Runtime 动态库路径

	// 推理参数
	ConfThreshold float32 // 置信度阈值 (默认 0.45)
	IOUThreshold  float32 // NMS IOU 阈值 (默认 0.5)
	MaskThreshold float32 // Mask 二值化阈值 (默认 0.5)
	ClassIDs      []int   // 只保留这些类别，为空时保留全部

	// 模型参数
	InputSize     int // 默认 640
	NumClasses    int // 默认 80
	NumMaskCoeffs int // 默认 32

	// 可选参数
	UseCuda    bool // (可选) 是否启用 CUDA
	NumThreads int  // (可选) ONNX 线程数, 默认由CPU核心数决定
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		ModelPath:          "./yolov11_weights/yolo11m.onnx",
		OnnxRuntimeLibPath: annotation.DefaultLibraryPath(),
		ConfThreshold:      0.45,
		IOUThreshold:       0.50,
		MaskThreshold:      0.50,
		InputSize:          640,
		NumClasses:         80,
		NumMaskCoeffs:      32,
	}
}

// DefaultSegConfig 分割的默认配置
func DefaultSegConfig() Config {
	cfg := DefaultConfig()
	cfg.ModelPath = "./yolov11_weights/yolo11m-seg.onnx"
	return cfg
}

// imageParams 图片尺寸信息
type imageParams struct {
	origW, origH int
	scale        float32
}

// 候选结果
type candidate struct {
	origBox    image.Rectangle // 原始图片的检测框
	score      float32
	classID    int
	maskCoeffs []float32 // Mask 系数，仅分割模型
}

// Result 目标检测结果
type Result struct {
	// 分类ID，例如：
	//	0: person
	//  1: bicycle
	//  2: car
	// - 详细映射参考：
	//	https://github.com/ultralytics/ultralytics/blob/main/ultralytics/cfg/datasets/coco.yaml
	ClassID int
	Score   float32
	Box     image.Rectangle // 检测框
}

// MatchBox 转换为 (y0, x0, y1, x1)，与 sam2.Annotation.MatchBox 同一坐标约定
func (r Result) MatchBox() boxmatch.Box[float32] {
	return boxmatch.SwapAxes(boxmatch.FromRect(r.Box))
}
