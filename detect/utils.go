package detect

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/getcharzp/go-annotation/boxmatch"
	"github.com/up-zero/gotool/imageutil"
	ort "github.com/yalue/onnxruntime_go"
)

// preprocess 预处理
func preprocess(img image.Image, inputSize int) (*ort.Tensor[float32], imageParams, error) {
	bounds := img.Bounds()
	params := imageParams{
		origW: bounds.Dx(),
		origH: bounds.Dy(),
	}
	if params.origW == 0 || params.origH == 0 {
		return nil, params, fmt.Errorf("图片尺寸无效: %dx%d", params.origW, params.origH)
	}

	scale := float32(inputSize) / float32(max(params.origW, params.origH))
	params.scale = scale

	newW := int(float32(params.origW) * scale)
	newH := int(float32(params.origH) * scale)

	resized := imageutil.Resize(img, newW, newH)
	data := toCHW(resized, inputSize)

	shape := ort.NewShape(1, 3, int64(inputSize), int64(inputSize))
	tensor, err := ort.NewTensor(shape, data)
	return tensor, params, err
}

// toCHW 准备 Tensor 数据 (CHW + Normalize 0-1)，右侧和下方补 0
func toCHW(img image.Image, inputSize int) []float32 {
	b := img.Bounds()
	w, h := min(b.Dx(), inputSize), min(b.Dy(), inputSize)
	plane := inputSize * inputSize
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()

			idx := y*inputSize + x
			data[idx] = float32(r) / 65535.0          // R
			data[plane+idx] = float32(g) / 65535.0    // G
			data[2*plane+idx] = float32(bl) / 65535.0 // B
		}
	}
	return data
}

// nms 按分数降序重排 cands，返回保留的下标
func nms(cands []candidate, iouThresh float32) []int {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})
	rects := make([]image.Rectangle, len(cands))
	for i, c := range cands {
		rects[i] = c.origBox
	}
	return boxmatch.Suppress(rects, iouThresh)
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}
