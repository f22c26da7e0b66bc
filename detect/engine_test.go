package detect

import (
	"image"
	"image/color"
	"testing"

	"github.com/getcharzp/go-annotation/boxmatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// anchorData 按 [cx, cy, w, h, cls0, cls1] 行优先布局生成模型输出
func anchorData(anchors [][6]float32) []float32 {
	n := len(anchors)
	data := make([]float32, 6*n)
	for i, a := range anchors {
		for c := 0; c < 6; c++ {
			data[c*n+i] = a[c]
		}
	}
	return data
}

func testEngine(cfg Config) *Engine {
	return &Engine{config: cfg}
}

func TestPostprocess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumClasses = 2
	e := testEngine(cfg)
	params := imageParams{origW: 200, origH: 100, scale: 0.5}

	data := anchorData([][6]float32{
		{50, 25, 20, 10, 0.9, 0.1},  // 原图 (80,40)-(120,60)
		{51, 25, 20, 10, 0.7, 0.2},  // 与上一个重叠，被抑制
		{10, 10, 10, 10, 0.1, 0.6},  // 类别 1
		{90, 40, 10, 10, 0.3, 0.2},  // 低于阈值
		{99, 49, 10, 10, 0.05, 0.8}, // 超出原图，被裁剪
	})

	results := e.postprocess(data, 6, 5, params)
	require.Len(t, results, 3)

	assert.Equal(t, Result{ClassID: 0, Score: 0.9, Box: image.Rect(80, 40, 120, 60)}, results[0])
	assert.Equal(t, 1, results[1].ClassID)
	assert.Equal(t, image.Rect(188, 88, 200, 100), results[1].Box)
	assert.Equal(t, image.Rect(10, 10, 30, 30), results[2].Box)
}

func TestPostprocessClassFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumClasses = 2
	cfg.ClassIDs = []int{1}
	e := testEngine(cfg)

	data := anchorData([][6]float32{
		{50, 25, 20, 10, 0.9, 0.1},
		{10, 10, 10, 10, 0.1, 0.6},
	})
	results := e.postprocess(data, 6, 2, imageParams{origW: 640, origH: 640, scale: 1})
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].ClassID)
}

func TestPostprocessChannelMismatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumClasses = 2
	e := &Engine{config: cfg, log: testLogger(t)}
	assert.Empty(t, e.postprocess(make([]float32, 7*3), 7, 3, imageParams{origW: 10, origH: 10, scale: 1}))
}

func TestNMSOrdersByScore(t *testing.T) {
	cands := []candidate{
		{origBox: image.Rect(0, 0, 10, 10), score: 0.4},
		{origBox: image.Rect(0, 0, 10, 9), score: 0.8},
		{origBox: image.Rect(20, 20, 30, 30), score: 0.6},
	}
	keep := nms(cands, 0.5)
	require.Equal(t, []int{0, 1}, keep)
	assert.InDelta(t, 0.8, cands[keep[0]].score, 1e-6)
	assert.Equal(t, image.Rect(20, 20, 30, 30), cands[keep[1]].origBox)
}

func TestToCHW(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 0, color.RGBA{R: 255, A: 255})
	data := toCHW(img, 3)
	assert.Len(t, data, 27)
	assert.InDelta(t, 1.0, data[1], 1e-6)
	assert.Zero(t, data[9+1])
	assert.Zero(t, data[8])
}

func TestResultMatchBox(t *testing.T) {
	r := Result{Box: image.Rect(10, 20, 40, 60)}
	assert.Equal(t, boxmatch.Box[float32]{20, 10, 60, 40}, r.MatchBox())
}
