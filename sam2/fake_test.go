package sam2

import (
	"errors"
	"image"
	"sync"
)

// fakeModel 按提示生成确定性 mask：框提示填充框内区域，点提示填充点所在的四分之一区域
type fakeModel struct {
	mu        sync.Mutex
	encodes   int
	destroyed int
	prompts   [][]Point
	encodeErr error
	// quadScores 点提示时四个象限 (左上, 右上, 左下, 右下) 的分数
	quadScores [4]float32
}

func newFakeModel() *fakeModel {
	return &fakeModel{quadScores: [4]float32{0.8, 0.8, 0.8, 0.8}}
}

func (m *fakeModel) Encode(img image.Image) (Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.encodeErr != nil {
		return nil, m.encodeErr
	}
	m.encodes++
	b := img.Bounds()
	return &fakeEmbedding{model: m, w: b.Dx(), h: b.Dy()}, nil
}

type fakeEmbedding struct {
	model *fakeModel
	w, h  int
}

func (e *fakeEmbedding) DecodeRaw(points []Point) (*Result, error) {
	if len(points) == 0 {
		return nil, errors.New("no points")
	}
	e.model.mu.Lock()
	e.model.prompts = append(e.model.prompts, append([]Point(nil), points...))
	e.model.mu.Unlock()

	res := &Result{Mask: make([]uint8, e.w*e.h), Width: e.w, Height: e.h}
	var tl, br *Point
	for i := range points {
		switch points[i].Label {
		case LabelBoxTopLeft:
			tl = &points[i]
		case LabelBoxBotRight:
			br = &points[i]
		}
	}
	if tl != nil && br != nil {
		e.fill(res, int(tl.X), int(tl.Y), int(br.X), int(br.Y))
		res.Score = 0.9
		return res, nil
	}

	pt := points[0]
	halfW, halfH := e.w/2, e.h/2
	qx, qy := 0, 0
	if int(pt.X) >= halfW {
		qx = 1
	}
	if int(pt.Y) >= halfH {
		qy = 1
	}
	e.fill(res, qx*halfW, qy*halfH, (qx+1)*halfW, (qy+1)*halfH)
	res.Score = e.model.quadScores[qy*2+qx]
	return res, nil
}

func (e *fakeEmbedding) fill(res *Result, x0, y0, x1, y1 int) {
	for y := max(y0, 0); y < min(y1, e.h); y++ {
		for x := max(x0, 0); x < min(x1, e.w); x++ {
			res.Mask[y*e.w+x] = 255
		}
	}
}

func (e *fakeEmbedding) Destroy() {
	e.model.mu.Lock()
	e.model.destroyed++
	e.model.mu.Unlock()
}
