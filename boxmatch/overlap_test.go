package boxmatch

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIOU(t *testing.T) {
	tests := []struct {
		name   string
		r1, r2 image.Rectangle
		want   float32
	}{
		{name: "same", r1: image.Rect(0, 0, 10, 10), r2: image.Rect(0, 0, 10, 10), want: 1},
		{name: "quarter overlap", r1: image.Rect(0, 0, 10, 10), r2: image.Rect(5, 5, 15, 15), want: 25.0 / 175.0},
		{name: "small overlap", r1: image.Rect(0, 0, 4, 4), r2: image.Rect(2, 2, 6, 6), want: 4.0 / 28.0},
		{name: "disjoint", r1: image.Rect(0, 0, 5, 5), r2: image.Rect(6, 6, 9, 9), want: 0},
		{name: "touching edge", r1: image.Rect(0, 0, 5, 5), r2: image.Rect(5, 0, 10, 5), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IOU(tt.r1, tt.r2), 1e-6)
			assert.InDelta(t, tt.want, IOU(tt.r2, tt.r1), 1e-6)
		})
	}
}

func TestSuppress(t *testing.T) {
	rects := []image.Rectangle{
		image.Rect(0, 0, 10, 10),
		image.Rect(0, 0, 10, 9),    // IOU 0.9 与第一个
		image.Rect(50, 50, 55, 55), // 不重叠
		image.Rect(5, 5, 15, 15),   // IOU 0.14 与第一个
	}
	assert.Equal(t, []int{0, 2, 3}, Suppress(rects, 0.7))
	assert.Equal(t, []int{0, 2}, Suppress(rects, 0.1))
	assert.Empty(t, Suppress(nil, 0.5))
}
