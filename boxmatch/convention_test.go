package boxmatch

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromXYWH(t *testing.T) {
	assert.Equal(t, Box[float64]{20, 10, 60, 40}, FromXYWH[float64](10, 20, 30, 40))
	assert.Equal(t, Box[int]{0, 0, 5, 5}, FromXYWH(0, 0, 5, 5))
}

func TestSwapAxes(t *testing.T) {
	b := Box[float32]{1, 2, 3, 4}
	assert.Equal(t, Box[float32]{2, 1, 4, 3}, SwapAxes(b))
	assert.Equal(t, b, SwapAxes(SwapAxes(b)))
	assert.Equal(t, Box[float32]{1, 2, 3, 4}, b, "input must not change")
}

func TestPermute(t *testing.T) {
	b := Box[int]{10, 20, 30, 40}
	assert.Equal(t, b, Permute(b, [4]int{0, 1, 2, 3}))
	assert.Equal(t, Box[int]{40, 30, 20, 10}, Permute(b, [4]int{3, 2, 1, 0}))
}

func TestFromRectAndConvert(t *testing.T) {
	b := FromRect(image.Rect(4, 3, 10, 12))
	assert.Equal(t, Box[float32]{4, 3, 10, 12}, b)
	assert.Equal(t, Box[float64]{4, 3, 10, 12}, Convert[float64](b))
	assert.Equal(t, Box[int]{1, 2, 3, 4}, Convert[int](Box[float64]{1.9, 2.2, 3.5, 4}))
}

func TestXYWHMatchesSwappedXYXY(t *testing.T) {
	// 模型框经 FromXYWH 转换后再交换行列，应得到常规的 (x0, y0, x1, y1)
	got := SwapAxes(FromXYWH[float64](10, 20, 30, 40))
	assert.Equal(t, Box[float64]{10, 20, 40, 60}, got)
}
