package boxmatch

import (
	"errors"

	"github.com/up-zero/gotool/mathutil"
)

// ErrNoCandidates 候选框列表为空
var ErrNoCandidates = errors.New("候选框列表为空")

// Number 坐标允许的数值类型
//
// 距离在 T 上累加，不接受无符号和窄整数类型，避免差值或求和溢出。
type Number interface {
	~int | ~int64 | ~float32 | ~float64
}

// Box 四个坐标组成的矩形框，坐标含义由调用方约定
type Box[T Number] [4]T

// Distance 两个框逐个坐标差的绝对值之和 (L1 距离)
func Distance[T Number](a, b Box[T]) T {
	var sum T
	for i := range a {
		sum += mathutil.Abs(a[i] - b[i])
	}
	return sum
}

// FindNearest 在候选框中查找与 target 距离最小的框
//
// 距离相同时保留位置最靠前的候选框。
//
// # Params:
//
//	target: 目标框
//	candidates: 候选框列表，不能为空
//
// # Returns:
//
//	最近的候选框及其下标
func FindNearest[T Number](target Box[T], candidates []Box[T]) (Box[T], int, error) {
	if len(candidates) == 0 {
		return Box[T]{}, -1, ErrNoCandidates
	}

	bestIdx := 0
	bestDist := Distance(target, candidates[0])
	for i := 1; i < len(candidates); i++ {
		if d := Distance(target, candidates[i]); d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return candidates[bestIdx], bestIdx, nil
}
