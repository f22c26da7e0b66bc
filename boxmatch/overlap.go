package boxmatch

import "image"

// IOU 两个矩形的交并比
func IOU(r1, r2 image.Rectangle) float32 {
	inter := r1.Intersect(r2)
	if inter.Empty() {
		return 0
	}
	interArea := inter.Dx() * inter.Dy()
	union := r1.Dx()*r1.Dy() + r2.Dx()*r2.Dy() - interArea
	return float32(interArea) / float32(union)
}

// Suppress 非极大值抑制
//
// rects 需已按分数降序排列，返回保留的下标 (升序)。
// 与任一已保留矩形的 IOU 大于 thresh 的矩形被丢弃。
func Suppress(rects []image.Rectangle, thresh float32) []int {
	keep := make([]int, 0, len(rects))
	for i, r := range rects {
		dropped := false
		for _, k := range keep {
			if IOU(r, rects[k]) > thresh {
				dropped = true
				break
			}
		}
		if !dropped {
			keep = append(keep, i)
		}
	}
	return keep
}
