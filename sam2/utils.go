package sam2

import (
	"image"
	"sort"

	"github.com/getcharzp/go-annotation/boxmatch"
)

// normalizeAndPad 归一化和填充
func normalizeAndPad(src image.Image, targetW, targetH int) []float32 {
	bounds := src.Bounds()
	w, h := min(bounds.Dx(), targetW), min(bounds.Dy(), targetH)
	data := make([]float32, 3*targetW*targetH)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA returns 0-65535
			rf := (float32(r)/65535.0 - MeanR) / StdR
			gf := (float32(g)/65535.0 - MeanG) / StdG
			bf := (float32(b)/65535.0 - MeanB) / StdB

			// 目标索引 (CHW)
			idx := y*targetW + x
			data[idx] = rf
			data[targetW*targetH+idx] = gf
			data[2*targetW*targetH+idx] = bf
		}
	}
	return data
}

// upscaleMaskLogits 原图尺寸的预测结果
func upscaleMaskLogits(logits []float32, logitsDim, validW, validH, dstW, dstH int) []uint8 {
	output := make([]uint8, dstW*dstH)
	validW, validH = max(validW, 1), max(validH, 1)
	xRatio := float32(validW) / float32(dstW)
	yRatio := float32(validH) / float32(dstH)

	for y := 0; y < dstH; y++ {
		srcY := min(int(float32(y)*yRatio), validH-1)
		for x := 0; x < dstW; x++ {
			srcX := min(int(float32(x)*xRatio), validW-1)
			if logits[srcY*logitsDim+srcX] > maskThreshold {
				output[y*dstW+x] = 255
			}
		}
	}
	return output
}

// bestMask 分数最高的 mask 下标，分数相同取靠前的
func bestMask(scores []float32) (int, float32) {
	bestIdx := -1
	var bestScore float32
	for i, s := range scores {
		if bestIdx < 0 || s > bestScore {
			bestIdx, bestScore = i, s
		}
	}
	return bestIdx, bestScore
}

// gridPoints 在图片上均匀生成 n*n 个前景点，每个点位于网格中心
func gridPoints(w, h, n int) []Point {
	points := make([]Point, 0, n*n)
	stepX := float32(w) / float32(n)
	stepY := float32(h) / float32(n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			points = append(points, Point{
				X:     stepX * (float32(i) + 0.5),
				Y:     stepY * (float32(j) + 0.5),
				Label: LabelForeground,
			})
		}
	}
	return points
}

// nms 按分数降序保留，丢弃与已保留框重叠过高的 Annotation
func nms(anns []Annotation, iouThresh float32) []Annotation {
	sort.SliceStable(anns, func(i, j int) bool {
		return anns[i].PredictedIOU > anns[j].PredictedIOU
	})
	rects := make([]image.Rectangle, len(anns))
	for i, ann := range anns {
		rects[i] = ann.Rect()
	}

	keep := boxmatch.Suppress(rects, iouThresh)
	kept := make([]Annotation, len(keep))
	for i, k := range keep {
		kept[i] = anns[k]
	}
	return kept
}
