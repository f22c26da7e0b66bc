package boxmatch

import "image"

// axisSwap (y0, x0, y1, x1) 与 (x0, y0, x1, y1) 互换的下标顺序
var axisSwap = [4]int{1, 0, 3, 2}

// FromXYWH 将模型输出的 (x, y, w, h) 转换为 (y0, x0, y1, x1)
func FromXYWH[T Number](x, y, w, h T) Box[T] {
	return Box[T]{y, x, y + h, x + w}
}

// Permute 按 order 重新排列坐标，结果的第 i 个分量取 b[order[i]]
func Permute[T Number](b Box[T], order [4]int) Box[T] {
	var out Box[T]
	for i, idx := range order {
		out[i] = b[idx]
	}
	return out
}

// SwapAxes 交换行列坐标，(y0, x0, y1, x1) <-> (x0, y0, x1, y1)
func SwapAxes[T Number](b Box[T]) Box[T] {
	return Permute(b, axisSwap)
}

// FromRect 将 image.Rectangle 转换为 (x0, y0, x1, y1)
func FromRect(r image.Rectangle) Box[float32] {
	return Box[float32]{float32(r.Min.X), float32(r.Min.Y), float32(r.Max.X), float32(r.Max.Y)}
}

// Convert 转换坐标的数值类型
func Convert[D, S Number](b Box[S]) Box[D] {
	return Box[D]{D(b[0]), D(b[1]), D(b[2]), D(b[3])}
}
