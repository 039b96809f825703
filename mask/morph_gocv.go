//go:build gocv

package mask

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// OpenCV BORDER_REPLICATE
const borderReplicate = 1

// morph 的 OpenCV 实现：矩形结构元素加 BORDER_REPLICATE，与截断邻域的纯 Go 版本结果一致。
// 膨胀通过对补集腐蚀得到。
func morph(ctx context.Context, m *Mask, radius int, from, to uint8) (*Mask, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	out := m.Clone()
	if radius <= 0 || m.Width == 0 || m.Height == 0 {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 腐蚀对前景做最小值滤波；膨胀时先取反
	invert := to == Foreground
	if invert {
		flip(out.Bits)
	}

	src, err := gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV8UC1, out.Bits)
	if err != nil {
		return nil, fmt.Errorf("create mat: %w", err)
	}
	defer src.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 2*radius + 1, Y: 2*radius + 1})
	defer kernel.Close()

	eroded := gocv.NewMat()
	defer eroded.Close()

	if err := gocv.ErodeWithParams(src, &eroded, kernel, image.Point{X: -1, Y: -1}, 1, borderReplicate); err != nil {
		return nil, fmt.Errorf("erode: %w", err)
	}

	copy(out.Bits, eroded.ToBytes())
	if invert {
		flip(out.Bits)
	}
	return out, nil
}

func flip(bits []uint8) {
	for i, v := range bits {
		bits[i] = Foreground - v
	}
}
