//go:build !gocv

package mask

import "context"

// morph 对值为 from 的像素检查 (2r+1)x(2r+1) 方形邻域，邻域内出现 to 时改写为 to。
// 邻域坐标被截断到图像范围内，等价于边缘复制。
func morph(ctx context.Context, m *Mask, radius int, from, to uint8) (*Mask, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	out := m.Clone()
	if radius <= 0 {
		return out, nil
	}

	w, h := m.Width, m.Height
	err := forEachRow(ctx, h, func(y int) {
		y0, y1 := max(0, y-radius), min(h-1, y+radius)
		for x := 0; x < w; x++ {
			if m.Bits[y*w+x] != from {
				continue
			}
			x0, x1 := max(0, x-radius), min(w-1, x+radius)
			if windowHas(m, x0, y0, x1, y1, to) {
				out.Bits[y*w+x] = to
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func windowHas(m *Mask, x0, y0, x1, y1 int, v uint8) bool {
	for ny := y0; ny <= y1; ny++ {
		row := m.Bits[ny*m.Width : (ny+1)*m.Width]
		for nx := x0; nx <= x1; nx++ {
			if row[nx] == v {
				return true
			}
		}
	}
	return false
}
