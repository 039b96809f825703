package mask

import "strings"

// solid 生成纯色不透明图像
func solid(w, h int, c Color) PixelBuffer {
	buf := NewPixelBuffer(w, h)
	for i := 0; i < w*h; i++ {
		buf.Pix[i*4], buf.Pix[i*4+1], buf.Pix[i*4+2], buf.Pix[i*4+3] = c.R, c.G, c.B, 255
	}
	return buf
}

func paint(buf PixelBuffer, x0, y0, x1, y1 int, c Color) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			i := (y*buf.Width + x) * 4
			buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2] = c.R, c.G, c.B
		}
	}
}

// parseMask 用 '#' 表示前景、'.' 表示背景
func parseMask(rows ...string) *Mask {
	m := NewMask(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, ch := range row {
			if ch == '#' {
				m.Set(x, y, Foreground)
			}
		}
	}
	return m
}

func (m *Mask) String() string {
	var sb strings.Builder
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.At(x, y) == Foreground {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

var (
	white = Color{R: 255, G: 255, B: 255}
	blue  = Color{R: 0, G: 0, B: 255}
	black = Color{}
)
