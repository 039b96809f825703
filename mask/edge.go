package mask

import (
	"context"
	"math"
)

const DefaultEdgeThreshold = 50.0

var (
	sobelX = [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	sobelY = [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
)

// Luminance 0.3R + 0.59G + 0.11B
func Luminance(r, g, b uint8) float64 {
	return 0.3*float64(r) + 0.59*float64(g) + 0.11*float64(b)
}

// EdgeMap Sobel 边缘检测，梯度幅值大于 threshold 的像素为白色，其余为黑色。
// 最外一圈像素不参与卷积，输出为不透明黑色。
func EdgeMap(ctx context.Context, buf PixelBuffer, threshold float64) (PixelBuffer, error) {
	if err := buf.Validate(); err != nil {
		return PixelBuffer{}, err
	}

	w, h := buf.Width, buf.Height
	gray := make([]float64, w*h)
	for i := range gray {
		gray[i] = Luminance(buf.Pix[i*4], buf.Pix[i*4+1], buf.Pix[i*4+2])
	}

	out := NewPixelBuffer(w, h)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}

	err := forEachRow(ctx, h, func(y int) {
		if y == 0 || y == h-1 {
			return
		}
		for x := 1; x < w-1; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					p := gray[(y+ky)*w+x+kx]
					gx += sobelX[ky+1][kx+1] * p
					gy += sobelY[ky+1][kx+1] * p
				}
			}
			if math.Sqrt(gx*gx+gy*gy) > threshold {
				i := (y*w + x) * 4
				out.Pix[i], out.Pix[i+1], out.Pix[i+2] = 255, 255, 255
			}
		}
	})
	if err != nil {
		return PixelBuffer{}, err
	}
	return out, nil
}
