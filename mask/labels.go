package mask

import "context"

const (
	DefaultLabelThreshold float32 = 0.5
	// PersonLabelThreshold 人像分割使用稍高的阈值以减少噪点
	PersonLabelThreshold float32 = 0.7
)

// LabelEstimator 把外部分割模型的逐像素置信度二值化
type LabelEstimator struct {
	Labels    []float32
	Threshold float32
}

func (e *LabelEstimator) Estimate(ctx context.Context, buf PixelBuffer) (*Mask, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if want := buf.Width * buf.Height; len(e.Labels) != want {
		return nil, shapeError("labels", want, len(e.Labels))
	}

	threshold := e.Threshold
	if threshold <= 0 {
		threshold = DefaultLabelThreshold
	}

	m := NewMask(buf.Width, buf.Height)
	err := forEachRow(ctx, buf.Height, func(y int) {
		row := y * buf.Width
		for x := 0; x < buf.Width; x++ {
			if e.Labels[row+x] >= threshold {
				m.Bits[row+x] = Foreground
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
