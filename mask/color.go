package mask

import (
	"context"
	"math"
	"slices"
)

const (
	DefaultClusterK       = 3
	DefaultClusterBucket  = 10
	DefaultColorThreshold = 30.0
)

// Color 聚类时使用的 RGB 三元组
type Color struct {
	R, G, B uint8
}

// Distance RGB 空间的欧氏距离
func (c Color) Distance(o Color) float64 {
	dr := float64(c.R) - float64(o.R)
	dg := float64(c.G) - float64(o.G)
	db := float64(c.B) - float64(o.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func (c Color) quantize(bucket int) Color {
	q := func(v uint8) uint8 {
		return uint8(int(v) / bucket * bucket)
	}
	return Color{R: q(c.R), G: q(c.G), B: q(c.B)}
}

// ColorClusterEstimator 以图像边缘的主色作为背景色
type ColorClusterEstimator struct {
	K          int
	BucketSize int
	Threshold  float64
}

func NewColorClusterEstimator() *ColorClusterEstimator {
	return &ColorClusterEstimator{
		K:          DefaultClusterK,
		BucketSize: DefaultClusterBucket,
		Threshold:  DefaultColorThreshold,
	}
}

func (e *ColorClusterEstimator) Estimate(ctx context.Context, buf PixelBuffer) (*Mask, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	// 没有内部像素时聚类没有意义
	if buf.Width < 2 || buf.Height < 2 {
		m := NewMask(buf.Width, buf.Height)
		m.Fill(Foreground)
		return m, nil
	}

	return Classify(ctx, buf, e.DominantColors(buf), e.Threshold)
}

// SampleBorder 依次采样顶行、底行以及中间各行的左右两端
func SampleBorder(buf PixelBuffer) []Color {
	w, h := buf.Width, buf.Height
	if w == 0 || h == 0 {
		return nil
	}

	at := func(x, y int) Color {
		i := (y*w + x) * 4
		return Color{R: buf.Pix[i], G: buf.Pix[i+1], B: buf.Pix[i+2]}
	}

	samples := make([]Color, 0, 2*w+2*h)
	for x := 0; x < w; x++ {
		samples = append(samples, at(x, 0))
		if h > 1 {
			samples = append(samples, at(x, h-1))
		}
	}
	for y := 1; y < h-1; y++ {
		samples = append(samples, at(0, y))
		if w > 1 {
			samples = append(samples, at(w-1, y))
		}
	}
	return samples
}

// DominantColors 量化边缘采样并返回出现次数最多的 K 个颜色。
// 次数相同时按首次出现的顺序排列。
func (e *ColorClusterEstimator) DominantColors(buf PixelBuffer) []Color {
	bucket := e.BucketSize
	if bucket <= 0 {
		bucket = DefaultClusterBucket
	}

	type entry struct {
		color Color
		count int
	}
	var entries []entry
	index := make(map[Color]int)
	for _, c := range SampleBorder(buf) {
		q := c.quantize(bucket)
		if i, ok := index[q]; ok {
			entries[i].count++
			continue
		}
		index[q] = len(entries)
		entries = append(entries, entry{color: q, count: 1})
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		return b.count - a.count
	})

	k := min(e.K, len(entries))
	if k < 0 {
		k = 0
	}
	colors := make([]Color, k)
	for i := range colors {
		colors[i] = entries[i].color
	}
	return colors
}

// Classify 与任一背景色距离小于 threshold 的像素记为背景，其余为前景
func Classify(ctx context.Context, buf PixelBuffer, background []Color, threshold float64) (*Mask, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	m := NewMask(buf.Width, buf.Height)
	err := forEachRow(ctx, buf.Height, func(y int) {
		for x := 0; x < buf.Width; x++ {
			i := y*buf.Width + x
			p := Color{R: buf.Pix[i*4], G: buf.Pix[i*4+1], B: buf.Pix[i*4+2]}

			v := Foreground
			for _, bg := range background {
				if p.Distance(bg) < threshold {
					v = Background
					break
				}
			}
			m.Bits[i] = v
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
