package mask

import (
	"context"
	"image"
	"math"
	"slices"
)

// BoundingBox 检测框，像素坐标
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Clamp 向下取整后裁剪到图像范围内
func (b BoundingBox) Clamp(width, height int) image.Rectangle {
	if b.Width <= 0 || b.Height <= 0 {
		return image.Rectangle{}
	}
	r := image.Rect(
		int(math.Floor(b.X)),
		int(math.Floor(b.Y)),
		int(math.Floor(b.X+b.Width)),
		int(math.Floor(b.Y+b.Height)),
	)
	return r.Intersect(image.Rect(0, 0, width, height))
}

// DetectedObject 检测器输出的单个目标
type DetectedObject struct {
	Class string      `json:"class"`
	Score float64     `json:"score"`
	BBox  BoundingBox `json:"bbox"`
}

// BoxEstimator 把检测框栅格化为掩码，多个框取并集
type BoxEstimator struct {
	Objects  []DetectedObject
	MinScore float64
	// Limit 大于 0 时只保留得分最高的 Limit 个
	Limit int
	// Selected 用户选择的下标（相对于按得分排序后的列表），优先于 Limit
	Selected []int
}

// Filter 返回参与栅格化的目标
func (e *BoxEstimator) Filter() []DetectedObject {
	kept := make([]DetectedObject, 0, len(e.Objects))
	for _, o := range e.Objects {
		if o.Score >= e.MinScore {
			kept = append(kept, o)
		}
	}
	slices.SortStableFunc(kept, func(a, b DetectedObject) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(e.Selected) > 0 {
		picked := make([]DetectedObject, 0, len(e.Selected))
		for _, i := range e.Selected {
			if i >= 0 && i < len(kept) {
				picked = append(picked, kept[i])
			}
		}
		return picked
	}
	if e.Limit > 0 && len(kept) > e.Limit {
		kept = kept[:e.Limit]
	}
	return kept
}

// Estimate 没有目标时返回全背景掩码，由调用方决定如何提示
func (e *BoxEstimator) Estimate(ctx context.Context, buf PixelBuffer) (*Mask, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	m := NewMask(buf.Width, buf.Height)
	for _, o := range e.Filter() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := o.BBox.Clamp(buf.Width, buf.Height)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			row := m.Bits[y*m.Width : (y+1)*m.Width]
			for x := r.Min.X; x < r.Max.X; x++ {
				row[x] = Foreground
			}
		}
	}
	return m, nil
}
