package mask

import (
	"context"
	"fmt"
)

// Params 一次抠图请求的参数
type Params struct {
	Strategy Strategy

	// ColorCluster
	ColorThreshold float64

	// SegmentationLabels
	Labels         []float32
	LabelThreshold float32

	// BoundingBoxes
	Objects  []DetectedObject
	MinScore float64
	Limit    int
	Selected []int

	Refine Refiner
}

// Output 抠图结果，掩码为精修后的版本
type Output struct {
	Cutout  PixelBuffer
	Mask    *Mask
	Objects []DetectedObject
}

// NewEstimator 按策略构造估计器
func NewEstimator(p Params) (Estimator, error) {
	switch p.Strategy {
	case ColorCluster:
		e := NewColorClusterEstimator()
		if p.ColorThreshold > 0 {
			e.Threshold = p.ColorThreshold
		}
		return e, nil
	case SegmentationLabels:
		return &LabelEstimator{Labels: p.Labels, Threshold: p.LabelThreshold}, nil
	case BoundingBoxes:
		return &BoxEstimator{
			Objects:  p.Objects,
			MinScore: p.MinScore,
			Limit:    p.Limit,
			Selected: p.Selected,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported strategy %s", p.Strategy)
	}
}

// Run 估计 -> 精修 -> 合成。任何一步出错都不会返回部分结果。
func Run(ctx context.Context, buf PixelBuffer, p Params) (*Output, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	est, err := NewEstimator(p)
	if err != nil {
		return nil, err
	}

	var objects []DetectedObject
	if be, ok := est.(*BoxEstimator); ok {
		objects = be.Filter()
		if len(objects) == 0 {
			return nil, ErrNoForegroundDetected
		}
	}

	m, err := est.Estimate(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("estimate %s mask: %w", p.Strategy, err)
	}
	if err := p.Refine.Refine(ctx, m); err != nil {
		return nil, fmt.Errorf("refine mask: %w", err)
	}

	cutout, err := Composite(buf, m)
	if err != nil {
		return nil, err
	}
	return &Output{Cutout: cutout, Mask: m, Objects: objects}, nil
}
