package mask

import (
	"context"
	"fmt"
	"strings"
)

// Estimator 从像素缓冲区生成初始掩码
type Estimator interface {
	Estimate(ctx context.Context, buf PixelBuffer) (*Mask, error)
}

// Strategy 掩码估计策略
type Strategy int

const (
	ColorCluster Strategy = iota
	SegmentationLabels
	BoundingBoxes
)

func (s Strategy) String() string {
	switch s {
	case ColorCluster:
		return "color"
	case SegmentationLabels:
		return "segmentation"
	case BoundingBoxes:
		return "boxes"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy 解析策略名称
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "color", "color_cluster":
		return ColorCluster, nil
	case "segmentation", "labels":
		return SegmentationLabels, nil
	case "boxes", "objects", "bounding_boxes":
		return BoundingBoxes, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", name)
	}
}
