package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/mask"
	"github.com/go-resty/resty/v2"
)

// detection 检测服务的返回格式，bbox 为 [x, y, width, height]
type detection struct {
	Class string    `json:"class"`
	Score float64   `json:"score"`
	BBox  []float64 `json:"bbox"`
}

// DetectorClient 调用远端目标检测模型
type DetectorClient struct {
	client   *resty.Client
	endpoint string
	maxBoxes int
	minScore float64
	loader   *ModelLoader
}

func NewDetectorClient(cfg *config.DetectorConfig) *DetectorClient {
	c := &DetectorClient{
		client:   resty.New().SetTimeout(cfg.Timeout),
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		maxBoxes: cfg.MaxBoxes,
		minScore: cfg.MinScore,
	}
	c.loader = NewModelLoader("detector", c.probe)
	return c
}

func (c *DetectorClient) probe(ctx context.Context) error {
	if c.endpoint == "" {
		return errors.New("detector endpoint not configured")
	}
	resp, err := c.client.R().SetContext(ctx).Get(c.endpoint + "/health")
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("health check status %d", resp.StatusCode())
	}
	return nil
}

func (c *DetectorClient) EnsureLoaded(ctx context.Context) error {
	return c.loader.EnsureLoaded(ctx)
}

// Detect 返回按得分降序、不超过 maxBoxes 个的目标
func (c *DetectorClient) Detect(ctx context.Context, data []byte) ([]mask.DetectedObject, error) {
	if err := c.loader.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("image", "image.png", bytes.NewReader(data)).
		Post(c.endpoint + "/detect")
	if err != nil {
		return nil, fmt.Errorf("%w: detect request: %v", mask.ErrExternalModelUnavailable, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: detector status %d", mask.ErrExternalModelUnavailable, resp.StatusCode())
	}

	var raw []detection
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("%w: decode detections: %v", mask.ErrExternalModelUnavailable, err)
	}
	return toObjects(raw, c.minScore, c.maxBoxes)
}

func toObjects(raw []detection, minScore float64, maxBoxes int) ([]mask.DetectedObject, error) {
	objects := make([]mask.DetectedObject, 0, len(raw))
	for i, d := range raw {
		if len(d.BBox) != 4 {
			return nil, fmt.Errorf("%w: detection %d has %d bbox values", mask.ErrExternalModelUnavailable, i, len(d.BBox))
		}
		if d.Score < minScore {
			continue
		}
		objects = append(objects, mask.DetectedObject{
			Class: d.Class,
			Score: d.Score,
			BBox:  mask.BoundingBox{X: d.BBox[0], Y: d.BBox[1], Width: d.BBox[2], Height: d.BBox[3]},
		})
	}

	slices.SortStableFunc(objects, func(a, b mask.DetectedObject) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if maxBoxes > 0 && len(objects) > maxBoxes {
		objects = objects[:maxBoxes]
	}
	return objects, nil
}
