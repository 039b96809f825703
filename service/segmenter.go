package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"strings"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/mask"
	"github.com/go-resty/resty/v2"
	xdraw "golang.org/x/image/draw"
)

// SegmenterClient 调用远端分割模型，返回逐像素前景置信度
type SegmenterClient struct {
	client   *resty.Client
	endpoint string
	loader   *ModelLoader
}

func NewSegmenterClient(cfg *config.SegmenterConfig) *SegmenterClient {
	c := &SegmenterClient{
		client:   resty.New().SetTimeout(cfg.Timeout),
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
	}
	c.loader = NewModelLoader("segmenter", c.probe)
	return c
}

func (c *SegmenterClient) probe(ctx context.Context) error {
	if c.endpoint == "" {
		return errors.New("segmenter endpoint not configured")
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

func (c *SegmenterClient) EnsureLoaded(ctx context.Context) error {
	return c.loader.EnsureLoaded(ctx)
}

// Segment 上传 PNG，返回长度为 width*height 的置信度，取值 [0,1]
func (c *SegmenterClient) Segment(ctx context.Context, data []byte, width, height int) ([]float32, error) {
	if err := c.loader.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetFileReader("image", "image.png", bytes.NewReader(data)).
		Post(c.endpoint + "/segment")
	if err != nil {
		return nil, fmt.Errorf("%w: segment request: %v", mask.ErrExternalModelUnavailable, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: segmenter status %d", mask.ErrExternalModelUnavailable, resp.StatusCode())
	}

	confidence, _, err := image.Decode(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: decode segmentation mask: %v", mask.ErrExternalModelUnavailable, err)
	}
	return ConfidenceLabels(confidence, width, height), nil
}

// ConfidenceLabels 把灰度置信度图缩放到目标尺寸并归一化
func ConfidenceLabels(img image.Image, width, height int) []float32 {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	if img.Bounds().Size() == gray.Bounds().Size() {
		xdraw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, xdraw.Src)
	} else {
		xdraw.BiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	}

	labels := make([]float32, width*height)
	for y := 0; y < height; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
		for x, v := range row {
			labels[y*width+x] = float32(v) / 255
		}
	}
	return labels
}
