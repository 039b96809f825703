package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/mask"
	"github.com/go-resty/resty/v2"
)

var ErrAPIKeyMissing = errors.New("API key is required for this operation")

// RemoveBGClient remove.bg 去背景接口
type RemoveBGClient struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewRemoveBGClient(cfg *config.RemoveBGConfig) *RemoveBGClient {
	return &RemoveBGClient{
		client:   resty.New().SetTimeout(cfg.Timeout),
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
	}
}

// Remove 返回带透明通道的 PNG。apiKey 为空时使用配置中的 key
func (c *RemoveBGClient) Remove(ctx context.Context, data []byte, filename, apiKey string) ([]byte, error) {
	if apiKey == "" {
		apiKey = c.apiKey
	}
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	if filename == "" {
		filename = "image.png"
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", apiKey).
		SetFileReader("image_file", filename, bytes.NewReader(data)).
		SetFormData(map[string]string{"size": "auto"}).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: remove.bg request: %v", mask.ErrExternalModelUnavailable, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: remove.bg status %d: %s", mask.ErrExternalModelUnavailable, resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}
