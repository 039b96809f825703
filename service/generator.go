package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/mask"
	"github.com/dany616/bgenius-background-processor/utils"
	"github.com/go-resty/resty/v2"
)

var ErrInvalidPrompt = errors.New("prompt is required for background generation")

const DefaultStyle = "realistic"

// GenerateRequest 背景生成参数，Image 为去背景后的 PNG
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	Style          string
	Steps          int
	Seed           int64
	Image          []byte
	APIKey         string
}

type briaPayload struct {
	Model          string  `json:"model"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Steps          int     `json:"num_inference_steps"`
	GuidanceScale  float64 `json:"guidance_scale"`
	Seed           int64   `json:"seed,omitempty"`
	Image          string  `json:"image"`
	Strength       float64 `json:"strength"`
}

type briaResponse struct {
	Image string `json:"image"`
}

// BriaClient BRIA 文生背景接口，5xx 和网络错误会重试
type BriaClient struct {
	client *resty.Client
	cfg    config.BriaConfig
}

func NewBriaClient(cfg *config.BriaConfig) *BriaClient {
	retries := max(cfg.RetryAttempts-1, 0)
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests
		})
	return &BriaClient{client: client, cfg: *cfg}
}

func (c *BriaClient) payload(req GenerateRequest) briaPayload {
	p := briaPayload{
		Model:          c.cfg.Model,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Steps:          req.Steps,
		GuidanceScale:  c.cfg.GuidanceScale,
		Seed:           req.Seed,
		Image:          utils.BufferToDataURL(req.Image, "image/png"),
		Strength:       c.cfg.Strength,
	}
	if req.Style != "" {
		p.Prompt = fmt.Sprintf("%s, %s style", req.Prompt, req.Style)
	}
	if p.NegativePrompt == "" {
		p.NegativePrompt = c.cfg.NegativePrompt
	}
	if p.Steps <= 0 {
		p.Steps = c.cfg.Steps
	}
	return p
}

// Generate 返回生成的背景图片原始字节
func (c *BriaClient) Generate(ctx context.Context, req GenerateRequest) ([]byte, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrInvalidPrompt
	}
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.cfg.APIKey
	}
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	var out briaResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetBody(c.payload(req)).
		SetResult(&out).
		Post(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: bria request: %v", mask.ErrExternalModelUnavailable, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: bria status %d: %s", mask.ErrExternalModelUnavailable, resp.StatusCode(), resp.String())
	}
	if out.Image == "" {
		return nil, fmt.Errorf("%w: no image data received from bria", mask.ErrExternalModelUnavailable)
	}

	if strings.HasPrefix(out.Image, "data:") {
		data, _, err := utils.DataURLToBuffer(out.Image)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", mask.ErrExternalModelUnavailable, err)
		}
		return data, nil
	}
	data, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: decode bria image: %v", mask.ErrExternalModelUnavailable, err)
	}
	return data, nil
}
