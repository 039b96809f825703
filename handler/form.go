package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/mask"
	"github.com/dany616/bgenius-background-processor/service"
	"github.com/gin-gonic/gin"
)

type upload struct {
	data     []byte
	filename string
	warnings []string
}

// readUpload 读取并校验表单中的 image 文件
func readUpload(c *gin.Context, cfg *config.UploadConfig) (*upload, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrEmptyUpload, err)
	}

	warnings, err := service.ValidateUpload(cfg, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &upload{data: data, filename: file.Filename, warnings: warnings}, nil
}

// cutoutRequest 解析去背景参数，未指定 format 时使用 pipeline.output_format
func cutoutRequest(c *gin.Context, up *upload, cfg *config.PipelineConfig) (*service.CutoutRequest, error) {
	req := &service.CutoutRequest{
		Data:     up.data,
		Filename: up.filename,
		Strategy: strings.ToLower(strings.TrimSpace(c.DefaultPostForm("strategy", "color"))),
		Format:   c.DefaultPostForm("format", cfg.OutputFormat),
		APIKey:   c.PostForm("api_key"),
	}

	if req.Strategy != service.StrategyRemoveBG {
		if _, err := mask.ParseStrategy(req.Strategy); err != nil {
			return nil, fmt.Errorf("%w: %v", service.ErrInvalidParameter, err)
		}
	}
	if _, err := service.NormalizeFormat(req.Format); err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrInvalidParameter, err)
	}

	if raw := c.PostForm("boxes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Objects); err != nil {
			return nil, fmt.Errorf("%w: boxes: %v", service.ErrInvalidParameter, err)
		}
	}
	if raw := c.PostForm("selected"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			i, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("%w: selected: %v", service.ErrInvalidParameter, err)
			}
			req.Selected = append(req.Selected, i)
		}
	}
	if raw := c.PostForm("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: threshold %q", service.ErrInvalidParameter, raw)
		}
		req.Threshold = v
	}
	if raw := c.PostForm("radius"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: radius %q", service.ErrInvalidParameter, raw)
		}
		req.Radius = &v
	}
	return req, nil
}
