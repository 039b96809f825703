package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/model"
	"github.com/dany616/bgenius-background-processor/service"
	"github.com/gin-gonic/gin"
)

type GenerateHandler struct {
	cfg       *config.Config
	processor *service.Processor
}

func NewGenerateHandler(cfg *config.Config, processor *service.Processor) *GenerateHandler {
	return &GenerateHandler{cfg: cfg, processor: processor}
}

// Generate 去背景后生成新背景
func (h *GenerateHandler) Generate(c *gin.Context) {
	up, err := readUpload(c, &h.cfg.Upload)
	if err != nil {
		respondError(c, err)
		return
	}
	req, err := cutoutRequest(c, up, &h.cfg.Pipeline)
	if err != nil {
		respondError(c, err)
		return
	}

	opts := service.GenerateOptions{
		Cutout:         *req,
		Prompt:         c.PostForm("prompt"),
		NegativePrompt: c.PostForm("negative_prompt"),
		Style:          c.PostForm("style"),
	}
	if raw := c.PostForm("steps"); raw != "" {
		if opts.Steps, err = strconv.Atoi(raw); err != nil || opts.Steps <= 0 {
			respondError(c, fmt.Errorf("%w: steps %q", service.ErrInvalidParameter, raw))
			return
		}
	}
	if raw := c.PostForm("seed"); raw != "" {
		if opts.Seed, err = strconv.ParseInt(raw, 10, 64); err != nil {
			respondError(c, fmt.Errorf("%w: seed %q", service.ErrInvalidParameter, raw))
			return
		}
	}

	result, err := h.processor.Process(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success:  true,
		Message:  "处理成功",
		Data:     result,
		Warnings: up.warnings,
	})
}
