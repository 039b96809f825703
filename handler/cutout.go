package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/model"
	"github.com/dany616/bgenius-background-processor/service"
	"github.com/dany616/bgenius-background-processor/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CutoutHandler struct {
	cfg    *config.Config
	cutout *service.CutoutService
	cache  service.ResultCache
	store  service.ImageStore
}

func NewCutoutHandler(cfg *config.Config, cutout *service.CutoutService, cache service.ResultCache, store service.ImageStore) *CutoutHandler {
	return &CutoutHandler{
		cfg:    cfg,
		cutout: cutout,
		cache:  cache,
		store:  store,
	}
}

// Remove 同步去背景
func (h *CutoutHandler) Remove(c *gin.Context) {
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

	utils.Logger.Info("file uploaded",
		zap.String("filename", up.filename),
		zap.Int("size", len(up.data)),
		zap.String("strategy", req.Strategy))

	result, err := h.cutout.Remove(c.Request.Context(), req, nil)
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

// Edges 生成边缘图
func (h *CutoutHandler) Edges(c *gin.Context) {
	up, err := readUpload(c, &h.cfg.Upload)
	if err != nil {
		respondError(c, err)
		return
	}

	var threshold float64
	if raw := c.PostForm("threshold"); raw != "" {
		threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil || threshold < 0 {
			respondError(c, fmt.Errorf("%w: threshold %q", service.ErrInvalidParameter, raw))
			return
		}
	}

	result, err := h.cutout.Edges(c.Request.Context(), up.data, threshold)
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

// GetResult 根据缓存 key 获取抠图结果
func (h *CutoutHandler) GetResult(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "key参数缺失",
		})
		return
	}

	result, err := h.cache.GetResult(c.Request.Context(), key)
	if err != nil {
		utils.Logger.Error("failed to get cutout result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Success: false,
			Message: "查询失败",
			Error:   err.Error(),
		})
		return
	}

	if result == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Success: false,
			Message: "未找到该图片的处理结果",
		})
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Message: "查询成功",
		Data:    result,
	})
}

// TempImage 返回保存的结果图片
func (h *CutoutHandler) TempImage(c *gin.Context) {
	filename := c.Param("filename")
	data, err := h.store.Load(c.Request.Context(), filename)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, service.MimeType(strings.TrimPrefix(filepath.Ext(filename), ".")), data)
}
