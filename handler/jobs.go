package handler

import (
	"net/http"

	"github.com/dany616/bgenius-background-processor/config"
	"github.com/dany616/bgenius-background-processor/model"
	"github.com/dany616/bgenius-background-processor/service"
	"github.com/gin-gonic/gin"
)

type JobHandler struct {
	cfg  *config.Config
	jobs *service.JobRunner
}

func NewJobHandler(cfg *config.Config, jobs *service.JobRunner) *JobHandler {
	return &JobHandler{cfg: cfg, jobs: jobs}
}

// Create 提交异步去背景任务，返回 202 和任务地址
func (h *JobHandler) Create(c *gin.Context) {
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

	job, err := h.jobs.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Location", "/api/v1/jobs/"+job.ID)
	c.JSON(http.StatusAccepted, model.Response{
		Success:  true,
		Message:  "任务已提交",
		Data:     job,
		Warnings: up.warnings,
	})
}

// Get 查询任务状态
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Message: "查询成功",
		Data:    job,
	})
}
