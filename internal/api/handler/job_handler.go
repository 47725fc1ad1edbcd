package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kklimas/pk-schedule-sync/internal/dto"
	"github.com/kklimas/pk-schedule-sync/internal/service"
	"github.com/kklimas/pk-schedule-sync/pkg/response"
)

// JobHandler 同步任务模块 HTTP 处理器
type JobHandler struct {
	jobSvc service.JobService
}

// NewJobHandler 创建 JobHandler
func NewJobHandler(jobSvc service.JobService) *JobHandler {
	return &JobHandler{jobSvc: jobSvc}
}

// TriggerSync 触发一次同步任务
// POST /api/v1/jobs
// 立即返回 202 与任务初始状态，管线在后台执行
func (h *JobHandler) TriggerSync(c *gin.Context) {
	triggeredBy := c.GetString("subject")
	if triggeredBy == "" {
		triggeredBy = "admin"
	}

	job, err := h.jobSvc.TriggerSync(c.Request.Context(), triggeredBy)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.Accepted(c, dto.JobResponse{
		JobID:       job.ID,
		Status:      job.Status,
		StartedAt:   job.StartedAt.Format(time.RFC3339),
		Message:     job.Message,
		TriggeredBy: job.TriggeredBy,
	})
}

// GetStatus 查询任务状态
// GET /api/v1/jobs/status/:id
func (h *JobHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.BadRequest(c, 10001, "任务 ID 格式无效")
		return
	}

	job, err := h.jobSvc.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFound(c, 12001, "同步任务不存在")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, job)
}

// ListJobs 分页列出任务
// GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	var query dto.ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	items, total, err := h.jobSvc.ListJobs(c.Request.Context(), &query)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, items, total, query.GetPage(), query.GetPageSize())
}
