package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kklimas/pk-schedule-sync/internal/dto"
	"github.com/kklimas/pk-schedule-sync/internal/service"
	"github.com/kklimas/pk-schedule-sync/pkg/response"
)

// LectureHandler 课程模块 HTTP 处理器
type LectureHandler struct {
	lectureSvc service.LectureService
}

// NewLectureHandler 创建 LectureHandler
func NewLectureHandler(lectureSvc service.LectureService) *LectureHandler {
	return &LectureHandler{lectureSvc: lectureSvc}
}

// ListLectures 分页列出今天起未停课的课程
// GET /api/v1/lectures
func (h *LectureHandler) ListLectures(c *gin.Context) {
	var query dto.ListLecturesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	items, total, err := h.lectureSvc.List(c.Request.Context(), &query)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, items, total, query.GetPage(), query.GetPageSize())
}

// ICSFeed 输出 iCalendar 订阅源
// GET /api/v1/lectures/feed.ics
// 订阅端（手机日历等）直接轮询该地址，响应为 text/calendar
func (h *LectureHandler) ICSFeed(c *gin.Context) {
	feed, err := h.lectureSvc.ICSFeed(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="pk-schedule.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(feed))
}
