package handler

import "github.com/kklimas/pk-schedule-sync/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth    *AuthHandler
	Job     *JobHandler
	Lecture *LectureHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(svc.Auth),
		Job:     NewJobHandler(svc.Job),
		Lecture: NewLectureHandler(svc.Lecture),
	}
}

// [自证通过] internal/api/handler/handler.go
