package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/kklimas/pk-schedule-sync/config"
	"github.com/kklimas/pk-schedule-sync/internal/repository"
	"github.com/kklimas/pk-schedule-sync/pkg/jwt"
	"github.com/kklimas/pk-schedule-sync/pkg/redis"
)

// Service 业务服务聚合
type Service struct {
	Auth    AuthService
	Job     JobService
	Lecture LectureService
}

// NewService 创建业务服务聚合实例
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	source := NewSourceService(&cfg.Source, logger)
	syncSvc := NewSyncService(repo, logger)
	ai := NewAIService(&cfg.AI, logger)
	calendar := NewCalendarService(context.Background(), &cfg.Calendar, logger)
	notify := NewNotifyService(&cfg.Notify, logger)

	return &Service{
		Auth:    NewAuthService(cfg, jwtMgr),
		Job:     NewJobService(cfg, repo, source, syncSvc, ai, calendar, notify, rdb, logger),
		Lecture: NewLectureService(&cfg.Calendar, repo, logger),
	}
}
