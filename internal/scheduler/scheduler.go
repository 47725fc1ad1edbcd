package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kklimas/pk-schedule-sync/config"
	"github.com/kklimas/pk-schedule-sync/internal/service"
)

// Scheduler 定时同步调度器
// 按配置的 cron 表达式以 triggered_by=system 触发同步任务；
// 单航道互斥由任务自身的锁保证，这里不做额外串行化
type Scheduler struct {
	cron   *cron.Cron
	jobSvc service.JobService
	logger *zap.Logger
}

// New 创建调度器；cron 表达式为空时返回 (nil, nil) 表示不启用
func New(cfg *config.SyncConfig, jobSvc service.JobService, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Cron == "" {
		logger.Info("sync.cron 未配置，定时同步未启用")
		return nil, nil
	}

	s := &Scheduler{
		cron:   cron.New(),
		jobSvc: jobSvc,
		logger: logger,
	}

	if _, err := s.cron.AddFunc(cfg.Cron, s.runScheduledSync); err != nil {
		return nil, err
	}

	logger.Info("定时同步已注册", zap.String("cron", cfg.Cron))
	return s, nil
}

func (s *Scheduler) runScheduledSync() {
	job, err := s.jobSvc.TriggerSync(context.Background(), "system")
	if err != nil {
		s.logger.Error("定时同步触发失败", zap.Error(err))
		return
	}
	s.logger.Info("定时同步已触发", zap.String("job_id", job.ID))
}

// Start 启动调度循环（非阻塞）
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待进行中的触发返回
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
