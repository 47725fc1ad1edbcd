package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kklimas/pk-schedule-sync/config"
	"github.com/kklimas/pk-schedule-sync/internal/model"
)

// ── 日历同步 ──────────────────────────────────────────────
//
// 职责：把 新增/更新/停课 投影镜像到 Google Calendar。
//
// 幂等性来自确定性事件 ID：仅由 (date, start_time) 推导，
// 同一时段重跑得到同一 ID。操作集按远端实际存在性路由，
// 而非仅按变更分类——上次运行部分失败造成的漂移在下次运行被纠正。
//
// 完全尽力而为：本组件的任何失败都不会影响任务自身的状态。
// ─────────────────────────────────────────────────────────────

const (
	calendarChunkSize = 50 // 存在性检查与操作执行的分片大小
	calendarCheckFanout = 10 // 分片内并发 GET 的上限
)

// CalendarService 日历同步业务接口
type CalendarService interface {
	// Propagate 把变更集镜像到外部日历；无返回值，失败仅记日志
	Propagate(ctx context.Context, added, updated, cancelled []model.LectureChange)
}

type calendarService struct {
	svc        *calendar.Service // nil 表示禁用
	calendarID string
	timezone   string
	logger     *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
// 配置不完整或凭据初始化失败时返回禁用实例（只记日志，不报错）
func NewCalendarService(ctx context.Context, cfg *config.CalendarConfig, logger *zap.Logger, opts ...option.ClientOption) CalendarService {
	s := &calendarService{
		calendarID: cfg.CalendarID,
		timezone:   cfg.Timezone,
		logger:     logger,
	}

	if cfg.CalendarID == "" {
		logger.Warn("calendar.calendar_id 未配置，日历同步已禁用")
		return s
	}
	if len(opts) == 0 {
		if cfg.CredentialsFile == "" {
			logger.Warn("calendar.credentials_file 未配置，日历同步已禁用")
			return s
		}
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(calendar.CalendarScope),
		}
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		logger.Error("初始化 Google Calendar 客户端失败，日历同步已禁用", zap.Error(err))
		return s
	}

	s.svc = svc
	logger.Info("Google Calendar 客户端初始化成功", zap.String("calendar_id", cfg.CalendarID))
	return s
}

// calendarOp 单个待执行的日历操作
type calendarOp struct {
	kind    string // "insert" | "update" | "delete"
	eventID string
	event   *calendar.Event // delete 时为 nil
}

func (s *calendarService) Propagate(ctx context.Context, added, updated, cancelled []model.LectureChange) {
	if s.svc == nil {
		return
	}

	all := make([]model.LectureChange, 0, len(added)+len(updated)+len(cancelled))
	all = append(all, added...)
	all = append(all, updated...)
	all = append(all, cancelled...)
	if len(all) == 0 {
		return
	}

	// 1. 先核实哪些事件在远端已存在
	ids := make([]string, 0, len(all))
	for i := range all {
		if id, ok := calendarEventID(&all[i]); ok {
			ids = append(ids, id)
		}
	}
	existing := s.checkExisting(ctx, ids)
	s.logger.Info("日历存在性检查完成",
		zap.Int("checked", len(ids)),
		zap.Int("existing", len(existing)),
	)

	// 2. 按核实结果构造操作集
	ops := s.buildOps(existing, added, updated, cancelled)
	if len(ops) == 0 {
		s.logger.Info("核实后无需任何日历操作")
		return
	}

	// 3. 分片执行
	s.executeOps(ctx, ops)
}

// checkExisting 分片检查事件存在性；404 属正常结果，其他错误记日志后跳过
func (s *calendarService) checkExisting(ctx context.Context, ids []string) map[string]bool {
	existing := make(map[string]bool, len(ids))
	var mu sync.Mutex

	for start := 0; start < len(ids); start += calendarChunkSize {
		end := start + calendarChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, calendarCheckFanout)
		for _, id := range ids[start:end] {
			wg.Add(1)
			sem <- struct{}{}
			go func(eventID string) {
				defer wg.Done()
				defer func() { <-sem }()

				_, err := s.svc.Events.Get(s.calendarID, eventID).Context(ctx).Do()
				if err != nil {
					if !isGoogleStatus(err, 404) {
						s.logger.Error("检查日历事件存在性失败",
							zap.String("event_id", eventID), zap.Error(err))
					}
					return
				}
				mu.Lock()
				existing[eventID] = true
				mu.Unlock()
			}(id)
		}
		wg.Wait()
	}

	return existing
}

// buildOps 由核实过的存在性构造最终操作集：
// 停课 ∧ 远端存在 → delete；新增/更新 ∧ 远端存在 → update，否则 → insert
func (s *calendarService) buildOps(existing map[string]bool, added, updated, cancelled []model.LectureChange) []calendarOp {
	var ops []calendarOp

	deletes, inserts, updates := 0, 0, 0
	for i := range cancelled {
		id, ok := calendarEventID(&cancelled[i])
		if !ok || !existing[id] {
			continue
		}
		ops = append(ops, calendarOp{kind: "delete", eventID: id})
		deletes++
	}

	upserts := make([]model.LectureChange, 0, len(added)+len(updated))
	upserts = append(upserts, added...)
	upserts = append(upserts, updated...)
	for i := range upserts {
		change := &upserts[i]
		id, ok := calendarEventID(change)
		if !ok {
			// 无开始时间的记录无法构成日历事件
			s.logger.Debug("跳过缺少时间的课程", zap.String("date", change.Date))
			continue
		}
		op := calendarOp{eventID: id, event: s.eventBody(change, id)}
		if existing[id] {
			op.kind = "update"
			updates++
		} else {
			op.kind = "insert"
			inserts++
		}
		ops = append(ops, op)
	}

	s.logger.Info("日历操作集已构造",
		zap.Int("deletes", deletes),
		zap.Int("inserts", inserts),
		zap.Int("updates", updates),
	)
	return ops
}

// executeOps 分片执行操作；404/409 视为目标状态已达成，其余错误记日志后继续
func (s *calendarService) executeOps(ctx context.Context, ops []calendarOp) {
	for start := 0; start < len(ops); start += calendarChunkSize {
		end := start + calendarChunkSize
		if end > len(ops) {
			end = len(ops)
		}

		for _, op := range ops[start:end] {
			var err error
			switch op.kind {
			case "delete":
				err = s.svc.Events.Delete(s.calendarID, op.eventID).Context(ctx).Do()
			case "update":
				_, err = s.svc.Events.Update(s.calendarID, op.eventID, op.event).Context(ctx).Do()
			case "insert":
				_, err = s.svc.Events.Insert(s.calendarID, op.event).Context(ctx).Do()
			}

			if err != nil && !isGoogleStatus(err, 404, 409) {
				s.logger.Error("日历操作失败",
					zap.String("kind", op.kind),
					zap.String("event_id", op.eventID),
					zap.Error(err),
				)
			}
		}
		s.logger.Info("日历操作分片执行完成", zap.Int("count", end-start))
	}
}

// calendarEventID 由 (date, start_time) 推导确定性事件 ID
// Google 事件 ID 字符集为 base32hex（0-9 a-v），前缀 pk 便于识别；
// 缺少开始时间的记录不产生事件 ID
func calendarEventID(l *model.LectureChange) (string, bool) {
	if l.StartTime == nil {
		return "", false
	}
	date := strings.ReplaceAll(l.Date, "-", "")   // YYYYMMDD
	start := strings.ReplaceAll(*l.StartTime, ":", "") // HHMM
	return fmt.Sprintf("pk%s%s00", date, start), true
}

// eventBody 构造事件内容
func (s *calendarService) eventBody(l *model.LectureChange, eventID string) *calendar.Event {
	endTime := l.StartTime
	if l.EndTime != nil {
		endTime = l.EndTime
	}

	summary := l.Summary
	if l.Subject != nil {
		summary = *l.Subject
	}

	location := ""
	if l.Room != nil {
		location = *l.Room
	}

	teacher := "N/A"
	if l.Teacher != nil {
		teacher = *l.Teacher
	}
	descParts := []string{
		"Summary: " + l.Summary,
		"Teacher: " + teacher,
	}
	if l.Type != nil {
		descParts = append(descParts, "Type: "+*l.Type)
	}

	return &calendar.Event{
		Id:          eventID,
		Summary:     summary,
		Location:    location,
		Description: strings.Join(descParts, "\n"),
		Start: &calendar.EventDateTime{
			DateTime: fmt.Sprintf("%sT%s:00", l.Date, *l.StartTime),
			TimeZone: s.timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: fmt.Sprintf("%sT%s:00", l.Date, *endTime),
			TimeZone: s.timezone,
		},
	}
}

// isGoogleStatus 判断错误是否为指定 HTTP 状态的 Google API 错误
func isGoogleStatus(err error, codes ...int) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	for _, c := range codes {
		if gerr.Code == c {
			return true
		}
	}
	return false
}
