package service

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/kklimas/pk-schedule-sync/config"
	"github.com/kklimas/pk-schedule-sync/internal/dto"
	"github.com/kklimas/pk-schedule-sync/internal/model"
	"github.com/kklimas/pk-schedule-sync/internal/repository"
)

// ── 课程查询模块 ──
//
// 只读：分页列出今天起未停课的课程，或渲染为 ICS 订阅源。
// 课程记录的写入全部发生在对账管线内。

// LectureService 课程查询业务接口
type LectureService interface {
	// List 分页列出今天（含）之后未停课的课程
	List(ctx context.Context, query *dto.ListLecturesQuery) ([]dto.LectureResponse, int64, error)
	// ICSFeed 把今天之后未停课的课程渲染为 iCalendar 订阅源
	ICSFeed(ctx context.Context) (string, error)
}

type lectureService struct {
	repo     *repository.Repository
	timezone string
	logger   *zap.Logger
}

// NewLectureService 创建 LectureService 实例
func NewLectureService(cfg *config.CalendarConfig, repo *repository.Repository, logger *zap.Logger) LectureService {
	return &lectureService{repo: repo, timezone: cfg.Timezone, logger: logger}
}

func (s *lectureService) List(ctx context.Context, query *dto.ListLecturesQuery) ([]dto.LectureResponse, int64, error) {
	page, pageSize := query.GetPage(), query.GetPageSize()
	today := time.Now().Format("2006-01-02")
	lectures, total, err := s.repo.Lecture.ListUpcoming(ctx, today, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("查询课程列表失败: %w", err)
	}

	items := make([]dto.LectureResponse, 0, len(lectures))
	for i := range lectures {
		items = append(items, toLectureResponse(&lectures[i]))
	}
	return items, total, nil
}

func (s *lectureService) ICSFeed(ctx context.Context) (string, error) {
	today := time.Now().Format("2006-01-02")
	lectures, err := s.repo.Lecture.ListUpcomingAll(ctx, today)
	if err != nil {
		return "", fmt.Errorf("查询课程列表失败: %w", err)
	}

	loc, err := time.LoadLocation(s.timezone)
	if err != nil {
		loc = time.Local
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//pk-schedule-sync//PL")

	for i := range lectures {
		l := &lectures[i]
		if l.StartTime == nil {
			continue // 无时间的记录无法构成日历事件
		}

		start, err := time.ParseInLocation("2006-01-02 15:04", l.Date+" "+*l.StartTime, loc)
		if err != nil {
			s.logger.Warn("课程时间无法解析，跳过",
				zap.String("date", l.Date), zap.Stringp("start", l.StartTime))
			continue
		}
		end := start
		if l.EndTime != nil {
			if t, err := time.ParseInLocation("2006-01-02 15:04", l.Date+" "+*l.EndTime, loc); err == nil {
				end = t
			}
		}

		// UID 与 Google 事件 ID 同源，订阅端重复导入时天然去重
		change := model.NewLectureChange(l)
		eventID, _ := calendarEventID(&change)

		event := cal.AddEvent(eventID + "@pk-schedule-sync")
		event.SetDtStampTime(l.UpdatedAt)
		event.SetStartAt(start)
		event.SetEndAt(end)

		summary := l.Summary
		if l.Subject != nil {
			summary = *l.Subject
		}
		event.SetSummary(summary)
		if l.Room != nil {
			event.SetLocation(*l.Room)
		}
		if l.Teacher != nil {
			event.SetDescription("Teacher: " + *l.Teacher)
		}
	}

	return cal.Serialize(), nil
}

// toLectureResponse 课程记录 → 响应 DTO
func toLectureResponse(l *model.Lecture) dto.LectureResponse {
	resp := dto.LectureResponse{
		ID:        l.ID,
		Date:      l.Date,
		StartTime: l.StartTime,
		EndTime:   l.EndTime,
		Summary:   l.Summary,
		Subject:   l.Subject,
		Type:      l.Type,
		Teacher:   l.Teacher,
		Room:      l.Room,
	}

	if l.LastJob != nil {
		info := &dto.LectureJobInfo{
			JobID:  l.LastJob.ID,
			Status: l.LastJob.Status,
		}
		if l.LastJob.CompletedAt != nil {
			date := l.LastJob.CompletedAt.Format(time.RFC3339)
			info.Date = &date
		}
		resp.LastJob = info
	}

	return resp
}
