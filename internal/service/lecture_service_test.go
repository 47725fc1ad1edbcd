package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kklimas/pk-schedule-sync/config"
	"github.com/kklimas/pk-schedule-sync/internal/dto"
	"github.com/kklimas/pk-schedule-sync/internal/model"
)

func newTestLectureService(t *testing.T) (LectureService, *mockLectureRepo) {
	t.Helper()
	repo, _, lectureRepo := newMockRepository()
	svc := NewLectureService(&config.CalendarConfig{Timezone: "Europe/Warsaw"}, repo, zap.NewNop())
	return svc, lectureRepo
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func TestLectureService_List_SkipsCancelledAndPast(t *testing.T) {
	svc, lectureRepo := newTestLectureService(t)

	lectureRepo.seed(model.Lecture{
		Date: futureDate(7), StartTime: strPtr("08:00"), Summary: "ZTBD wyklad",
	})
	lectureRepo.seed(model.Lecture{
		Date: futureDate(7), StartTime: strPtr("09:45"), Summary: "OE lab", IsCancelled: true,
	})
	lectureRepo.seed(model.Lecture{
		Date: "2020-01-01", StartTime: strPtr("08:00"), Summary: "stare zajecia",
	})

	items, total, err := svc.List(context.Background(), &dto.ListLecturesQuery{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("List 返回错误: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("期望仅 1 条未停课的未来课程，实际 total=%d len=%d", total, len(items))
	}
	if items[0].Summary != "ZTBD wyklad" {
		t.Errorf("返回的课程不符合预期: %+v", items[0])
	}
}

func TestLectureService_ICSFeed(t *testing.T) {
	svc, lectureRepo := newTestLectureService(t)

	date := futureDate(7)
	lectureRepo.seed(model.Lecture{
		Date:      date,
		StartTime: strPtr("08:00"),
		EndTime:   strPtr("09:30"),
		Summary:   "ZTBD wyklad WK",
		Subject:   strPtr("Zaawansowane Technologie Baz Danych"),
		Room:      strPtr("s. 131"),
		UpdatedAt: time.Now(),
	})
	// 无时间的记录不进入订阅源
	lectureRepo.seed(model.Lecture{
		Date: date, Summary: "Dzień rektorski", UpdatedAt: time.Now(),
	})

	feed, err := svc.ICSFeed(context.Background())
	if err != nil {
		t.Fatalf("ICSFeed 返回错误: %v", err)
	}

	if !strings.Contains(feed, "BEGIN:VCALENDAR") || !strings.Contains(feed, "END:VCALENDAR") {
		t.Errorf("订阅源应为合法 iCalendar 文档")
	}
	if got := strings.Count(feed, "BEGIN:VEVENT"); got != 1 {
		t.Errorf("期望 1 个事件，实际=%d", got)
	}
	if !strings.Contains(feed, "Zaawansowane Technologie Baz Danych") {
		t.Errorf("事件标题应使用补全后的科目")
	}
	// UID 与日历事件 ID 同源
	compactDate := strings.ReplaceAll(date, "-", "")
	if !strings.Contains(feed, "pk"+compactDate+"080000@pk-schedule-sync") {
		t.Errorf("UID 不符合预期，feed=\n%s", feed)
	}
}

func TestLectureService_ICSFeed_EmptyCatalog(t *testing.T) {
	svc, _ := newTestLectureService(t)

	feed, err := svc.ICSFeed(context.Background())
	if err != nil {
		t.Fatalf("ICSFeed 返回错误: %v", err)
	}
	if !strings.Contains(feed, "BEGIN:VCALENDAR") {
		t.Errorf("空目录也应产出合法文档")
	}
	if strings.Contains(feed, "BEGIN:VEVENT") {
		t.Errorf("空目录不应包含事件")
	}
}
