package service

import (
	"testing"
	"time"
)

// 构造测试网格：只填到 T(19) 列，前 16 列留空
func gridRow(date, start, end, group string) []string {
	row := make([]string, 20)
	row[colDate] = date
	row[colStart] = start
	row[colEnd] = end
	row[colGroup] = group
	return row
}

func testToday() time.Time {
	return time.Date(2026, 9, 1, 15, 30, 0, 0, time.Local)
}

func TestExtractScheduleEvents_BasicRow(t *testing.T) {
	rows := [][]string{
		gridRow("sobota 5/9/26", "8:00-9:30", "", "ZTBD   wyklad  WK"),
	}

	events := ExtractScheduleEvents(rows, testToday())
	if len(events) != 1 {
		t.Fatalf("期望 1 条事件，实际=%d", len(events))
	}

	ev := events[0]
	if ev.Date != "2026-09-05" {
		t.Errorf("期望日期 2026-09-05，实际=%s", ev.Date)
	}
	if ev.StartTime == nil || *ev.StartTime != "08:00" {
		t.Errorf("期望开始时间 08:00，实际=%v", ev.StartTime)
	}
	if ev.EndTime == nil || *ev.EndTime != "09:30" {
		t.Errorf("期望结束时间 09:30，实际=%v", ev.EndTime)
	}
	// 内部空白折叠为单空格
	if ev.Summary != "ZTBD wyklad WK" {
		t.Errorf("期望摘要空白折叠，实际=%q", ev.Summary)
	}
}

func TestExtractScheduleEvents_SkipsPlaceholders(t *testing.T) {
	rows := [][]string{
		gridRow("sobota 5/9/26", "8:00-9:30", "", ""),
		gridRow("sobota 5/9/26", "8:00-9:30", "", "nan"),
		gridRow("sobota 5/9/26", "8:00-9:30", "", "DS1"),
		gridRow("sobota 5/9/26", "8:00-9:30", "", "Przedmiot"),
		gridRow("sobota 5/9/26", "8:00-9:30", "", "   "),
	}

	events := ExtractScheduleEvents(rows, testToday())
	if len(events) != 0 {
		t.Errorf("占位内容行应全部跳过，实际抽出=%d", len(events))
	}
}

func TestExtractScheduleEvents_DropsPastRows(t *testing.T) {
	rows := [][]string{
		gridRow("sobota 29/8/26", "8:00-9:30", "", "ZTBD wyklad"), // 昨天之前
		gridRow("wtorek 1/9/26", "8:00-9:30", "", "OE lab"),       // 正好今天
		gridRow("sobota 5/9/26", "8:00-9:30", "", "TUM wyklad"),   // 未来
	}

	events := ExtractScheduleEvents(rows, testToday())
	if len(events) != 2 {
		t.Fatalf("期望保留今天及以后 2 条，实际=%d", len(events))
	}
	if events[0].Summary != "OE lab" || events[1].Summary != "TUM wyklad" {
		t.Errorf("保留的事件不符合预期: %+v", events)
	}
}

func TestExtractScheduleEvents_ForwardFillsMergedCells(t *testing.T) {
	// 合并单元格：第二、三行日期与时间为空，应继承上一个非空值
	rows := [][]string{
		gridRow("sobota 5/9/26", "8:00-9:30", "", "ZTBD wyklad"),
		gridRow("", "", "", "OE lab"),
		gridRow("", "9:45-11:15", "", "TUM proj"),
	}

	events := ExtractScheduleEvents(rows, testToday())
	if len(events) != 3 {
		t.Fatalf("期望 3 条事件，实际=%d", len(events))
	}
	if events[1].Date != "2026-09-05" {
		t.Errorf("第二行日期应前向填充，实际=%s", events[1].Date)
	}
	if events[1].StartTime == nil || *events[1].StartTime != "08:00" {
		t.Errorf("第二行开始时间应前向填充，实际=%v", events[1].StartTime)
	}
	if events[2].StartTime == nil || *events[2].StartTime != "09:45" {
		t.Errorf("第三行开始时间应取自身值，实际=%v", events[2].StartTime)
	}
}

func TestExtractScheduleEvents_ShortRowsPadded(t *testing.T) {
	// excelize 会裁剪行尾空单元格，短行不应越界
	short := []string{"a", "b"}
	rows := [][]string{
		gridRow("sobota 5/9/26", "8:00-9:30", "", "ZTBD wyklad"),
		short,
	}

	events := ExtractScheduleEvents(rows, testToday())
	if len(events) != 1 {
		t.Errorf("短行应安全跳过，期望 1 条，实际=%d", len(events))
	}
}

func TestExtractScheduleEvents_UnparsableTimeKeepsRow(t *testing.T) {
	rows := [][]string{
		gridRow("sobota 5/9/26", "caly dzien", "", "Dzień rektorski"),
	}

	events := ExtractScheduleEvents(rows, testToday())
	if len(events) != 1 {
		t.Fatalf("时间解析失败的行应保留，实际=%d", len(events))
	}
	if events[0].StartTime != nil || events[0].EndTime != nil {
		t.Errorf("解析失败应得到 NULL 时间，实际 start=%v end=%v",
			events[0].StartTime, events[0].EndTime)
	}
}

func TestExtractScheduleEvents_UnparsableDateDropsRow(t *testing.T) {
	rows := [][]string{
		gridRow("termin do ustalenia", "8:00-9:30", "", "ZTBD wyklad"),
		gridRow("nan", "8:00-9:30", "", "OE lab"),
	}

	events := ExtractScheduleEvents(rows, testToday())
	if len(events) != 0 {
		t.Errorf("日期不可解析的行应丢弃，实际抽出=%d", len(events))
	}
}

func TestParseDateCell_Layouts(t *testing.T) {
	cases := []struct {
		cell string
		want string
	}{
		{"sobota 5/9/26", "2026-09-05"},
		{"5/9/26", "2026-09-05"},
		{"05/09/26", "2026-09-05"},
		{"5/9/2026", "2026-09-05"},
		{"niedziela 06-09-26", "2026-09-06"},
		{"2026-09-05", "2026-09-05"},
	}
	for _, tc := range cases {
		got, ok := parseDateCell(tc.cell)
		if !ok {
			t.Errorf("单元格 %q 应可解析", tc.cell)
			continue
		}
		if got.Format("2006-01-02") != tc.want {
			t.Errorf("单元格 %q 期望 %s，实际=%s", tc.cell, tc.want, got.Format("2006-01-02"))
		}
	}
}

func TestParseTimeCell(t *testing.T) {
	cases := []struct {
		cell       string
		start, end string
		ok         bool
	}{
		{"8:00-9:30", "08:00", "09:30", true},
		{"9:5-10:35", "09:05", "10:35", true},
		{" 11:30 - 13:00 ", "11:30", "13:00", true},
		{"8:00", "", "", false},     // 没有范围分隔符
		{"", "", "", false},         // 空
		{"nan", "", "", false},      // 占位
		{"od rana-", "", "", false}, // 右侧为空
	}
	for _, tc := range cases {
		start, end := parseTimeCell(tc.cell)
		if tc.ok {
			if start == nil || end == nil {
				t.Errorf("单元格 %q 应可解析，实际 start=%v end=%v", tc.cell, start, end)
				continue
			}
			if *start != tc.start || *end != tc.end {
				t.Errorf("单元格 %q 期望 %s-%s，实际=%s-%s",
					tc.cell, tc.start, tc.end, *start, *end)
			}
		} else if start != nil || end != nil {
			t.Errorf("单元格 %q 不应解析成功，实际 start=%v end=%v", tc.cell, start, end)
		}
	}
}
