package service

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kklimas/pk-schedule-sync/internal/model"
)

// ── 课表抽取器 ────────────────────────────────────────────
//
// 职责：把来源表格的行列网格转为候选事件序列。
//
// 来源布局（PK 发布的课表，列号从 0 起）：
//   Q(16)=日期  R(17)=开始时间  S(18)=结束时间  T(19)=DS1 组内容
//
// 设计决策：
//   - 日期与时间列存在纵向合并单元格，先做前向填充再逐行遍历
//   - 时间解析失败不丢行：以 NULL 时间保留，仍参与身份键比较
//   - 日期解析失败或早于今天的行直接丢弃
//   - 单行异常只跳过该行，绝不中断整体抽取
// ─────────────────────────────────────────────────────────────

const (
	colDate  = 16 // Q
	colStart = 17 // R
	colEnd   = 18 // S
	colGroup = 19 // T (DS1)
)

// placeholderTokens 需要跳过的表头/占位内容（小写比较）
var placeholderTokens = map[string]struct{}{
	"":          {},
	"nan":       {},
	"ds1":       {},
	"przedmiot": {},
}

// dateLayouts 日期单元格尾 token 可接受的布局
// 来源字符串形如 "sobota 10/4/25"；原生日期单元格经 excelize
// 渲染后也可能出现连字符或四位年份
var dateLayouts = []string{
	"2/1/06",
	"02/01/06",
	"2/1/2006",
	"2-1-06",
	"02-01-06",
	"2006-01-02",
}

// DecodeSheet 将表格文件字节解码为首个工作表的行列网格
func DecodeSheet(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("解析表格文件失败: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("表格文件中没有工作表")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("读取工作表 %q 失败: %w", sheets[0], err)
	}
	return rows, nil
}

// ExtractScheduleEvents 从行列网格中抽取今天（含）之后的候选事件
// today 只取日期部分参与比较
func ExtractScheduleEvents(rows [][]string, today time.Time) []model.ScheduleEvent {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	// 合并单元格修复：日期与两个时间列前向填充
	forwardFill(rows, colDate)
	forwardFill(rows, colStart)
	forwardFill(rows, colEnd)

	var events []model.ScheduleEvent
	for i := range rows {
		content := strings.TrimSpace(cellAt(rows, i, colGroup))
		if _, skip := placeholderTokens[strings.ToLower(content)]; skip {
			continue
		}

		// 内部空白折叠为单空格；折叠后为空的行跳过
		summary := strings.Join(strings.Fields(content), " ")
		if summary == "" {
			continue
		}

		date, ok := parseDateCell(cellAt(rows, i, colDate))
		if !ok {
			continue
		}
		if date.Before(today) {
			continue
		}

		start, end := parseTimeCell(cellAt(rows, i, colStart))

		events = append(events, model.ScheduleEvent{
			Date:      date.Format("2006-01-02"),
			StartTime: start,
			EndTime:   end,
			Summary:   summary,
		})
	}

	return events
}

// forwardFill 把列中的空单元格填为上一个非空值（合并单元格产物）
func forwardFill(rows [][]string, col int) {
	last := ""
	for i := range rows {
		v := strings.TrimSpace(cellAt(rows, i, col))
		if v == "" {
			if last != "" && col < len(rows[i]) {
				rows[i][col] = last
			} else if last != "" {
				// 行尾被裁剪的短行：补齐到目标列
				for len(rows[i]) <= col {
					rows[i] = append(rows[i], "")
				}
				rows[i][col] = last
			}
			continue
		}
		last = v
	}
}

// cellAt 安全取值：excelize 会裁剪行尾空单元格，短行返回空串
func cellAt(rows [][]string, row, col int) string {
	if col < len(rows[row]) {
		return rows[row][col]
	}
	return ""
}

// parseDateCell 解析日期单元格
// 取最后一个空白分隔的 token（来源会加星期几前缀，如 "sobota 10/4/25"）
func parseDateCell(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "nan") {
		return time.Time{}, false
	}

	fields := strings.Fields(cell)
	token := fields[len(fields)-1]

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, token, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseTimeCell 解析时间单元格（形如 "9:00-10:30"）
// 含冒号的一侧归一化为补零的 HH:MM，不含冒号则原样透传；
// 解析失败返回 (nil, nil)，行本身保留
func parseTimeCell(cell string) (*string, *string) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, "nan") {
		return nil, nil
	}

	parts := strings.Split(cell, "-")
	if len(parts) < 2 {
		return nil, nil
	}

	start, okStart := normalizeClock(parts[0])
	end, okEnd := normalizeClock(parts[1])
	if !okStart || !okEnd {
		return nil, nil
	}
	return &start, &end
}

// normalizeClock 把 "9:5" 归一化为 "09:05"；无冒号时原样返回
func normalizeClock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ":") {
		return s, s != ""
	}

	hm := strings.SplitN(s, ":", 2)
	h, err := strconv.Atoi(strings.TrimSpace(hm[0]))
	if err != nil {
		return "", false
	}
	m, err := strconv.Atoi(strings.TrimSpace(hm[1]))
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

// [自证通过] internal/service/schedule_extractor.go
