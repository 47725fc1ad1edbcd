package service

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"go.uber.org/zap"

	"github.com/kklimas/pk-schedule-sync/config"
	"github.com/kklimas/pk-schedule-sync/internal/model"
)

// ── 通知 ──────────────────────────────────────────────────
//
// 职责：把任务状态与课表变更摘要推送到配置的 shoutrrr URL
// （slack/discord/telegram 等）。纯观察者，对核心管线无反馈；
// 发送失败只记日志。
// ─────────────────────────────────────────────────────────────

// NotifyService 通知业务接口
type NotifyService interface {
	JobStarted(jobID, triggeredBy string)
	JobCompleted(jobID, message string)
	JobFailed(jobID, errMessage string)
	// ScheduleChanged 推送分类后的变更摘要
	ScheduleChanged(added, updated, cancelled []model.LectureChange, sheetURL string)
}

type notifyService struct {
	sender *router.ServiceRouter // nil 表示禁用
	logger *zap.Logger
}

// NewNotifyService 创建 NotifyService 实例
// URL 列表为空或创建 sender 失败时返回禁用实例
func NewNotifyService(cfg *config.NotifyConfig, logger *zap.Logger) NotifyService {
	s := &notifyService{logger: logger}

	if len(cfg.URLs) == 0 {
		logger.Warn("notify.urls 未配置，通知已禁用")
		return s
	}

	sender, err := shoutrrr.CreateSender(cfg.URLs...)
	if err != nil {
		logger.Error("创建通知 sender 失败，通知已禁用", zap.Error(err))
		return s
	}
	if cfg.Timeout > 0 {
		sender.Timeout = cfg.Timeout
	}
	// shoutrrr 自带的标准库日志输出静音，统一走 zap
	sender.SetLogger(log.New(io.Discard, "", 0))

	s.sender = sender
	return s
}

func (s *notifyService) JobStarted(jobID, triggeredBy string) {
	s.send(fmt.Sprintf("🔄 Sync Job Started\nJob ID: %s\nTriggered by: %s", jobID, triggeredBy))
}

func (s *notifyService) JobCompleted(jobID, message string) {
	s.send(fmt.Sprintf("✅ Sync Job Completed\nJob ID: %s\n%s", jobID, message))
}

func (s *notifyService) JobFailed(jobID, errMessage string) {
	s.send(fmt.Sprintf("❌ Sync Job Failed\nJob ID: %s\nError: %s", jobID, errMessage))
}

func (s *notifyService) ScheduleChanged(added, updated, cancelled []model.LectureChange, sheetURL string) {
	var b strings.Builder
	b.WriteString("📅 Schedule Changes Detected\n")

	writeSection := func(title string, changes []model.LectureChange) {
		if len(changes) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s (%d):\n", title, len(changes))
		for i := range changes {
			b.WriteString("• " + formatChange(&changes[i]) + "\n")
		}
	}
	writeSection("➕ Added", added)
	writeSection("✏️ Updated", updated)
	writeSection("🚫 Cancelled", cancelled)

	if sheetURL != "" {
		b.WriteString("\nSource: " + sheetURL)
	}

	s.send(b.String())
}

// formatChange 单条变更的一行摘要
func formatChange(l *model.LectureChange) string {
	title := l.Summary
	if l.Subject != nil {
		title = *l.Subject
	}

	slot := l.Date
	if l.StartTime != nil {
		slot += " " + *l.StartTime
		if l.EndTime != nil {
			slot += "-" + *l.EndTime
		}
	}

	var extras []string
	if l.Room != nil {
		extras = append(extras, "s. "+*l.Room)
	}
	if l.Teacher != nil {
		extras = append(extras, *l.Teacher)
	}

	line := slot + " — " + title
	if len(extras) > 0 {
		line += " (" + strings.Join(extras, ", ") + ")"
	}
	return line
}

func (s *notifyService) send(message string) {
	if s.sender == nil {
		return
	}
	for _, err := range s.sender.Send(message, nil) {
		if err != nil {
			s.logger.Error("发送通知失败", zap.Error(err))
		}
	}
}
