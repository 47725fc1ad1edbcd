package dto

// ── 课程模块 DTO ──

// LectureJobInfo 课程关联的最近一次同步任务信息
type LectureJobInfo struct {
	JobID  string  `json:"job_id"`
	Status string  `json:"status"`
	Date   *string `json:"date,omitempty"` // 任务完成时间
}

// LectureResponse 课程信息响应
type LectureResponse struct {
	ID        uint            `json:"id"`
	Date      string          `json:"date"`
	StartTime *string         `json:"start_time,omitempty"`
	EndTime   *string         `json:"end_time,omitempty"`
	Summary   string          `json:"summary"`
	Subject   *string         `json:"subject,omitempty"`
	Type      *string         `json:"type,omitempty"`
	Teacher   *string         `json:"teacher,omitempty"`
	Room      *string         `json:"room,omitempty"`
	LastJob   *LectureJobInfo `json:"last_job,omitempty"`
}

// ListLecturesQuery 课程列表查询参数
type ListLecturesQuery struct {
	Page     int `form:"page,default=1"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size,default=10" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (q *ListLecturesQuery) GetPage() int {
	if q.Page <= 0 {
		return 1
	}
	return q.Page
}

// GetPageSize 获取每页数量（含默认值）
func (q *ListLecturesQuery) GetPageSize() int {
	if q.PageSize <= 0 {
		return 10
	}
	return q.PageSize
}
