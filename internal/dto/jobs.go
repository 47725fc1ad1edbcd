package dto

// ── 同步任务模块 DTO ──

// JobResponse 同步任务信息响应
type JobResponse struct {
	JobID       string  `json:"job_id"`
	Status      string  `json:"status"`
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
	Message     string  `json:"message,omitempty"`
	SheetURL    string  `json:"sheet_url,omitempty"`
	TriggeredBy string  `json:"triggered_by"`
}

// ListJobsQuery 任务列表查询参数
type ListJobsQuery struct {
	Page     int `form:"page,default=1"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size,default=10" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (q *ListJobsQuery) GetPage() int {
	if q.Page <= 0 {
		return 1
	}
	return q.Page
}

// GetPageSize 获取每页数量（含默认值）
func (q *ListJobsQuery) GetPageSize() int {
	if q.PageSize <= 0 {
		return 10
	}
	return q.PageSize
}
