package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/kklimas/pk-schedule-sync/internal/model"
	"github.com/kklimas/pk-schedule-sync/internal/repository"
)

// ── 内存版 Mock 仓储，供 service 层单元测试使用 ──

type mockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.SyncJob
	// 按调用顺序记录的终态消息，便于断言
	terminalMessages []string
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[string]*model.SyncJob)}
}

func (m *mockJobRepo) Create(_ context.Context, job *model.SyncJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *mockJobRepo) GetByID(_ context.Context, id string) (*model.SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *mockJobRepo) List(_ context.Context, offset, limit int) ([]model.SyncJob, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]model.SyncJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		all = append(all, *job)
	}
	sort.Slice(all, func(i, j int) bool {
		ci, cj := all[i].CompletedAt, all[j].CompletedAt
		if ci == nil {
			return false
		}
		if cj == nil {
			return true
		}
		return ci.After(*cj)
	})
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockJobRepo) UpdateSheetURL(_ context.Context, id, sheetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.SheetURL = sheetURL
	}
	return nil
}

func (m *mockJobRepo) MarkCompleted(ctx context.Context, id, message string) error {
	return m.markTerminal(id, model.JobStatusCompleted, message)
}

func (m *mockJobRepo) MarkFailed(ctx context.Context, id, message string) error {
	return m.markTerminal(id, model.JobStatusFailed, message)
}

func (m *mockJobRepo) markTerminal(id, status, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != model.JobStatusRunning {
		return nil
	}
	now := time.Now()
	job.Status = status
	job.Message = message
	job.CompletedAt = &now
	m.terminalMessages = append(m.terminalMessages, message)
	return nil
}

func (m *mockJobRepo) GetLastCompleted(_ context.Context, excludeID string) (*model.SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *model.SyncJob
	for _, job := range m.jobs {
		if job.ID == excludeID || job.Status != model.JobStatusCompleted {
			continue
		}
		if last == nil || (job.CompletedAt != nil && last.CompletedAt != nil && job.CompletedAt.After(*last.CompletedAt)) {
			last = job
		}
	}
	if last == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *last
	return &cp, nil
}

type mockLectureRepo struct {
	mu       sync.Mutex
	nextID   uint
	lectures map[uint]*model.Lecture

	// 注入的错误，用于验证失败路径
	applyErr  error
	enrichErr error

	applyCalls  int
	enrichCalls int
}

func newMockLectureRepo() *mockLectureRepo {
	return &mockLectureRepo{nextID: 1, lectures: make(map[uint]*model.Lecture)}
}

// seed 预置一条持久化记录并返回其 ID
func (m *mockLectureRepo) seed(l model.Lecture) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.nextID
	m.nextID++
	m.lectures[l.ID] = &l
	return l.ID
}

func (m *mockLectureRepo) get(id uint) *model.Lecture {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.lectures[id]; ok {
		cp := *l
		return &cp
	}
	return nil
}

func (m *mockLectureRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lectures)
}

func (m *mockLectureRepo) ListByDates(_ context.Context, dates []string) ([]model.Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	var out []model.Lecture
	for _, l := range m.lectures {
		if _, ok := set[l.Date]; ok {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockLectureRepo) ApplyChangeSet(_ context.Context, cs *repository.LectureChangeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++
	if m.applyErr != nil {
		return m.applyErr
	}

	for _, l := range cs.Added {
		l.ID = m.nextID
		m.nextID++
		cp := *l
		m.lectures[l.ID] = &cp
	}
	for _, l := range cs.Updated {
		stored, ok := m.lectures[l.ID]
		if !ok {
			continue
		}
		stored.Summary = l.Summary
		stored.IsCancelled = false
		stored.Subject = nil
		stored.Type = nil
		stored.Teacher = nil
		stored.Room = nil
		stored.LastJobID = &cs.JobID
	}
	for _, l := range cs.Cancelled {
		if stored, ok := m.lectures[l.ID]; ok {
			stored.IsCancelled = true
			stored.LastJobID = &cs.JobID
		}
	}
	for _, id := range cs.TouchedIDs {
		if stored, ok := m.lectures[id]; ok {
			stored.LastJobID = &cs.JobID
		}
	}
	return nil
}

func (m *mockLectureRepo) UpdateEnrichment(_ context.Context, lectures []*model.Lecture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrichCalls++
	if m.enrichErr != nil {
		return m.enrichErr
	}
	for _, l := range lectures {
		if stored, ok := m.lectures[l.ID]; ok {
			stored.Subject = l.Subject
			stored.Type = l.Type
			stored.Teacher = l.Teacher
			stored.Room = l.Room
		}
	}
	return nil
}

func (m *mockLectureRepo) ListUpcoming(_ context.Context, fromDate string, offset, limit int) ([]model.Lecture, int64, error) {
	all, err := m.ListUpcomingAll(context.Background(), fromDate)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockLectureRepo) ListUpcomingAll(_ context.Context, fromDate string) ([]model.Lecture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Lecture
	for _, l := range m.lectures {
		if l.Date >= fromDate && !l.IsCancelled {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		si, sj := out[i].StartTime, out[j].StartTime
		if si == nil {
			return false
		}
		if sj == nil {
			return true
		}
		return *si < *sj
	})
	return out, nil
}

func newMockRepository() (*repository.Repository, *mockJobRepo, *mockLectureRepo) {
	jobRepo := newMockJobRepo()
	lectureRepo := newMockLectureRepo()
	return &repository.Repository{Job: jobRepo, Lecture: lectureRepo}, jobRepo, lectureRepo
}

func strPtr(s string) *string { return &s }
