package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kklimas/pk-schedule-sync/internal/model"
)

// JobRepository 同步任务数据访问接口
type JobRepository interface {
	Create(ctx context.Context, job *model.SyncJob) error
	GetByID(ctx context.Context, id string) (*model.SyncJob, error)
	List(ctx context.Context, offset, limit int) ([]model.SyncJob, int64, error)
	UpdateSheetURL(ctx context.Context, id, sheetURL string) error
	MarkCompleted(ctx context.Context, id, message string) error
	MarkFailed(ctx context.Context, id, message string) error
	// GetLastCompleted 返回最近一次已完成的任务（按完成时间倒序），
	// excludeID 用于排除当前任务自身；无记录时返回 gorm.ErrRecordNotFound
	GetLastCompleted(ctx context.Context, excludeID string) (*model.SyncJob, error)
}

type jobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) Create(ctx context.Context, job *model.SyncJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepo) GetByID(ctx context.Context, id string) (*model.SyncJob, error) {
	var job model.SyncJob
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) List(ctx context.Context, offset, limit int) ([]model.SyncJob, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.SyncJob{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []model.SyncJob
	err := r.db.WithContext(ctx).
		Order("completed_at DESC NULLS LAST").
		Offset(offset).
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (r *jobRepo) UpdateSheetURL(ctx context.Context, id, sheetURL string) error {
	return r.db.WithContext(ctx).
		Model(&model.SyncJob{}).
		Where("id = ?", id).
		Update("sheet_url", sheetURL).Error
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id, message string) error {
	return r.markTerminal(ctx, id, model.JobStatusCompleted, message)
}

func (r *jobRepo) MarkFailed(ctx context.Context, id, message string) error {
	return r.markTerminal(ctx, id, model.JobStatusFailed, message)
}

// markTerminal 终态迁移：仅允许从 running 迁出，保证终态不可重写
func (r *jobRepo) markTerminal(ctx context.Context, id, status, message string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.SyncJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": now,
			"message":      message,
		}).Error
}

func (r *jobRepo) GetLastCompleted(ctx context.Context, excludeID string) (*model.SyncJob, error) {
	var job model.SyncJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND id != ?", model.JobStatusCompleted, excludeID).
		Order("completed_at DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}
