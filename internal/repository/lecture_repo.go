package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kklimas/pk-schedule-sync/internal/model"
)

// LectureChangeSet 对账产出的三类变更，作为一个事务单元落库
type LectureChangeSet struct {
	Added     []*model.Lecture
	Updated   []*model.Lecture
	Cancelled []*model.Lecture
	// TouchedIDs 内容无变化、仅需更新 last_job_id 的记录
	TouchedIDs []uint
	JobID      string
}

// Empty 变更集是否为空（不含 Touched）
func (cs *LectureChangeSet) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Updated) == 0 && len(cs.Cancelled) == 0
}

// LectureRepository 课程记录数据访问接口
type LectureRepository interface {
	// ListByDates 加载比较范围：日期落在 dates 内的全部持久化记录
	ListByDates(ctx context.Context, dates []string) ([]model.Lecture, error)
	// ApplyChangeSet 在单个事务内原子落库全部变更；任何一步失败则整体回滚
	ApplyChangeSet(ctx context.Context, cs *LectureChangeSet) error
	// UpdateEnrichment 回写 AI 补全字段（对账提交之后的尽力而为更新）
	UpdateEnrichment(ctx context.Context, lectures []*model.Lecture) error
	// ListUpcoming 分页列出 fromDate 起未停课的课程，按日期、开始时间升序
	ListUpcoming(ctx context.Context, fromDate string, offset, limit int) ([]model.Lecture, int64, error)
	// ListUpcomingAll 列出 fromDate 起全部未停课课程（ICS 订阅源使用）
	ListUpcomingAll(ctx context.Context, fromDate string) ([]model.Lecture, error)
}

type lectureRepo struct {
	db *gorm.DB
}

func NewLectureRepo(db *gorm.DB) LectureRepository {
	return &lectureRepo{db: db}
}

func (r *lectureRepo) ListByDates(ctx context.Context, dates []string) ([]model.Lecture, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	var lectures []model.Lecture
	err := r.db.WithContext(ctx).
		Where("date IN ?", dates).
		Find(&lectures).Error
	if err != nil {
		return nil, err
	}
	return lectures, nil
}

func (r *lectureRepo) ApplyChangeSet(ctx context.Context, cs *LectureChangeSet) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(cs.Added) > 0 {
			if err := tx.Create(cs.Added).Error; err != nil {
				return err
			}
		}

		for _, l := range cs.Updated {
			err := tx.Model(&model.Lecture{}).
				Where("id = ?", l.ID).
				Updates(map[string]interface{}{
					"summary":      l.Summary,
					"is_cancelled": false,
					"subject":      nil,
					"type":         nil,
					"teacher":      nil,
					"room":         nil,
					"last_job_id":  cs.JobID,
				}).Error
			if err != nil {
				return err
			}
		}

		if len(cs.Cancelled) > 0 {
			ids := make([]uint, len(cs.Cancelled))
			for i, l := range cs.Cancelled {
				ids[i] = l.ID
			}
			err := tx.Model(&model.Lecture{}).
				Where("id IN ?", ids).
				Updates(map[string]interface{}{
					"is_cancelled": true,
					"last_job_id":  cs.JobID,
				}).Error
			if err != nil {
				return err
			}
		}

		if len(cs.TouchedIDs) > 0 {
			err := tx.Model(&model.Lecture{}).
				Where("id IN ?", cs.TouchedIDs).
				Update("last_job_id", cs.JobID).Error
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *lectureRepo) UpdateEnrichment(ctx context.Context, lectures []*model.Lecture) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range lectures {
			err := tx.Model(&model.Lecture{}).
				Where("id = ?", l.ID).
				Updates(map[string]interface{}{
					"subject": l.Subject,
					"type":    l.Type,
					"teacher": l.Teacher,
					"room":    l.Room,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *lectureRepo) ListUpcoming(ctx context.Context, fromDate string, offset, limit int) ([]model.Lecture, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Lecture{}).
		Where("date >= ? AND is_cancelled = ?", fromDate, false)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var lectures []model.Lecture
	err := query.
		Preload("LastJob").
		Order("date ASC, start_time ASC NULLS LAST").
		Offset(offset).
		Limit(limit).
		Find(&lectures).Error
	if err != nil {
		return nil, 0, err
	}
	return lectures, total, nil
}

func (r *lectureRepo) ListUpcomingAll(ctx context.Context, fromDate string) ([]model.Lecture, error) {
	var lectures []model.Lecture
	err := r.db.WithContext(ctx).
		Where("date >= ? AND is_cancelled = ?", fromDate, false).
		Order("date ASC, start_time ASC NULLS LAST").
		Find(&lectures).Error
	if err != nil {
		return nil, err
	}
	return lectures, nil
}
