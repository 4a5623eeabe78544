package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Cohort interface {
	List(ctx context.Context, projectID uuid.UUID) (model.CohortList, error)
	Get(ctx context.Context, projectID uuid.UUID, key string) (*model.Cohort, error)
	Create(ctx context.Context, cohort model.Cohort) (*model.Cohort, error)
	Update(ctx context.Context, cohort model.Cohort) (*model.Cohort, error)
	// DeleteAuto removes the automatic cohorts of the project not listed in keep.
	DeleteAuto(ctx context.Context, projectID uuid.UUID, keep []string) error
	Delete(ctx context.Context, projectID uuid.UUID, key string) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

type CohortStore struct {
	db *gorm.DB
}

var _ Cohort = (*CohortStore)(nil)

func NewCohortStore(db *gorm.DB) Cohort {
	return &CohortStore{db: db}
}

func (c *CohortStore) List(ctx context.Context, projectID uuid.UUID) (model.CohortList, error) {
	var cohorts model.CohortList
	if err := c.getDB(ctx).Where("project_id = ?", projectID).Order("position").Order("key").Find(&cohorts).Error; err != nil {
		return nil, err
	}
	return cohorts, nil
}

func (c *CohortStore) Get(ctx context.Context, projectID uuid.UUID, key string) (*model.Cohort, error) {
	var cohort model.Cohort
	if err := c.getDB(ctx).First(&cohort, "project_id = ? AND key = ?", projectID, key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &cohort, nil
}

func (c *CohortStore) Create(ctx context.Context, cohort model.Cohort) (*model.Cohort, error) {
	if cohort.ID == uuid.Nil {
		cohort.ID = uuid.New()
	}
	if err := c.getDB(ctx).Create(&cohort).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return &cohort, nil
}

func (c *CohortStore) Update(ctx context.Context, cohort model.Cohort) (*model.Cohort, error) {
	result := c.getDB(ctx).Model(&cohort).
		Select("name", "position", "concurrency_ceiling", "cpu_overcommit", "ram_overcommit", "auto").
		Updates(&cohort)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return c.Get(ctx, cohort.ProjectID, cohort.Key)
}

func (c *CohortStore) DeleteAuto(ctx context.Context, projectID uuid.UUID, keep []string) error {
	tx := c.getDB(ctx).Where("project_id = ? AND auto = ?", projectID, true)
	if len(keep) > 0 {
		tx = tx.Where("key NOT IN ?", keep)
	}
	return tx.Delete(&model.Cohort{}).Error
}

func (c *CohortStore) Delete(ctx context.Context, projectID uuid.UUID, key string) error {
	result := c.getDB(ctx).Where("project_id = ? AND key = ?", projectID, key).Delete(&model.Cohort{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (c *CohortStore) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	return c.getDB(ctx).Where("project_id = ?", projectID).Delete(&model.Cohort{}).Error
}

func (c *CohortStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return c.db
}

type Wave interface {
	// List returns the waves ordered by sequence, with their member VMs in wave order.
	List(ctx context.Context, filter *WaveQueryFilter) (model.WaveList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Wave, error)
	Create(ctx context.Context, waves []model.Wave) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, filter *WaveQueryFilter) error
}

type WaveStore struct {
	db *gorm.DB
}

var _ Wave = (*WaveStore)(nil)

func NewWaveStore(db *gorm.DB) Wave {
	return &WaveStore{db: db}
}

func preloadMembers(db *gorm.DB) *gorm.DB {
	return db.Preload("VMs", func(db *gorm.DB) *gorm.DB {
		return db.Order("wave_order")
	})
}

func (w *WaveStore) List(ctx context.Context, filter *WaveQueryFilter) (model.WaveList, error) {
	var waves model.WaveList
	tx := preloadMembers(w.getDB(ctx).Model(&waves)).Order("sequence")

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Find(&waves).Error; err != nil {
		return nil, err
	}
	return waves, nil
}

func (w *WaveStore) Get(ctx context.Context, id uuid.UUID) (*model.Wave, error) {
	var wave model.Wave
	if err := preloadMembers(w.getDB(ctx)).First(&wave, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &wave, nil
}

func (w *WaveStore) Create(ctx context.Context, waves []model.Wave) error {
	if len(waves) == 0 {
		return nil
	}
	return w.getDB(ctx).Omit(clause.Associations).Create(&waves).Error
}

func (w *WaveStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := w.getDB(ctx).Model(&model.Wave{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (w *WaveStore) Delete(ctx context.Context, filter *WaveQueryFilter) error {
	tx := w.getDB(ctx).Model(&model.Wave{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	return tx.Delete(&model.Wave{}).Error
}

func (w *WaveStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return w.db
}
