package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"gorm.io/gorm"
)

type Pass interface {
	List(ctx context.Context, filter *PassQueryFilter) (model.PassList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Pass, error)
	Create(ctx context.Context, pass model.Pass) (*model.Pass, error)
	Update(ctx context.Context, pass model.Pass) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

type PassStore struct {
	db *gorm.DB
}

var _ Pass = (*PassStore)(nil)

func NewPassStore(db *gorm.DB) Pass {
	return &PassStore{db: db}
}

func (p *PassStore) List(ctx context.Context, filter *PassQueryFilter) (model.PassList, error) {
	var passes model.PassList
	tx := p.getDB(ctx).Model(&passes).Order("started_at DESC")

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Find(&passes).Error; err != nil {
		return nil, err
	}
	return passes, nil
}

func (p *PassStore) Get(ctx context.Context, id uuid.UUID) (*model.Pass, error) {
	var pass model.Pass
	if err := p.getDB(ctx).First(&pass, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &pass, nil
}

func (p *PassStore) Create(ctx context.Context, pass model.Pass) (*model.Pass, error) {
	if err := p.getDB(ctx).Create(&pass).Error; err != nil {
		return nil, err
	}
	return &pass, nil
}

func (p *PassStore) Update(ctx context.Context, pass model.Pass) error {
	result := p.getDB(ctx).Model(&pass).
		Select("status", "vms_affected", "cohorts_affected", "failures", "error", "finished_at").
		Updates(&pass)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *PassStore) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	return p.getDB(ctx).Where("project_id = ?", projectID).Delete(&model.Pass{}).Error
}

func (p *PassStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return p.db
}
