package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"gorm.io/gorm"
)

type Dependency interface {
	List(ctx context.Context, projectID uuid.UUID) (model.VMDependencyList, error)
	Create(ctx context.Context, dep model.VMDependency) error
	Delete(ctx context.Context, projectID uuid.UUID, vmKey, dependsOnKey string) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

type DependencyStore struct {
	db *gorm.DB
}

var _ Dependency = (*DependencyStore)(nil)

func NewDependencyStore(db *gorm.DB) Dependency {
	return &DependencyStore{db: db}
}

func (d *DependencyStore) List(ctx context.Context, projectID uuid.UUID) (model.VMDependencyList, error) {
	var deps model.VMDependencyList
	if err := d.getDB(ctx).Where("project_id = ?", projectID).
		Order("vm_key").Order("depends_on_key").
		Find(&deps).Error; err != nil {
		return nil, err
	}
	return deps, nil
}

func (d *DependencyStore) Create(ctx context.Context, dep model.VMDependency) error {
	if err := d.getDB(ctx).Create(&dep).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (d *DependencyStore) Delete(ctx context.Context, projectID uuid.UUID, vmKey, dependsOnKey string) error {
	result := d.getDB(ctx).
		Where("project_id = ? AND vm_key = ? AND depends_on_key = ?", projectID, vmKey, dependsOnKey).
		Delete(&model.VMDependency{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (d *DependencyStore) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	return d.getDB(ctx).Where("project_id = ?", projectID).Delete(&model.VMDependency{}).Error
}

func (d *DependencyStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return d.db
}
