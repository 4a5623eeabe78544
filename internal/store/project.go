package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Project interface {
	List(ctx context.Context, filter *ProjectQueryFilter) (model.ProjectList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Project, error)
	Create(ctx context.Context, project model.Project) (*model.Project, error)
	Update(ctx context.Context, project model.Project) (*model.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProjectStore struct {
	db *gorm.DB
}

// Make sure we conform to Project interface
var _ Project = (*ProjectStore)(nil)

func NewProjectStore(db *gorm.DB) Project {
	return &ProjectStore{db: db}
}

func (p *ProjectStore) List(ctx context.Context, filter *ProjectQueryFilter) (model.ProjectList, error) {
	var projects model.ProjectList
	tx := p.getDB(ctx).Model(&projects).Order("created_at DESC")

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (p *ProjectStore) Get(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := p.getDB(ctx).First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (p *ProjectStore) Create(ctx context.Context, project model.Project) (*model.Project, error) {
	if err := p.getDB(ctx).Clauses(clause.Returning{}).Create(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return &project, nil
}

func (p *ProjectStore) Update(ctx context.Context, project model.Project) (*model.Project, error) {
	result := p.getDB(ctx).Model(&project).
		Select("name", "status", "active_risk_config_id", "settings", "summary", "updated_at").
		Updates(&project)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return p.Get(ctx, project.ID)
}

func (p *ProjectStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := p.getDB(ctx).Unscoped().Delete(&model.Project{}, "id = ?", id.String())
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	return nil
}

func (p *ProjectStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return p.db
}

type RiskConfig interface {
	List(ctx context.Context, projectID uuid.UUID) (model.RiskConfigList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.RiskConfig, error)
	// Create stores cfg as the next version of the project's risk configuration.
	Create(ctx context.Context, cfg model.RiskConfig) (*model.RiskConfig, error)
	Lock(ctx context.Context, id uuid.UUID) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

type RiskConfigStore struct {
	db *gorm.DB
}

var _ RiskConfig = (*RiskConfigStore)(nil)

func NewRiskConfigStore(db *gorm.DB) RiskConfig {
	return &RiskConfigStore{db: db}
}

func (r *RiskConfigStore) List(ctx context.Context, projectID uuid.UUID) (model.RiskConfigList, error) {
	var cfgs model.RiskConfigList
	if err := r.getDB(ctx).Where("project_id = ?", projectID).Order("version").Find(&cfgs).Error; err != nil {
		return nil, err
	}
	return cfgs, nil
}

func (r *RiskConfigStore) Get(ctx context.Context, id uuid.UUID) (*model.RiskConfig, error) {
	var cfg model.RiskConfig
	if err := r.getDB(ctx).First(&cfg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *RiskConfigStore) Create(ctx context.Context, cfg model.RiskConfig) (*model.RiskConfig, error) {
	var last struct{ Version int }
	if err := r.getDB(ctx).Model(&model.RiskConfig{}).
		Select("COALESCE(MAX(version), 0) AS version").
		Where("project_id = ?", cfg.ProjectID).
		Scan(&last).Error; err != nil {
		return nil, err
	}
	cfg.Version = last.Version + 1
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}

	if err := r.getDB(ctx).Create(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *RiskConfigStore) Lock(ctx context.Context, id uuid.UUID) error {
	return r.getDB(ctx).Model(&model.RiskConfig{}).Where("id = ?", id).Update("locked", true).Error
}

func (r *RiskConfigStore) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	return r.getDB(ctx).Where("project_id = ?", projectID).Delete(&model.RiskConfig{}).Error
}

func (r *RiskConfigStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return r.db
}
