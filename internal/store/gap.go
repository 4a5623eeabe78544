package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Gap interface {
	List(ctx context.Context, filter *GapQueryFilter) (model.TargetGapList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.TargetGap, error)
	// Upsert writes gaps keyed by (project, scope, type, resource).
	Upsert(ctx context.Context, gaps []model.TargetGap) error
	Update(ctx context.Context, gap model.TargetGap) (*model.TargetGap, error)
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

type GapStore struct {
	db *gorm.DB
}

var _ Gap = (*GapStore)(nil)

func NewGapStore(db *gorm.DB) Gap {
	return &GapStore{db: db}
}

func (g *GapStore) List(ctx context.Context, filter *GapQueryFilter) (model.TargetGapList, error) {
	var gaps model.TargetGapList
	tx := g.getDB(ctx).Model(&gaps).Order("scope").Order("type").Order("resource")

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Find(&gaps).Error; err != nil {
		return nil, err
	}
	return gaps, nil
}

func (g *GapStore) Get(ctx context.Context, id uuid.UUID) (*model.TargetGap, error) {
	var gap model.TargetGap
	if err := g.getDB(ctx).First(&gap, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &gap, nil
}

func (g *GapStore) Upsert(ctx context.Context, gaps []model.TargetGap) error {
	if len(gaps) == 0 {
		return nil
	}
	for i := range gaps {
		if gaps[i].ID == uuid.Nil {
			gaps[i].ID = uuid.New()
		}
	}
	return g.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "project_id"}, {Name: "scope"}, {Name: "type"}, {Name: "resource"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"severity", "message", "status", "auto_resolved", "updated_at",
		}),
	}).Create(&gaps).Error
}

func (g *GapStore) Update(ctx context.Context, gap model.TargetGap) (*model.TargetGap, error) {
	result := g.getDB(ctx).Model(&gap).
		Select("status", "auto_resolved", "resolved_by", "note", "updated_at").
		Updates(&gap)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return g.Get(ctx, gap.ID)
}

func (g *GapStore) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	return g.getDB(ctx).Where("project_id = ?", projectID).Delete(&model.TargetGap{}).Error
}

func (g *GapStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return g.db
}

type Destination interface {
	Create(ctx context.Context, snapshot model.DestinationSnapshot) (*model.DestinationSnapshot, error)
	// Latest returns the most recent destination snapshot of the project.
	Latest(ctx context.Context, projectID uuid.UUID) (*model.DestinationSnapshot, error)
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

type DestinationStore struct {
	db *gorm.DB
}

var _ Destination = (*DestinationStore)(nil)

func NewDestinationStore(db *gorm.DB) Destination {
	return &DestinationStore{db: db}
}

func (d *DestinationStore) Create(ctx context.Context, snapshot model.DestinationSnapshot) (*model.DestinationSnapshot, error) {
	if err := d.getDB(ctx).Create(&snapshot).Error; err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (d *DestinationStore) Latest(ctx context.Context, projectID uuid.UUID) (*model.DestinationSnapshot, error) {
	var snapshot model.DestinationSnapshot
	if err := d.getDB(ctx).Where("project_id = ?", projectID).Order("id DESC").First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &snapshot, nil
}

func (d *DestinationStore) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	return d.getDB(ctx).Where("project_id = ?", projectID).Delete(&model.DestinationSnapshot{}).Error
}

func (d *DestinationStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return d.db
}
