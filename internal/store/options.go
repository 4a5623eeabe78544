package store

import (
	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"gorm.io/gorm"
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type SortOrder int

const (
	Unsorted SortOrder = iota
	SortByKey
	SortByName
	SortByCreatedTime
)

type ProjectQueryFilter BaseQuerier

func NewProjectQueryFilter() *ProjectQueryFilter {
	return &ProjectQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *ProjectQueryFilter) ByOwner(owner string) *ProjectQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("owner = ?", owner)
	})
	return f
}

func (f *ProjectQueryFilter) ByStatus(status ...string) *ProjectQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status IN ?", status)
	})
	return f
}

func (f *ProjectQueryFilter) WithoutArchived() *ProjectQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status != ?", model.ProjectStatusArchived)
	})
	return f
}

type VMQueryFilter BaseQuerier

func NewVMQueryFilter() *VMQueryFilter {
	return &VMQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *VMQueryFilter) ByProject(id uuid.UUID) *VMQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("project_id = ?", id)
	})
	return f
}

func (f *VMQueryFilter) ByKeys(keys ...string) *VMQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("key IN ?", keys)
	})
	return f
}

func (f *VMQueryFilter) ByTenant(key string) *VMQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("tenant_key = ?", key)
	})
	return f
}

func (f *VMQueryFilter) ByCohort(key string) *VMQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("cohort_key = ?", key)
	})
	return f
}

func (f *VMQueryFilter) ByCategory(category string) *VMQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("risk_category = ?", category)
	})
	return f
}

func (f *VMQueryFilter) ByWave(id uuid.UUID) *VMQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("wave_id = ?", id)
	})
	return f
}

// Included drops the VMs the operator excluded from migration.
func (f *VMQueryFilter) Included() *VMQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("exclude_from_migration = ?", false)
	})
	return f
}

type VMQueryOptions BaseQuerier

func NewVMQueryOptions() *VMQueryOptions {
	return &VMQueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (o *VMQueryOptions) WithSortOrder(sort SortOrder) *VMQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		switch sort {
		case SortByKey:
			return tx.Order("key")
		case SortByName:
			return tx.Order("name").Order("key")
		case SortByCreatedTime:
			return tx.Order("created_at")
		default:
			return tx
		}
	})
	return o
}

func (o *VMQueryOptions) WithLimit(limit int) *VMQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	})
	return o
}

func (o *VMQueryOptions) WithOffset(offset int) *VMQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Offset(offset)
	})
	return o
}

type WaveQueryFilter BaseQuerier

func NewWaveQueryFilter() *WaveQueryFilter {
	return &WaveQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *WaveQueryFilter) ByProject(id uuid.UUID) *WaveQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("project_id = ?", id)
	})
	return f
}

func (f *WaveQueryFilter) ByCohort(key string) *WaveQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("cohort_key = ?", key)
	})
	return f
}

func (f *WaveQueryFilter) ByStatus(status ...string) *WaveQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status IN ?", status)
	})
	return f
}

func (f *WaveQueryFilter) NotFrozen() *WaveQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status NOT IN ?", model.FrozenWaveStatuses)
	})
	return f
}

type GapQueryFilter BaseQuerier

func NewGapQueryFilter() *GapQueryFilter {
	return &GapQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *GapQueryFilter) ByProject(id uuid.UUID) *GapQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("project_id = ?", id)
	})
	return f
}

func (f *GapQueryFilter) ByScopes(scopes ...string) *GapQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("scope IN ?", scopes)
	})
	return f
}

func (f *GapQueryFilter) ByStatus(status string) *GapQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ?", status)
	})
	return f
}

func (f *GapQueryFilter) BySeverity(severity string) *GapQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("severity = ?", severity)
	})
	return f
}

type PassQueryFilter BaseQuerier

func NewPassQueryFilter() *PassQueryFilter {
	return &PassQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *PassQueryFilter) ByProject(id uuid.UUID) *PassQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("project_id = ?", id)
	})
	return f
}

func (f *PassQueryFilter) ByKind(kind string) *PassQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("kind = ?", kind)
	})
	return f
}

func (f *PassQueryFilter) ByStatus(status string) *PassQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ?", status)
	})
	return f
}
