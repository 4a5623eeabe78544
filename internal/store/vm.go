package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Column sets written by the planning passes and the operator.
var (
	inventoryColumns = []string{
		"name", "guest_os", "os_family", "power_state", "vcpu", "ram_gb", "provisioned_gb", "in_use_gb",
		"disk_count", "nic_count", "snapshot_count", "snapshot_depth", "flags", "networks", "folder",
		"resource_pool", "host", "cluster", "daily_change_rate_pct", "tenant_key", "tenant_source", "updated_at",
	}
	ClassificationColumns = []string{
		"risk_config_id", "risk_score", "risk_category", "risk_reasons", "computed_mode", "mode_reasons",
		"migration_mode", "mode_source", "error_stage", "error_reason",
	}
	EstimationColumns = []string{
		"data_gb", "effective_mbps", "bottleneck", "phase1_hours", "cutover_hours", "total_hours",
		"production_impact", "error_stage", "error_reason",
		// capacity underflow rewrites the classification
		"risk_category", "risk_reasons", "computed_mode", "mode_reasons", "migration_mode",
	}
	GroupColumns    = []string{"tenant_key", "tenant_source", "cohort_key", "error_stage", "error_reason"}
	OverrideColumns = []string{
		"exclude_from_migration", "manual_mode_override", "priority", "pinned_wave", "pinned_cohort",
	}
	// ScheduleColumns carries the placement and the deferral of dependents of failed VMs.
	ScheduleColumns = []string{"wave_id", "wave_order", "error_stage", "error_reason"}
)

type VM interface {
	List(ctx context.Context, filter *VMQueryFilter, opts *VMQueryOptions) (model.VMList, error)
	Count(ctx context.Context, filter *VMQueryFilter) (int64, error)
	Get(ctx context.Context, projectID uuid.UUID, key string) (*model.VM, error)
	// Upsert inserts new rows and refreshes the inventory columns of existing ones.
	// Computed, override and placement columns of existing rows are left untouched.
	Upsert(ctx context.Context, vms []model.VM) error
	// UpdateColumns writes the given columns of every VM.
	UpdateColumns(ctx context.Context, vms []model.VM, columns ...string) error
	// ClearPlacement unassigns every VM of the project that is not a member of one of the kept waves.
	ClearPlacement(ctx context.Context, projectID uuid.UUID, keepWaves []uuid.UUID) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

type VMStore struct {
	db *gorm.DB
}

var _ VM = (*VMStore)(nil)

func NewVMStore(db *gorm.DB) VM {
	return &VMStore{db: db}
}

func (v *VMStore) List(ctx context.Context, filter *VMQueryFilter, opts *VMQueryOptions) (model.VMList, error) {
	var vms model.VMList
	tx := v.getDB(ctx).Model(&vms)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Find(&vms).Error; err != nil {
		return nil, err
	}
	return vms, nil
}

func (v *VMStore) Count(ctx context.Context, filter *VMQueryFilter) (int64, error) {
	var count int64
	tx := v.getDB(ctx).Model(&model.VM{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if err := tx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (v *VMStore) Get(ctx context.Context, projectID uuid.UUID, key string) (*model.VM, error) {
	var vm model.VM
	if err := v.getDB(ctx).First(&vm, "project_id = ? AND key = ?", projectID, key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &vm, nil
}

func (v *VMStore) Upsert(ctx context.Context, vms []model.VM) error {
	if len(vms) == 0 {
		return nil
	}
	for i := range vms {
		if vms[i].ID == uuid.Nil {
			vms[i].ID = uuid.New()
		}
	}
	return v.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns(inventoryColumns),
	}).CreateInBatches(&vms, 500).Error
}

func (v *VMStore) UpdateColumns(ctx context.Context, vms []model.VM, columns ...string) error {
	db := v.getDB(ctx)
	for i := range vms {
		result := db.Model(&vms[i]).Select(columns).Updates(&vms[i])
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRecordNotFound
		}
	}
	return nil
}

func (v *VMStore) ClearPlacement(ctx context.Context, projectID uuid.UUID, keepWaves []uuid.UUID) error {
	tx := v.getDB(ctx).Model(&model.VM{}).Where("project_id = ? AND wave_id IS NOT NULL", projectID)
	if len(keepWaves) > 0 {
		tx = tx.Where("wave_id NOT IN ?", keepWaves)
	}
	return tx.Updates(map[string]interface{}{"wave_id": nil, "wave_order": 0}).Error
}

func (v *VMStore) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	return v.getDB(ctx).Where("project_id = ?", projectID).Delete(&model.VM{}).Error
}

func (v *VMStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return v.db
}
