package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tenantImportColumns = []string{
	"name", "priority", "target_domain", "target_project", "router", "security_group", "floating_ip_pool", "updated_at",
}

type Tenant interface {
	List(ctx context.Context, projectID uuid.UUID) (model.TenantList, error)
	Get(ctx context.Context, projectID uuid.UUID, key string) (*model.Tenant, error)
	// Upsert inserts new tenants and refreshes the declared fields of existing ones.
	Upsert(ctx context.Context, tenants []model.Tenant) error
	Update(ctx context.Context, tenant model.Tenant) (*model.Tenant, error)
	// UpdateAggregates writes the detection fields and VM totals.
	UpdateAggregates(ctx context.Context, tenants []model.Tenant) error
	Delete(ctx context.Context, projectID uuid.UUID, keys ...string) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

type TenantStore struct {
	db *gorm.DB
}

var _ Tenant = (*TenantStore)(nil)

func NewTenantStore(db *gorm.DB) Tenant {
	return &TenantStore{db: db}
}

func (t *TenantStore) List(ctx context.Context, projectID uuid.UUID) (model.TenantList, error) {
	var tenants model.TenantList
	if err := t.getDB(ctx).Where("project_id = ?", projectID).Order("key").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

func (t *TenantStore) Get(ctx context.Context, projectID uuid.UUID, key string) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := t.getDB(ctx).First(&tenant, "project_id = ? AND key = ?", projectID, key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

func (t *TenantStore) Upsert(ctx context.Context, tenants []model.Tenant) error {
	if len(tenants) == 0 {
		return nil
	}
	for i := range tenants {
		if tenants[i].ID == uuid.Nil {
			tenants[i].ID = uuid.New()
		}
	}
	return t.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns(tenantImportColumns),
	}).Create(&tenants).Error
}

func (t *TenantStore) Update(ctx context.Context, tenant model.Tenant) (*model.Tenant, error) {
	result := t.getDB(ctx).Model(&tenant).
		Select("name", "confirmed", "priority", "cohort_key", "target_domain", "target_project",
			"router", "security_group", "floating_ip_pool", "updated_at").
		Updates(&tenant)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return t.Get(ctx, tenant.ProjectID, tenant.Key)
}

func (t *TenantStore) UpdateAggregates(ctx context.Context, tenants []model.Tenant) error {
	db := t.getDB(ctx)
	for i := range tenants {
		if err := db.Model(&tenants[i]).
			Select("method", "vm_count", "vcpu", "ram_gb", "disk_gb").
			Updates(&tenants[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (t *TenantStore) Delete(ctx context.Context, projectID uuid.UUID, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return t.getDB(ctx).Where("project_id = ? AND key IN ?", projectID, keys).Delete(&model.Tenant{}).Error
}

func (t *TenantStore) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	return t.getDB(ctx).Where("project_id = ?", projectID).Delete(&model.Tenant{}).Error
}

func (t *TenantStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return t.db
}

type NetworkMapping interface {
	List(ctx context.Context, projectID uuid.UUID) (model.NetworkMappingList, error)
	Upsert(ctx context.Context, mappings []model.NetworkMapping) error
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

type NetworkMappingStore struct {
	db *gorm.DB
}

var _ NetworkMapping = (*NetworkMappingStore)(nil)

func NewNetworkMappingStore(db *gorm.DB) NetworkMapping {
	return &NetworkMappingStore{db: db}
}

func (n *NetworkMappingStore) List(ctx context.Context, projectID uuid.UUID) (model.NetworkMappingList, error) {
	var mappings model.NetworkMappingList
	if err := n.getDB(ctx).Where("project_id = ?", projectID).Order("tenant_key").Order("source").Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

func (n *NetworkMappingStore) Upsert(ctx context.Context, mappings []model.NetworkMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	return n.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "tenant_key"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"target"}),
	}).Create(&mappings).Error
}

func (n *NetworkMappingStore) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	return n.getDB(ctx).Where("project_id = ?", projectID).Delete(&model.NetworkMapping{}).Error
}

func (n *NetworkMappingStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return n.db
}
