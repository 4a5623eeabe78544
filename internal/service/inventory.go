package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/classifier"
	"github.com/kubev2v/wave-planner/internal/grouping"
	"github.com/kubev2v/wave-planner/internal/inventory"
	"github.com/kubev2v/wave-planner/internal/planner"
	"github.com/kubev2v/wave-planner/internal/service/mappers"
	"github.com/kubev2v/wave-planner/internal/store"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"github.com/kubev2v/wave-planner/pkg/log"
)

type ImportResult struct {
	VMs             int
	Tenants         int
	Dependencies    int
	NetworkMappings int
}

type VMFilter struct {
	Tenant          string
	Cohort          string
	Category        string
	WaveID          *uuid.UUID
	IncludeExcluded bool
	Limit           int
	Offset          int
}

// InventoryService owns the operator side of the project data: imported rows,
// overrides, dependencies, tenants, cohorts and network mappings.
type InventoryService struct {
	store  store.Store
	logger *log.StructuredLogger
}

func NewInventoryService(s store.Store) *InventoryService {
	return &InventoryService{store: s, logger: log.NewDebugLogger("inventory_service")}
}

// ImportInventory upserts the rows by key. Existing VMs keep their overrides
// and computed columns; dependencies are cycle checked against the stored ones.
func (is *InventoryService) ImportInventory(ctx context.Context, projectID uuid.UUID, owner string, inv inventory.Inventory) (ImportResult, error) {
	logger := is.logger.WithContext(ctx)
	tracer := logger.Operation("import_inventory").
		WithUUID("project_id", projectID).
		WithInt("vms", len(inv.VMs)).
		WithInt("dependencies", len(inv.Dependencies)).
		Build()

	if err := inv.Validate(); err != nil {
		return ImportResult{}, NewErrValidation("%v", err)
	}
	if _, err := getWritableProject(ctx, is.store, projectID, owner); err != nil {
		return ImportResult{}, err
	}

	ctx, err := is.store.NewTransactionContext(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	defer func() {
		_, _ = store.Rollback(ctx)
	}()
	if err := is.store.LockProject(ctx, projectID); err != nil {
		return ImportResult{}, err
	}

	existing, err := is.store.VM().List(ctx, store.NewVMQueryFilter().ByProject(projectID), nil)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to list vms: %w", err)
	}
	graph := grouping.NewGraph()
	for _, vm := range existing {
		graph.AddNode(vm.Key)
	}
	for _, vm := range inv.VMs {
		graph.AddNode(vm.Key)
	}
	deps, err := is.store.Dependency().List(ctx, projectID)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to list dependencies: %w", err)
	}
	for _, d := range deps {
		if err := graph.AddEdge(d.VMKey, d.DependsOnKey); err != nil {
			return ImportResult{}, dependencyError(err)
		}
	}
	for _, e := range inv.Edges() {
		if !graph.Has(e.VM) {
			return ImportResult{}, NewErrValidation("dependency references unknown vm %q", e.VM)
		}
		if !graph.Has(e.DependsOn) {
			return ImportResult{}, NewErrValidation("dependency references unknown vm %q", e.DependsOn)
		}
		if err := graph.AddEdge(e.VM, e.DependsOn); err != nil {
			return ImportResult{}, dependencyError(err)
		}
	}

	tenants, err := is.importTenants(ctx, projectID, inv)
	if err != nil {
		return ImportResult{}, err
	}

	rows := make([]model.VM, 0, len(inv.VMs))
	for _, vm := range inv.VMs {
		rows = append(rows, mappers.VMFromInventory(projectID, vm))
	}
	if err := is.store.VM().Upsert(ctx, rows); err != nil {
		return ImportResult{}, fmt.Errorf("failed to write vms: %w", err)
	}

	mappings := make([]model.NetworkMapping, 0, len(inv.NetworkMappings))
	for _, m := range inv.NetworkMappings {
		mappings = append(mappings, mappers.MappingFromPlanner(projectID, m))
	}
	if err := is.store.NetworkMapping().Upsert(ctx, mappings); err != nil {
		return ImportResult{}, fmt.Errorf("failed to write network mappings: %w", err)
	}

	added := 0
	for _, d := range inv.Dependencies {
		err := is.store.Dependency().Create(ctx, model.VMDependency{ProjectID: projectID, VMKey: d.VM, DependsOnKey: d.DependsOn})
		switch {
		case errors.Is(err, store.ErrDuplicateKey):
		case err != nil:
			return ImportResult{}, fmt.Errorf("failed to write dependency: %w", err)
		default:
			added++
		}
	}

	if _, err := store.Commit(ctx); err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{VMs: len(rows), Tenants: tenants, Dependencies: added, NetworkMappings: len(mappings)}
	tracer.Success().
		WithInt("tenants", res.Tenants).
		WithInt("dependencies_added", res.Dependencies).
		Log()
	return res, nil
}

// importTenants upserts the declared tenants and creates a bare manual tenant
// for every unknown key a VM refers to.
func (is *InventoryService) importTenants(ctx context.Context, projectID uuid.UUID, inv inventory.Inventory) (int, error) {
	stored, err := is.store.Tenant().List(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to list tenants: %w", err)
	}
	known := make(map[string]bool, len(stored)+len(inv.Tenants))
	for _, t := range stored {
		known[t.Key] = true
	}

	rows := make([]model.Tenant, 0, len(inv.Tenants))
	for _, t := range inv.Tenants {
		known[t.Key] = true
		rows = append(rows, mappers.TenantFromInventory(projectID, t))
	}
	for _, vm := range inv.VMs {
		if vm.Tenant == "" || known[vm.Tenant] {
			continue
		}
		known[vm.Tenant] = true
		rows = append(rows, mappers.TenantFromInventory(projectID, planner.Tenant{Key: vm.Tenant}))
	}
	if err := is.store.Tenant().Upsert(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to write tenants: %w", err)
	}
	return len(rows), nil
}

func dependencyError(err error) error {
	var cycle *grouping.CycleError
	if errors.As(err, &cycle) {
		return NewErrCycle(cycle)
	}
	return &ErrValidation{err}
}

// ListVMs returns a page of VMs sorted by key and the total matching the filter.
func (is *InventoryService) ListVMs(ctx context.Context, projectID uuid.UUID, owner string, filter VMFilter) (model.VMList, int64, error) {
	if _, err := getProject(ctx, is.store, projectID, owner); err != nil {
		return nil, 0, err
	}
	f := store.NewVMQueryFilter().ByProject(projectID)
	if filter.Tenant != "" {
		f = f.ByTenant(filter.Tenant)
	}
	if filter.Cohort != "" {
		f = f.ByCohort(filter.Cohort)
	}
	if filter.Category != "" {
		f = f.ByCategory(filter.Category)
	}
	if filter.WaveID != nil {
		f = f.ByWave(*filter.WaveID)
	}
	if !filter.IncludeExcluded {
		f = f.Included()
	}

	total, err := is.store.VM().Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count vms: %w", err)
	}
	opts := store.NewVMQueryOptions().WithSortOrder(store.SortByKey)
	if filter.Limit > 0 {
		opts = opts.WithLimit(filter.Limit)
	}
	if filter.Offset > 0 {
		opts = opts.WithOffset(filter.Offset)
	}
	vms, err := is.store.VM().List(ctx, f, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vms: %w", err)
	}
	return vms, total, nil
}

func (is *InventoryService) GetVM(ctx context.Context, projectID uuid.UUID, owner, key string) (*model.VM, error) {
	if _, err := getProject(ctx, is.store, projectID, owner); err != nil {
		return nil, err
	}
	return is.getVM(ctx, projectID, key)
}

func (is *InventoryService) getVM(ctx context.Context, projectID uuid.UUID, key string) (*model.VM, error) {
	vm, err := is.store.VM().Get(ctx, projectID, key)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrVMNotFound(key)
		}
		return nil, fmt.Errorf("failed to get vm: %w", err)
	}
	return vm, nil
}

// UpdateVMOverrides writes the operator overrides of a VM. A classified VM
// takes a new manual mode at once, no classify pass is needed for that.
func (is *InventoryService) UpdateVMOverrides(ctx context.Context, projectID uuid.UUID, owner, key string, form mappers.VMOverrideForm) (*model.VM, error) {
	logger := is.logger.WithContext(ctx)
	tracer := logger.Operation("update_vm_overrides").
		WithUUID("project_id", projectID).
		WithString("vm", key).
		Build()

	if form.ManualMode != nil && *form.ManualMode != "" {
		if _, err := classifier.ParseMode(*form.ManualMode); err != nil {
			return nil, &ErrValidation{err}
		}
	}
	if form.PinnedWave != nil && *form.PinnedWave < 0 {
		return nil, NewErrValidation("pinned wave must be positive, got %d", *form.PinnedWave)
	}
	if _, err := getWritableProject(ctx, is.store, projectID, owner); err != nil {
		return nil, err
	}

	ctx, err := is.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = store.Rollback(ctx)
	}()
	if err := is.store.LockProject(ctx, projectID); err != nil {
		return nil, err
	}

	vm, err := is.getVM(ctx, projectID, key)
	if err != nil {
		return nil, err
	}
	if form.PinnedCohort != nil && *form.PinnedCohort != "" {
		if _, err := is.store.Cohort().Get(ctx, projectID, *form.PinnedCohort); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, NewErrResourceKeyNotFound(*form.PinnedCohort, "cohort")
			}
			return nil, fmt.Errorf("failed to get cohort: %w", err)
		}
	}

	form.Apply(vm)
	columns := append([]string{}, store.OverrideColumns...)
	if vm.Classified() && form.ManualMode != nil {
		if vm.ManualModeOverride != nil {
			vm.MigrationMode = *vm.ManualModeOverride
			vm.ModeSource = string(classifier.ProvenanceManual)
		} else {
			vm.MigrationMode = vm.ComputedMode
			vm.ModeSource = string(classifier.ProvenanceComputed)
		}
		columns = append(columns, "migration_mode", "mode_source")
	}
	if err := is.store.VM().UpdateColumns(ctx, []model.VM{*vm}, columns...); err != nil {
		return nil, fmt.Errorf("failed to update vm: %w", err)
	}
	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}

	tracer.Success().WithString("mode", vm.MigrationMode).Log()
	return vm, nil
}

func (is *InventoryService) ListDependencies(ctx context.Context, projectID uuid.UUID, owner string) (model.VMDependencyList, error) {
	if _, err := getProject(ctx, is.store, projectID, owner); err != nil {
		return nil, err
	}
	deps, err := is.store.Dependency().List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	return deps, nil
}

// AddDependency records that vmKey waits for dependsOn. An edge closing a cycle
// is rejected with ErrCycle and nothing is written.
func (is *InventoryService) AddDependency(ctx context.Context, projectID uuid.UUID, owner, vmKey, dependsOn string) error {
	if vmKey == dependsOn {
		return NewErrValidation("vm %q cannot depend on itself", vmKey)
	}
	if _, err := getWritableProject(ctx, is.store, projectID, owner); err != nil {
		return err
	}

	ctx, err := is.store.NewTransactionContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = store.Rollback(ctx)
	}()
	if err := is.store.LockProject(ctx, projectID); err != nil {
		return err
	}

	for _, key := range []string{vmKey, dependsOn} {
		if _, err := is.getVM(ctx, projectID, key); err != nil {
			return err
		}
	}
	deps, err := is.store.Dependency().List(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to list dependencies: %w", err)
	}
	graph := grouping.NewGraph()
	for _, d := range deps {
		if err := graph.AddEdge(d.VMKey, d.DependsOnKey); err != nil {
			return dependencyError(err)
		}
	}
	if err := graph.AddEdge(vmKey, dependsOn); err != nil {
		return dependencyError(err)
	}

	if err := is.store.Dependency().Create(ctx, model.VMDependency{ProjectID: projectID, VMKey: vmKey, DependsOnKey: dependsOn}); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return NewErrDuplicate("dependency", vmKey+" -> "+dependsOn)
		}
		return fmt.Errorf("failed to create dependency: %w", err)
	}
	_, err = store.Commit(ctx)
	return err
}

func (is *InventoryService) RemoveDependency(ctx context.Context, projectID uuid.UUID, owner, vmKey, dependsOn string) error {
	if _, err := getWritableProject(ctx, is.store, projectID, owner); err != nil {
		return err
	}
	if err := is.store.Dependency().Delete(ctx, projectID, vmKey, dependsOn); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrResourceKeyNotFound(vmKey+" -> "+dependsOn, "dependency")
		}
		return fmt.Errorf("failed to delete dependency: %w", err)
	}
	return nil
}

func (is *InventoryService) ListTenants(ctx context.Context, projectID uuid.UUID, owner string) (model.TenantList, error) {
	if _, err := getProject(ctx, is.store, projectID, owner); err != nil {
		return nil, err
	}
	tenants, err := is.store.Tenant().List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

// CreateTenant declares a manual tenant. Manual tenants are confirmed.
func (is *InventoryService) CreateTenant(ctx context.Context, projectID uuid.UUID, owner string, form mappers.TenantForm) (*model.Tenant, error) {
	if form.Key == "" {
		return nil, NewErrValidation("tenant key is required")
	}
	if _, err := getWritableProject(ctx, is.store, projectID, owner); err != nil {
		return nil, err
	}
	if err := is.checkCohort(ctx, projectID, form.CohortKey); err != nil {
		return nil, err
	}
	if _, err := is.store.Tenant().Get(ctx, projectID, form.Key); err == nil {
		return nil, NewErrDuplicate("tenant", form.Key)
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	tenant := model.Tenant{ID: uuid.New(), ProjectID: projectID, Key: form.Key, Name: form.Key, Method: model.TenantMethodManual, Confirmed: true}
	form.Apply(&tenant)
	if err := is.store.Tenant().Upsert(ctx, []model.Tenant{tenant}); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	// Upsert leaves confirmed to its default on insert.
	created, err := is.store.Tenant().Update(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return created, nil
}

// UpdateTenant edits a tenant. Confirming a detected tenant keeps it across
// group passes even when it loses all its VMs.
func (is *InventoryService) UpdateTenant(ctx context.Context, projectID uuid.UUID, owner string, form mappers.TenantForm) (*model.Tenant, error) {
	if _, err := getWritableProject(ctx, is.store, projectID, owner); err != nil {
		return nil, err
	}
	if err := is.checkCohort(ctx, projectID, form.CohortKey); err != nil {
		return nil, err
	}
	tenant, err := is.store.Tenant().Get(ctx, projectID, form.Key)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrResourceKeyNotFound(form.Key, "tenant")
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	form.Apply(tenant)
	updated, err := is.store.Tenant().Update(ctx, *tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return updated, nil
}

func (is *InventoryService) checkCohort(ctx context.Context, projectID uuid.UUID, key *string) error {
	if key == nil || *key == "" {
		return nil
	}
	if _, err := is.store.Cohort().Get(ctx, projectID, *key); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrResourceKeyNotFound(*key, "cohort")
		}
		return fmt.Errorf("failed to get cohort: %w", err)
	}
	return nil
}

func (is *InventoryService) ListCohorts(ctx context.Context, projectID uuid.UUID, owner string) (model.CohortList, error) {
	if _, err := getProject(ctx, is.store, projectID, owner); err != nil {
		return nil, err
	}
	cohorts, err := is.store.Cohort().List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cohorts: %w", err)
	}
	return cohorts, nil
}

func (is *InventoryService) CreateCohort(ctx context.Context, projectID uuid.UUID, owner string, form mappers.CohortForm) (*model.Cohort, error) {
	if err := validateCohort(form); err != nil {
		return nil, err
	}
	if _, err := getWritableProject(ctx, is.store, projectID, owner); err != nil {
		return nil, err
	}
	created, err := is.store.Cohort().Create(ctx, form.ToModel(projectID))
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, NewErrDuplicate("cohort", form.Key)
		}
		return nil, fmt.Errorf("failed to create cohort: %w", err)
	}
	return created, nil
}

// UpdateCohort edits a cohort. An edited automatic cohort becomes manual so
// the group pass no longer removes it.
func (is *InventoryService) UpdateCohort(ctx context.Context, projectID uuid.UUID, owner string, form mappers.CohortForm) (*model.Cohort, error) {
	if err := validateCohort(form); err != nil {
		return nil, err
	}
	if _, err := getWritableProject(ctx, is.store, projectID, owner); err != nil {
		return nil, err
	}
	cohort, err := is.store.Cohort().Get(ctx, projectID, form.Key)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrResourceKeyNotFound(form.Key, "cohort")
		}
		return nil, fmt.Errorf("failed to get cohort: %w", err)
	}
	next := form.ToModel(projectID)
	next.ID = cohort.ID
	updated, err := is.store.Cohort().Update(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("failed to update cohort: %w", err)
	}
	return updated, nil
}

// DeleteCohort removes a cohort without frozen waves. Its VMs run in a trailing
// cohort until the next group pass.
func (is *InventoryService) DeleteCohort(ctx context.Context, projectID uuid.UUID, owner, key string) error {
	if _, err := getWritableProject(ctx, is.store, projectID, owner); err != nil {
		return err
	}
	frozen, err := is.store.Wave().List(ctx, store.NewWaveQueryFilter().
		ByProject(projectID).
		ByCohort(key).
		ByStatus(model.FrozenWaveStatuses...))
	if err != nil {
		return fmt.Errorf("failed to list waves: %w", err)
	}
	if len(frozen) > 0 {
		return NewErrValidation("cohort %q has %d waves in execution", key, len(frozen))
	}
	if err := is.store.Cohort().Delete(ctx, projectID, key); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrResourceKeyNotFound(key, "cohort")
		}
		return fmt.Errorf("failed to delete cohort: %w", err)
	}
	return nil
}

func validateCohort(form mappers.CohortForm) error {
	switch {
	case form.Key == "":
		return NewErrValidation("cohort key is required")
	case form.ConcurrencyCeiling < 0:
		return NewErrValidation("concurrency ceiling must be positive, got %d", form.ConcurrencyCeiling)
	case form.CPUOvercommit != nil && *form.CPUOvercommit <= 0:
		return NewErrValidation("cpu overcommit must be positive")
	case form.RAMOvercommit != nil && *form.RAMOvercommit <= 0:
		return NewErrValidation("ram overcommit must be positive")
	}
	return nil
}

func (is *InventoryService) ListNetworkMappings(ctx context.Context, projectID uuid.UUID, owner string) (model.NetworkMappingList, error) {
	if _, err := getProject(ctx, is.store, projectID, owner); err != nil {
		return nil, err
	}
	mappings, err := is.store.NetworkMapping().List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list network mappings: %w", err)
	}
	return mappings, nil
}

// SetNetworkMappings replaces every network mapping of the project.
func (is *InventoryService) SetNetworkMappings(ctx context.Context, projectID uuid.UUID, owner string, mappings []planner.NetworkMapping) (model.NetworkMappingList, error) {
	if err := (inventory.Inventory{NetworkMappings: mappings}).Validate(); err != nil {
		return nil, NewErrValidation("%v", err)
	}
	if _, err := getWritableProject(ctx, is.store, projectID, owner); err != nil {
		return nil, err
	}

	ctx, err := is.store.NewTransactionContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = store.Rollback(ctx)
	}()
	if err := is.store.NetworkMapping().DeleteByProject(ctx, projectID); err != nil {
		return nil, fmt.Errorf("failed to delete network mappings: %w", err)
	}
	rows := make([]model.NetworkMapping, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, mappers.MappingFromPlanner(projectID, m))
	}
	if err := is.store.NetworkMapping().Upsert(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to write network mappings: %w", err)
	}
	stored, err := is.store.NetworkMapping().List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list network mappings: %w", err)
	}
	if _, err := store.Commit(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}
