package v1alpha1

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/kubev2v/wave-planner/internal/handlers/v1alpha1/mappers"
	"github.com/kubev2v/wave-planner/internal/inventory"
	"github.com/kubev2v/wave-planner/internal/service"
)

// (PUT /api/v1/projects/{id}/inventory)
// The body is a YAML or JSON inventory document.
func (h *ServiceHandler) ImportInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		badRequest(w, r, "failed to read body: %v", err)
		return
	}
	if len(data) == 0 {
		badRequest(w, r, "empty body")
		return
	}
	inv, err := inventory.ParseInventory(data)
	if err != nil {
		badRequest(w, r, "%v", err)
		return
	}

	result, err := h.inventorySrv.ImportInventory(r.Context(), id, owner(r), *inv)
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.ImportResultToApi(result))
}

// (GET /api/v1/projects/{id}/vms)
func (h *ServiceHandler) ListVMs(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := service.VMFilter{
		Tenant:          q.Get("tenant"),
		Cohort:          q.Get("cohort"),
		Category:        q.Get("category"),
		IncludeExcluded: boolQuery(r, "includeExcluded"),
	}
	if raw := q.Get("wave"); raw != "" {
		waveID, err := uuid.Parse(raw)
		if err != nil {
			badRequest(w, r, "invalid wave: %v", err)
			return
		}
		filter.WaveID = &waveID
	}
	if filter.Limit, ok = intQuery(w, r, "limit"); !ok {
		return
	}
	if filter.Offset, ok = intQuery(w, r, "offset"); !ok {
		return
	}

	vms, total, err := h.inventorySrv.ListVMs(r.Context(), id, owner(r), filter)
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.VMListToApi(vms, total))
}

// (GET /api/v1/projects/{id}/vms/{key})
func (h *ServiceHandler) GetVM(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	vm, err := h.inventorySrv.GetVM(r.Context(), id, owner(r), chi.URLParam(r, "key"))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.VMToApi(*vm))
}

// (PATCH /api/v1/projects/{id}/vms/{key}/overrides)
func (h *ServiceHandler) UpdateVMOverrides(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var form v1alpha1.VMOverrides
	if !h.decode(w, r, &form) {
		return
	}
	vm, err := h.inventorySrv.UpdateVMOverrides(r.Context(), id, owner(r), chi.URLParam(r, "key"), mappers.VMOverrideFormApi(form))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.VMToApi(*vm))
}

// (GET /api/v1/projects/{id}/dependencies)
func (h *ServiceHandler) ListDependencies(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	deps, err := h.inventorySrv.ListDependencies(r.Context(), id, owner(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.DependencyListToApi(deps))
}

// (POST /api/v1/projects/{id}/dependencies)
func (h *ServiceHandler) AddDependency(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var form v1alpha1.Dependency
	if !h.decode(w, r, &form) {
		return
	}
	if err := h.inventorySrv.AddDependency(r.Context(), id, owner(r), form.Vm, form.DependsOn); err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusCreated, form)
}

// (DELETE /api/v1/projects/{id}/dependencies?vm=..&dependsOn=..)
func (h *ServiceHandler) RemoveDependency(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	form := v1alpha1.Dependency{Vm: r.URL.Query().Get("vm"), DependsOn: r.URL.Query().Get("dependsOn")}
	if err := h.validator.Struct(form); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.inventorySrv.RemoveDependency(r.Context(), id, owner(r), form.Vm, form.DependsOn); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// (GET /api/v1/projects/{id}/tenants)
func (h *ServiceHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	tenants, err := h.inventorySrv.ListTenants(r.Context(), id, owner(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.TenantListToApi(tenants))
}

// (POST /api/v1/projects/{id}/tenants)
func (h *ServiceHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var form v1alpha1.Tenant
	if !h.decode(w, r, &form) {
		return
	}
	tenant, err := h.inventorySrv.CreateTenant(r.Context(), id, owner(r), mappers.TenantFormApi(form))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusCreated, mappers.TenantToApi(*tenant))
}

// (PUT /api/v1/projects/{id}/tenants/{key})
func (h *ServiceHandler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	form := v1alpha1.Tenant{Key: chi.URLParam(r, "key")}
	if !h.decode(w, r, &form) {
		return
	}
	form.Key = chi.URLParam(r, "key")
	tenant, err := h.inventorySrv.UpdateTenant(r.Context(), id, owner(r), mappers.TenantFormApi(form))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.TenantToApi(*tenant))
}

// (GET /api/v1/projects/{id}/cohorts)
func (h *ServiceHandler) ListCohorts(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	cohorts, err := h.inventorySrv.ListCohorts(r.Context(), id, owner(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.CohortListToApi(cohorts))
}

// (POST /api/v1/projects/{id}/cohorts)
func (h *ServiceHandler) CreateCohort(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var form v1alpha1.Cohort
	if !h.decode(w, r, &form) {
		return
	}
	cohort, err := h.inventorySrv.CreateCohort(r.Context(), id, owner(r), mappers.CohortFormApi(form))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusCreated, mappers.CohortToApi(*cohort))
}

// (PUT /api/v1/projects/{id}/cohorts/{key})
func (h *ServiceHandler) UpdateCohort(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	form := v1alpha1.Cohort{Key: chi.URLParam(r, "key")}
	if !h.decode(w, r, &form) {
		return
	}
	form.Key = chi.URLParam(r, "key")
	cohort, err := h.inventorySrv.UpdateCohort(r.Context(), id, owner(r), mappers.CohortFormApi(form))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.CohortToApi(*cohort))
}

// (DELETE /api/v1/projects/{id}/cohorts/{key})
func (h *ServiceHandler) DeleteCohort(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.inventorySrv.DeleteCohort(r.Context(), id, owner(r), chi.URLParam(r, "key")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// (GET /api/v1/projects/{id}/network-mappings)
func (h *ServiceHandler) ListNetworkMappings(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	mappings, err := h.inventorySrv.ListNetworkMappings(r.Context(), id, owner(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.NetworkMappingListToApi(mappings))
}

// (PUT /api/v1/projects/{id}/network-mappings)
func (h *ServiceHandler) SetNetworkMappings(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var form v1alpha1.NetworkMappingList
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodySize), &form); err != nil {
		badRequest(w, r, "failed to decode body: %v", err)
		return
	}
	for _, m := range form {
		if err := h.validator.Struct(m); err != nil {
			fail(w, r, err)
			return
		}
	}
	mappings, err := h.inventorySrv.SetNetworkMappings(r.Context(), id, owner(r), mappers.NetworkMappingsApi(form))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.NetworkMappingListToApi(mappings))
}
