package v1alpha1

import (
	"net/http"

	"github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/kubev2v/wave-planner/internal/handlers/v1alpha1/mappers"
	"github.com/kubev2v/wave-planner/internal/planner"
)

// (GET /api/v1/projects)
func (h *ServiceHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectSrv.ListProjects(r.Context(), owner(r), boolQuery(r, "includeArchived"))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.ProjectListToApi(projects))
}

// (POST /api/v1/projects)
func (h *ServiceHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var form v1alpha1.ProjectCreate
	if !h.decode(w, r, &form) {
		return
	}

	createForm := mappers.ProjectFormApi(form)
	createForm.Owner = owner(r)

	project, err := h.projectSrv.CreateProject(r.Context(), createForm)
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusCreated, mappers.ProjectToApi(*project))
}

// (GET /api/v1/projects/{id})
func (h *ServiceHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	project, err := h.projectSrv.GetProject(r.Context(), id, owner(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.ProjectToApi(*project))
}

// (DELETE /api/v1/projects/{id})
func (h *ServiceHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.projectSrv.DeleteProject(r.Context(), id, owner(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// (PUT /api/v1/projects/{id}/settings)
func (h *ServiceHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	settings := planner.DefaultSettings()
	if !h.decode(w, r, &settings) {
		return
	}
	project, err := h.projectSrv.UpdateSettings(r.Context(), id, owner(r), settings)
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.ProjectToApi(*project))
}

// (POST /api/v1/projects/{id}/transition)
func (h *ServiceHandler) TransitionProject(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var form v1alpha1.ProjectTransition
	if !h.decode(w, r, &form) {
		return
	}
	project, err := h.projectSrv.TransitionProject(r.Context(), id, owner(r), string(form.Status))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.ProjectToApi(*project))
}

// (GET /api/v1/projects/{id}/risk-configs)
func (h *ServiceHandler) ListRiskConfigs(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	project, err := h.projectSrv.GetProject(r.Context(), id, owner(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	configs, err := h.projectSrv.ListRiskConfigs(r.Context(), id, owner(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.RiskConfigListToApi(configs, project.ActiveRiskConfigID))
}

// (POST /api/v1/projects/{id}/risk-configs)
func (h *ServiceHandler) CreateRiskConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var form v1alpha1.RiskConfigCreate
	if !h.decode(w, r, &form) {
		return
	}
	rc, err := h.projectSrv.CreateRiskConfig(r.Context(), id, owner(r), form.Rules, form.Activate)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := mappers.RiskConfigToApi(*rc, nil)
	out.Active = form.Activate
	reply(w, r, http.StatusCreated, out)
}

// (POST /api/v1/projects/{id}/risk-configs/{configId}/activate)
func (h *ServiceHandler) ActivateRiskConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	configID, ok := uuidParam(w, r, "configId")
	if !ok {
		return
	}
	project, err := h.projectSrv.ActivateRiskConfig(r.Context(), id, owner(r), configID)
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.ProjectToApi(*project))
}
