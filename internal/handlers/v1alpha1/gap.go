package v1alpha1

import (
	"net/http"

	"github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/kubev2v/wave-planner/internal/handlers/v1alpha1/mappers"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/service"
)

// (GET /api/v1/projects/{id}/gaps?scope=..&status=..&severity=..)
func (h *ServiceHandler) ListGaps(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	gaps, err := h.gapSrv.ListGaps(r.Context(), id, owner(r), service.GapFilter{
		Scope:    q.Get("scope"),
		Status:   q.Get("status"),
		Severity: q.Get("severity"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.GapListToApi(gaps))
}

// (PUT /api/v1/projects/{id}/gaps/{gapId})
func (h *ServiceHandler) ResolveGap(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	gapID, ok := uuidParam(w, r, "gapId")
	if !ok {
		return
	}
	var form v1alpha1.GapResolution
	if !h.decode(w, r, &form) {
		return
	}
	gap, err := h.gapSrv.ResolveGap(r.Context(), id, owner(r), gapID, service.GapResolution{
		Status: form.Status,
		By:     owner(r),
		Note:   form.Note,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.GapToApi(*gap))
}

// (PUT /api/v1/projects/{id}/destination)
func (h *ServiceHandler) UploadDestination(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var snapshot readiness.Snapshot
	if !h.decode(w, r, &snapshot) {
		return
	}
	if _, err := h.gapSrv.UploadDestinationSnapshot(r.Context(), id, owner(r), snapshot); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
