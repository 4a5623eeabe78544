package v1alpha1

import (
	"net/http"

	"github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/kubev2v/wave-planner/internal/handlers/v1alpha1/mappers"
)

// (GET /api/v1/projects/{id}/waves)
func (h *ServiceHandler) ListWaves(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	waves, err := h.waveSrv.ListWaves(r.Context(), id, owner(r), r.URL.Query().Get("cohort"))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.WaveListToApi(waves))
}

// (GET /api/v1/projects/{id}/waves/{waveId})
func (h *ServiceHandler) GetWave(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	waveID, ok := uuidParam(w, r, "waveId")
	if !ok {
		return
	}
	wave, err := h.waveSrv.GetWave(r.Context(), id, owner(r), waveID)
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.WaveToApi(*wave))
}

// (POST /api/v1/projects/{id}/waves/{waveId}/transition)
func (h *ServiceHandler) TransitionWave(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	waveID, ok := uuidParam(w, r, "waveId")
	if !ok {
		return
	}
	var form v1alpha1.WaveTransition
	if !h.decode(w, r, &form) {
		return
	}
	wave, err := h.waveSrv.TransitionWave(r.Context(), id, owner(r), waveID, string(form.Status))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.WaveToApi(*wave))
}
