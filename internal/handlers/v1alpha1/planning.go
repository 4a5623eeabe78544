package v1alpha1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/kubev2v/wave-planner/internal/handlers/v1alpha1/mappers"
	"github.com/kubev2v/wave-planner/internal/service"
	"github.com/kubev2v/wave-planner/internal/store/model"
)

const passKindAll = "all"

// (POST /api/v1/projects/{id}/passes/{kind})
// kind is one of classify, estimate, group, schedule, readiness or all. The
// body is optional. A failed pass is still answered with its record.
func (h *ServiceHandler) RunPass(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var form v1alpha1.PassRequest
	if r.ContentLength > 0 {
		if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodySize), &form); err != nil {
			badRequest(w, r, "failed to decode body: %v", err)
			return
		}
	}
	if _, err := h.projectSrv.GetProject(r.Context(), id, owner(r)); err != nil {
		fail(w, r, err)
		return
	}

	opts := service.PassOptions{
		IgnoreOverrides:    form.IgnoreOverrides,
		RefreshDestination: form.RefreshDestination,
	}
	if form.Cohort != nil {
		opts.CohortKey = *form.Cohort
	}

	kind := chi.URLParam(r, "kind")
	if kind == passKindAll {
		passes, err := h.plannerSrv.RunAll(r.Context(), id, opts)
		if err != nil && len(passes) == 0 {
			fail(w, r, err)
			return
		}
		reply(w, r, http.StatusOK, mappers.PassListToApi(passes))
		return
	}

	run := map[string]func() (*model.Pass, error){
		model.PassKindClassify:  func() (*model.Pass, error) { return h.plannerSrv.Classify(r.Context(), id, opts) },
		model.PassKindEstimate:  func() (*model.Pass, error) { return h.plannerSrv.Estimate(r.Context(), id, opts) },
		model.PassKindGroup:     func() (*model.Pass, error) { return h.plannerSrv.Group(r.Context(), id, opts) },
		model.PassKindSchedule:  func() (*model.Pass, error) { return h.plannerSrv.Schedule(r.Context(), id, opts) },
		model.PassKindReadiness: func() (*model.Pass, error) { return h.plannerSrv.CheckReadiness(r.Context(), id, opts) },
	}[kind]
	if run == nil {
		badRequest(w, r, "unknown pass kind %q", kind)
		return
	}

	pass, err := run()
	if err != nil && pass == nil {
		fail(w, r, err)
		return
	}
	if err != nil {
		// The record carries the failure; the status tells why.
		_ = render.Render(w, r, passFailure(err, *pass))
		return
	}
	reply(w, r, http.StatusOK, mappers.PassToApi(*pass))
}

// PassFailedReply answers a pass that ran and failed.
type PassFailedReply struct {
	HTTPStatusCode int `json:"-"`
	v1alpha1.Error
	Pass v1alpha1.Pass `json:"pass"`
}

func (p *PassFailedReply) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, p.HTTPStatusCode)
	return nil
}

func passFailure(err error, pass model.Pass) *PassFailedReply {
	status := http.StatusUnprocessableEntity
	if pass.Status == model.PassStatusSuperseded {
		status = http.StatusConflict
	}
	return &PassFailedReply{
		HTTPStatusCode: status,
		Error:          v1alpha1.Error{Message: err.Error()},
		Pass:           mappers.PassToApi(pass),
	}
}

// (GET /api/v1/projects/{id}/passes)
func (h *ServiceHandler) ListPasses(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.projectSrv.GetProject(r.Context(), id, owner(r)); err != nil {
		fail(w, r, err)
		return
	}
	passes, err := h.plannerSrv.ListPasses(r.Context(), id, r.URL.Query().Get("kind"))
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.PassListToApi(passes))
}

// (GET /api/v1/projects/{id}/passes/{passId})
func (h *ServiceHandler) GetPass(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	passID, ok := uuidParam(w, r, "passId")
	if !ok {
		return
	}
	if _, err := h.projectSrv.GetProject(r.Context(), id, owner(r)); err != nil {
		fail(w, r, err)
		return
	}
	pass, err := h.plannerSrv.GetPass(r.Context(), id, passID)
	if err != nil {
		fail(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, mappers.PassToApi(*pass))
}
