package v1alpha1

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/kubev2v/wave-planner/internal/auth"
	"github.com/kubev2v/wave-planner/internal/handlers/validator"
	"github.com/kubev2v/wave-planner/internal/service"
	"go.uber.org/zap"
)

const maxBodySize = 64 << 20

type ServiceHandler struct {
	projectSrv   *service.ProjectService
	inventorySrv *service.InventoryService
	plannerSrv   *service.PlannerService
	waveSrv      *service.WaveService
	gapSrv       *service.GapService
	reportSrv    *service.ReportService
	validator    *validator.Validator
}

type Services struct {
	Project   *service.ProjectService
	Inventory *service.InventoryService
	Planner   *service.PlannerService
	Wave      *service.WaveService
	Gap       *service.GapService
	Report    *service.ReportService
}

func NewServiceHandler(services Services) *ServiceHandler {
	v := validator.NewValidator()
	v.Register(validator.NewProjectValidationRules()...)
	v.Register(validator.NewInventoryValidationRules()...)
	v.Register(validator.NewWaveValidationRules()...)

	return &ServiceHandler{
		projectSrv:   services.Project,
		inventorySrv: services.Inventory,
		plannerSrv:   services.Planner,
		waveSrv:      services.Wave,
		gapSrv:       services.Gap,
		reportSrv:    services.Report,
		validator:    v,
	}
}

// Routes mounts the API under /api/v1 on router.
func (h *ServiceHandler) Routes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/info", h.GetInfo)

		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.CreateProject)
		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", h.GetProject)
			r.Delete("/", h.DeleteProject)
			r.Put("/settings", h.UpdateSettings)
			r.Post("/transition", h.TransitionProject)

			r.Get("/risk-configs", h.ListRiskConfigs)
			r.Post("/risk-configs", h.CreateRiskConfig)
			r.Post("/risk-configs/{configId}/activate", h.ActivateRiskConfig)

			r.Put("/inventory", h.ImportInventory)
			r.Get("/vms", h.ListVMs)
			r.Get("/vms/{key}", h.GetVM)
			r.Patch("/vms/{key}/overrides", h.UpdateVMOverrides)
			r.Get("/dependencies", h.ListDependencies)
			r.Post("/dependencies", h.AddDependency)
			r.Delete("/dependencies", h.RemoveDependency)
			r.Get("/tenants", h.ListTenants)
			r.Post("/tenants", h.CreateTenant)
			r.Put("/tenants/{key}", h.UpdateTenant)
			r.Get("/cohorts", h.ListCohorts)
			r.Post("/cohorts", h.CreateCohort)
			r.Put("/cohorts/{key}", h.UpdateCohort)
			r.Delete("/cohorts/{key}", h.DeleteCohort)
			r.Get("/network-mappings", h.ListNetworkMappings)
			r.Put("/network-mappings", h.SetNetworkMappings)

			r.Post("/passes/{kind}", h.RunPass)
			r.Get("/passes", h.ListPasses)
			r.Get("/passes/{passId}", h.GetPass)

			r.Get("/waves", h.ListWaves)
			r.Get("/waves/{waveId}", h.GetWave)
			r.Post("/waves/{waveId}/transition", h.TransitionWave)

			r.Get("/gaps", h.ListGaps)
			r.Put("/gaps/{gapId}", h.ResolveGap)
			r.Put("/destination", h.UploadDestination)

			r.Get("/export", h.ExportPlan)
		})
	})
}

// (GET /health)
func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ErrResponse is the body of every failed request.
type ErrResponse struct {
	HTTPStatusCode int `json:"-"`
	v1alpha1.Error
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func errorReply(status int, message string, details ...string) *ErrResponse {
	return &ErrResponse{HTTPStatusCode: status, Error: v1alpha1.Error{Message: message, Details: details}}
}

func badRequest(w http.ResponseWriter, r *http.Request, format string, args ...any) {
	_ = render.Render(w, r, errorReply(http.StatusBadRequest, fmt.Sprintf(format, args...)))
}

func reply(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// fail maps a service error to its status code. Unknown errors are logged and
// answered with 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound     *service.ErrResourceNotFound
		validation   *service.ErrValidation
		invalid      *validator.ErrInvalidRequest
		duplicate    *service.ErrDuplicate
		cycle        *service.ErrCycle
		overconstr   *service.ErrOverconstrainedSchedule
		transition   *service.ErrInvalidTransition
		gaps         *service.ErrGapsUnresolved
		superseded   *service.ErrPassSuperseded
		missingRules *service.ErrMissingRiskConfig
	)

	var resp *ErrResponse
	switch {
	case errors.As(err, &notFound):
		resp = errorReply(http.StatusNotFound, err.Error())
	case errors.As(err, &invalid):
		resp = errorReply(http.StatusBadRequest, err.Error(), invalid.Fields...)
	case errors.As(err, &validation):
		resp = errorReply(http.StatusBadRequest, err.Error())
	case errors.As(err, &duplicate):
		resp = errorReply(http.StatusConflict, err.Error())
	case errors.As(err, &cycle):
		resp = errorReply(http.StatusUnprocessableEntity, err.Error(), cycle.Path...)
	case errors.As(err, &overconstr), errors.As(err, &missingRules):
		resp = errorReply(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &gaps):
		keys := make([]string, 0, len(gaps.Gaps))
		for _, g := range gaps.Gaps {
			keys = append(keys, g.Key())
		}
		resp = errorReply(http.StatusConflict, err.Error(), keys...)
	case errors.As(err, &transition), errors.As(err, &superseded):
		resp = errorReply(http.StatusConflict, err.Error())
	default:
		zap.S().Named("handler").Errorw("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		resp = errorReply(http.StatusInternalServerError, "internal error")
	}
	_ = render.Render(w, r, resp)
}

// decode reads a JSON body into form and validates it.
func (h *ServiceHandler) decode(w http.ResponseWriter, r *http.Request, form any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		badRequest(w, r, "empty body")
		return false
	}
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodySize), form); err != nil {
		badRequest(w, r, "failed to decode body: %v", err)
		return false
	}
	if err := h.validator.Struct(form); err != nil {
		fail(w, r, err)
		return false
	}
	return true
}

func owner(r *http.Request) string {
	return auth.MustHaveUser(r.Context()).Username
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, r, "invalid %s: %v", name, err)
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(w, r, "invalid %s %q", name, raw)
		return 0, false
	}
	return v, true
}

func boolQuery(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}
