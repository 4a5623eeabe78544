package v1alpha1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kubev2v/wave-planner/internal/service"
)

// (GET /api/v1/projects/{id}/export?format=xlsx|csv)
func (h *ServiceHandler) ExportPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	format := service.ReportFormatXLSX
	if f := r.URL.Query().Get("format"); f != "" {
		format = service.ReportFormat(f)
	}

	report, err := h.reportSrv.ExportPlan(r.Context(), id, owner(r), format)
	if err != nil {
		fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(report.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Content)
}
