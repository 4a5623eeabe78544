package v1alpha1

import (
	"net/http"

	"github.com/kubev2v/wave-planner/api/v1alpha1"
	"github.com/kubev2v/wave-planner/pkg/version"
)

// (GET /api/v1/info)
func (h *ServiceHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.Get()

	response := v1alpha1.Info{
		GitCommit:   versionInfo.GitCommit,
		VersionName: versionInfo.GitVersion,
	}

	reply(w, r, http.StatusOK, response)
}
