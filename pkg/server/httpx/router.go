package httpx

import (
	"net/http"

	"github.com/vulntor/exposure/pkg/server/api"
	v1 "github.com/vulntor/exposure/pkg/server/api/v1"
)

// NewRouter creates the HTTP router with health, task, result and upstream
// endpoints. It uses Go 1.22+ method and wildcard patterns.
func NewRouter(deps *api.Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", v1.HealthzHandler())
	mux.HandleFunc("GET /readyz", v1.ReadyzHandler(deps.Ready))

	// Tasks
	mux.HandleFunc("GET /api/v1/tasks/schema", v1.TasksSchemaHandler(deps))
	mux.HandleFunc("POST /api/v1/run/{name}", v1.RunTaskHandler(deps))
	mux.HandleFunc("POST /api/v1/jobs/{name}", v1.SubmitJobHandler(deps))
	mux.HandleFunc("GET /api/v1/jobs/{id}", v1.GetJobHandler(deps))

	// Results
	mux.HandleFunc("GET /api/v1/results", v1.ListResultsHandler(deps))
	mux.HandleFunc("GET /api/v1/results/file", v1.GetResultFileHandler(deps))
	mux.HandleFunc("GET /api/v1/extract-cves", v1.ExtractCVEsHandler(deps))
	mux.HandleFunc("POST /api/v1/upload-json", v1.UploadJSONHandler(deps))

	// Upstream passthrough
	mux.HandleFunc("GET /api/v1/nvd/cve", v1.GetCVEHandler(deps))
	mux.HandleFunc("GET /api/v1/shodan/api-info", v1.ShodanAPIInfoHandler(deps))
	mux.HandleFunc("POST /api/v1/alerts/list", v1.ListAlertsHandler(deps))
	mux.HandleFunc("POST /api/v1/alerts/delete", v1.DeleteAlertHandler(deps))

	return mux
}
