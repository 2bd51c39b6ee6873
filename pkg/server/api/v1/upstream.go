package v1

import (
	"context"
	"net/http"
	"strings"

	"github.com/vulntor/exposure/pkg/server/api"
)

// withHandlerTimeout bounds ctx by the configured handler timeout unless it
// already carries a deadline.
func withHandlerTimeout(ctx context.Context, cfg api.Config) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && cfg.HandlerTimeout > 0 {
		return context.WithTimeout(ctx, cfg.HandlerTimeout)
	}
	return ctx, func() {}
}

func writeUpstreamError(ctx context.Context, w http.ResponseWriter, r *http.Request, cfg api.Config, err error) {
	if ctx.Err() == context.DeadlineExceeded {
		api.WriteJSONError(w, http.StatusGatewayTimeout, "Gateway Timeout", "TIMEOUT",
			"operation timed out after "+cfg.HandlerTimeout.String())
		return
	}
	api.WriteError(w, r, err)
}

// CVEErrorResponse is returned by GET /api/v1/nvd/cve when the lookup fails.
type CVEErrorResponse struct {
	CVE   string `json:"cve"`
	Error string `json:"error"`
}

// GetCVEHandler handles GET /api/v1/nvd/cve?cve=
//
// Returns the CVE detail (description, score, severity, references).
// Lookups are cached by the client for a day. Failures answer with
// {cve, error} and the status derived from the error.
func GetCVEHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := ParseCVEQuery(r)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		ctx, cancel := withHandlerTimeout(r.Context(), deps.Config)
		defer cancel()

		detail, err := deps.CVE.Get(ctx, id)
		if err != nil {
			status := api.HTTPStatus(err)
			if ctx.Err() == context.DeadlineExceeded {
				status = http.StatusGatewayTimeout
			}
			api.WriteJSON(w, status, CVEErrorResponse{CVE: id, Error: err.Error()})
			return
		}
		api.WriteJSON(w, http.StatusOK, detail)
	}
}

// ShodanAPIInfoHandler handles GET /api/v1/shodan/api-info?api_key=
//
// Returns the plan and credit information of the key. Without api_key the
// configured key is used.
func ShodanAPIInfoHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withHandlerTimeout(r.Context(), deps.Config)
		defer cancel()

		key := strings.TrimSpace(r.URL.Query().Get("api_key"))
		info, err := deps.Shodan(key).APIInfo(ctx)
		if err != nil {
			writeUpstreamError(ctx, w, r, deps.Config, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, info)
	}
}

// ListAlertsHandler handles POST /api/v1/alerts/list
//
// Body: {"params": {"api_key": "..."}}. Returns the account's network
// alerts, 400 when no key is given or configured.
func ListAlertsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := ParseAlertRequest(r, false)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		ctx, cancel := withHandlerTimeout(r.Context(), deps.Config)
		defer cancel()

		alerts, err := deps.Shodan(req.Params.APIKey).Alerts(ctx)
		if err != nil {
			writeUpstreamError(ctx, w, r, deps.Config, err)
			return
		}
		if alerts == nil {
			alerts = []map[string]any{}
		}
		api.WriteJSON(w, http.StatusOK, alerts)
	}
}

// DeleteAlertHandler handles POST /api/v1/alerts/delete
//
// Body: {"params": {"api_key": "...", "alert_id": "..."}}.
// Returns {"status": "deleted", "id": "..."}.
func DeleteAlertHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := ParseAlertRequest(r, true)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		ctx, cancel := withHandlerTimeout(r.Context(), deps.Config)
		defer cancel()

		if err := deps.Shodan(req.Params.APIKey).DeleteAlert(ctx, req.Params.AlertID); err != nil {
			writeUpstreamError(ctx, w, r, deps.Config, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": req.Params.AlertID})
	}
}
