package v1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vulntor/exposure/pkg/server/api"
	"github.com/vulntor/exposure/pkg/tasks"
	"github.com/vulntor/exposure/pkg/vuln"
)

var validate = validator.New()

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var taskNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{1,62}$`)

// RunRequest is the body of POST /api/v1/run/{name} and /api/v1/jobs/{name}.
type RunRequest struct {
	Params tasks.Params `json:"params"`
}

// AlertRequest is the body of the alert endpoints.
type AlertRequest struct {
	Params struct {
		APIKey  string `json:"api_key"`
		AlertID string `json:"alert_id"`
	} `json:"params"`
}

// decodeBody decodes an optional JSON body into out. An empty body leaves
// out untouched.
func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &api.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}

// ValidateTaskName validates the {name} path segment.
func ValidateTaskName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &api.ValidationError{Field: "name", Reason: "required"}
	}
	if !taskNameRe.MatchString(name) {
		return &api.ValidationError{Field: "name", Reason: "invalid format (lowercase alnum and underscore)"}
	}
	return nil
}

// ParseRunRequest validates the task name and decodes the parameters.
// A missing body or params object yields empty parameters.
func ParseRunRequest(r *http.Request) (string, tasks.Params, error) {
	name := r.PathValue("name")
	if err := ValidateTaskName(name); err != nil {
		return "", nil, err
	}
	var req RunRequest
	if err := decodeBody(r, &req); err != nil {
		return "", nil, err
	}
	if req.Params == nil {
		req.Params = tasks.Params{}
	}
	return name, req.Params, nil
}

// ParseAlertRequest decodes an alert request. The alert id is required
// when requireID is set.
func ParseAlertRequest(r *http.Request, requireID bool) (*AlertRequest, error) {
	var req AlertRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	req.Params.APIKey = strings.TrimSpace(req.Params.APIKey)
	req.Params.AlertID = strings.TrimSpace(req.Params.AlertID)
	if requireID {
		if err := validate.Var(req.Params.AlertID, "required,alphanum"); err != nil {
			return nil, &api.ValidationError{Field: "alert_id", Reason: "required alphanumeric id"}
		}
	}
	return &req, nil
}

// ParseCVEQuery returns the normalized ?cve= parameter.
func ParseCVEQuery(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("cve"))
	if err := validate.Var(raw, "required"); err != nil {
		return "", &api.ValidationError{Field: "cve", Reason: "required"}
	}
	id, ok := vuln.NormalizeCVEID(raw)
	if !ok {
		return "", &api.ValidationError{Field: "cve", Reason: "must look like CVE-YYYY-NNNN"}
	}
	return id, nil
}

// ParsePathQuery returns the required ?path= parameter.
func ParsePathQuery(r *http.Request) (string, error) {
	p := strings.TrimSpace(r.URL.Query().Get("path"))
	if err := validate.Var(p, "required"); err != nil {
		return "", &api.ValidationError{Field: "path", Reason: "required"}
	}
	return p, nil
}
