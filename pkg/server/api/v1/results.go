package v1

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vulntor/exposure/pkg/server/api"
	"github.com/vulntor/exposure/pkg/vuln"
)

// ResultSummary is one entry of GET /api/v1/results.
type ResultSummary struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// CVESeverity is the placeholder classification attached to extracted CVEs.
type CVESeverity struct {
	Severity  string   `json:"severity"`
	Suggested []string `json:"suggested"`
}

// ExtractCVEsResponse is returned by GET /api/v1/extract-cves.
type ExtractCVEsResponse struct {
	CVEs        []string               `json:"cves"`
	Count       int                    `json:"count"`
	SeverityMap map[string]CVESeverity `json:"severity_map"`
}

// UploadResponse is returned by POST /api/v1/upload-json.
type UploadResponse struct {
	Path string   `json:"path"`
	CVEs []string `json:"cves"`
}

// ListResultsHandler handles GET /api/v1/results
//
// Response format:
//
//	[
//	  {"name": "nmap_scan_20250101T120000Z_a1b2c3.json", "path": "/abs/results/nmap_scan_..."}
//	]
func ListResultsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := deps.Results.List()
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		out := make([]ResultSummary, 0, len(entries))
		for _, e := range entries {
			out = append(out, ResultSummary{Name: e.Name, Path: e.Path})
		}
		api.WriteJSON(w, http.StatusOK, out)
	}
}

// GetResultFileHandler handles GET /api/v1/results/file?path=
//
// Returns the stored JSON document. Returns 404 when it does not exist and
// 400 for paths outside the results directory.
func GetResultFileHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := ParsePathQuery(r)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		doc, err := deps.Results.Read(path)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, doc)
	}
}

// ExtractCVEsHandler handles GET /api/v1/extract-cves?path=
//
// Scans a stored document for CVE identifiers. Every identifier gets an
// "Unknown" severity entry for the client to fill in.
func ExtractCVEsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := ParsePathQuery(r)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		doc, err := deps.Results.Read(path)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, extractResponse(doc))
	}
}

func extractResponse(doc any) ExtractCVEsResponse {
	cves := vuln.ExtractCVEs(doc)
	if cves == nil {
		cves = []string{}
	}
	sev := make(map[string]CVESeverity, len(cves))
	for _, id := range cves {
		sev[id] = CVESeverity{Severity: "Unknown", Suggested: []string{}}
	}
	return ExtractCVEsResponse{CVEs: cves, Count: len(cves), SeverityMap: sev}
}

// UploadJSONHandler handles POST /api/v1/upload-json
//
// Accepts a multipart form with a "file" field holding a JSON document.
// The document is stored under its file name stem and the CVEs it mentions
// are returned. Returns 400 for missing or malformed files and 413 when the
// upload exceeds the configured limit.
func UploadJSONHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := deps.Config.UploadLimit
		if limit <= 0 {
			limit = api.DefaultConfig().UploadLimit
		}
		if r.ContentLength > limit {
			api.WriteJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "UPLOAD_TOO_LARGE",
				"upload exceeds "+strconv.FormatInt(limit, 10)+" bytes")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)

		file, header, err := r.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				api.WriteJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "UPLOAD_TOO_LARGE", err.Error())
				return
			}
			api.WriteError(w, r, &api.ValidationError{Field: "file", Reason: "multipart file required"})
			return
		}
		defer file.Close()

		raw, err := io.ReadAll(file)
		if err != nil {
			api.WriteError(w, r, &api.ValidationError{Field: "file", Reason: err.Error()})
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			api.WriteError(w, r, &api.ValidationError{Field: "file", Reason: "not a JSON document: " + err.Error()})
			return
		}

		stem := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
		path, err := deps.Results.Save(stem, doc)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, UploadResponse{Path: path, CVEs: extractResponse(doc).CVEs})
	}
}
