package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vulntor/exposure/pkg/results"
	"github.com/vulntor/exposure/pkg/server/api"
	"github.com/vulntor/exposure/pkg/server/jobs"
	"github.com/vulntor/exposure/pkg/tasks"
)

// Run statuses reported to clients.
const (
	RunFinished = "finished"
	RunError    = "error"
)

// RunResponse is the outcome of a task run.
type RunResponse struct {
	Status    string `json:"status"`
	OutPath   string `json:"out_path,omitempty"`
	LogPath   string `json:"log_path,omitempty"`
	Data      any    `json:"data,omitempty"`
	ErrorFile string `json:"error_file,omitempty"`
	Message   string `json:"message,omitempty"`
}

// runMeta is saved next to every finished run.
type runMeta struct {
	Task       string       `json:"task"`
	Params     tasks.Params `json:"params"`
	OutPath    string       `json:"out_path"`
	LogPath    string       `json:"log_path,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	DurationMS int64        `json:"duration_ms"`
}

// runError is saved when a run fails.
type runError struct {
	Task       string       `json:"task"`
	Params     tasks.Params `json:"params"`
	Error      string       `json:"error"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// redact drops credentials from params before they are written to disk.
func redact(p tasks.Params) tasks.Params {
	out := make(tasks.Params, len(p))
	for k, v := range p {
		if k == "api_key" || strings.HasSuffix(k, "_api_key") {
			continue
		}
		out[k] = v
	}
	return out
}

// executeTask runs name and records its output, metadata and failures in
// the results store. The returned error is non-nil only when the request
// itself is rejected (unknown task, bad parameters) or nothing could be
// written; task failures are reported in the response.
func executeTask(ctx context.Context, deps *api.Deps, name string, params tasks.Params) (*RunResponse, error) {
	task, err := deps.Tasks.Get(name)
	if err != nil {
		return nil, err
	}
	meta := task.Metadata()
	if _, err := tasks.Resolve(meta, params); err != nil {
		return nil, err
	}

	env := deps.TaskEnv()
	outPath := deps.Results.OutputPath(name)
	var logPath string
	if meta.AcceptsLog {
		logPath = deps.Results.LogPath(name)
		applog, err := results.OpenAppendLog(logPath)
		if err != nil {
			return nil, err
		}
		env.Log = applog
	}

	logger := log.With().Str("component", "api").Str("task", name).Logger()
	started := time.Now().UTC()
	data, runErr := deps.Tasks.Run(ctx, name, env, params)
	finished := time.Now().UTC()

	if runErr != nil {
		errFile, err := deps.Results.Save("error_"+name, runError{
			Task:       name,
			Params:     redact(params),
			Error:      runErr.Error(),
			StartedAt:  started,
			FinishedAt: finished,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to save error document")
		}
		return &RunResponse{
			Status:    RunError,
			LogPath:   logPath,
			ErrorFile: errFile,
			Message:   runErr.Error(),
		}, nil
	}

	if err := results.WriteJSON(outPath, data); err != nil {
		return nil, err
	}
	if _, err := deps.Results.Save("meta_"+name, runMeta{
		Task:       name,
		Params:     redact(params),
		OutPath:    outPath,
		LogPath:    logPath,
		StartedAt:  started,
		FinishedAt: finished,
		DurationMS: finished.Sub(started).Milliseconds(),
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to save run metadata")
	}

	logger.Info().Str("out_path", outPath).Dur("duration", finished.Sub(started)).Msg("Task run saved")
	return &RunResponse{
		Status:  RunFinished,
		OutPath: outPath,
		LogPath: logPath,
		Data:    data,
	}, nil
}

// TasksSchemaHandler handles GET /api/v1/tasks/schema
//
// Response format:
//
//	{
//	  "host_lookup": {"description": "...", "params": [{"name": "ip", "required": true, ...}], ...}
//	}
func TasksSchemaHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, deps.Tasks.Schema())
	}
}

// RunTaskHandler handles POST /api/v1/run/{name}
//
// Runs the task synchronously under its own timeout. The request body is
// {"params": {...}}.
//
// Returns 200 with {status: "finished", out_path, log_path, data} on success,
// 500 with {status: "error", error_file, message} when the task fails, and
// 400 for unknown tasks or rejected parameters.
func RunTaskHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, params, err := ParseRunRequest(r)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		resp, err := executeTask(r.Context(), deps, name, params)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		status := http.StatusOK
		if resp.Status == RunError {
			status = http.StatusInternalServerError
		}
		api.WriteJSON(w, status, resp)
	}
}

// SubmitJobHandler handles POST /api/v1/jobs/{name}
//
// Validates the request like RunTaskHandler, then queues the run and
// returns 202 with {"id": "..."}. Returns 503 when the queue is full.
func SubmitJobHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, params, err := ParseRunRequest(r)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		task, err := deps.Tasks.Get(name)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		if _, err := tasks.Resolve(task.Metadata(), params); err != nil {
			api.WriteError(w, r, err)
			return
		}

		id, err := deps.Jobs.Submit(jobs.Job{
			Type: name,
			Run: func(ctx context.Context) (any, error) {
				resp, err := executeTask(ctx, deps, name, params)
				if err != nil {
					return nil, err
				}
				if resp.Status == RunError {
					return resp, &jobFailure{message: resp.Message}
				}
				return resp, nil
			},
		})
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		w.Header().Set("Location", "/api/v1/jobs/"+id)
		api.WriteJSON(w, http.StatusAccepted, map[string]string{"id": id})
	}
}

type jobFailure struct{ message string }

func (e *jobFailure) Error() string { return e.message }

// GetJobHandler handles GET /api/v1/jobs/{id}
//
// Returns the job record, including the run response once it has finished.
// Returns 404 for unknown ids.
func GetJobHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		rec, ok := deps.Jobs.Get(id)
		if !ok {
			api.WriteJSONError(w, http.StatusNotFound, "Not Found", "NOT_FOUND", "job not found: "+id)
			return
		}
		api.WriteJSON(w, http.StatusOK, rec)
	}
}
