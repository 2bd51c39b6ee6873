package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/exposure/cmd/exposure/internal/format"
	"github.com/vulntor/exposure/pkg/appctx"
	"github.com/vulntor/exposure/pkg/results"
	"github.com/vulntor/exposure/pkg/server"
	"github.com/vulntor/exposure/pkg/shodan"
	"github.com/vulntor/exposure/pkg/tasks"
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var pe *tasks.ParamError
	if errors.As(err, &pe) || errors.Is(err, shodan.ErrMissingKey) {
		return 2
	}
	return server.ExitCode(err)
}

// PrintError writes err unless the command already did.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil || errors.Is(err, format.ErrReported) {
		return
	}
	_ = format.FromCommand(cmd).PrintError(err)
}

// taskErrorCode picks the suggestion code for a failed task.
func taskErrorCode(err error) string {
	var pe *tasks.ParamError
	switch {
	case errors.As(err, &pe):
		return format.CodeInvalidParameter
	case errors.Is(err, shodan.ErrMissingKey):
		return format.CodeMissingAPIKey
	case errors.Is(err, context.DeadlineExceeded):
		return format.CodeTimeout
	case results.IsInvalidInput(err), results.IsNotFound(err), errors.Is(err, os.ErrNotExist):
		return format.CodeInvalidInput
	default:
		return server.ErrorCode(err)
	}
}

// taskRun describes one invocation of a registered task.
type taskRun struct {
	// Operation names the run in summaries, e.g. "scan".
	Operation string
	Task      string
	Params    tasks.Params
	// Out overrides the timestamped output path.
	Out string
	// LogPath overrides the default append log for tasks that keep one.
	LogPath string
}

// runTask executes run, saves its output document and returns the output
// with the path it was written to. Failures are printed before returning.
func runTask(cmd *cobra.Command, run taskRun) (any, string, error) {
	f := format.FromCommand(cmd)
	fail := func(err error) (any, string, error) {
		_ = f.PrintTotalFailureSummary(run.Operation, err, taskErrorCode(err))
		return nil, "", format.Reported(err)
	}

	ctx := cmd.Context()
	mgr, ok := appctx.Config(ctx)
	if !ok {
		return fail(server.ErrConfigUnavailable)
	}
	store, ok := appctx.Store(ctx)
	if !ok {
		return fail(server.ErrConfigUnavailable)
	}

	registry := tasks.Default()
	t, err := registry.Get(run.Task)
	if err != nil {
		return fail(err)
	}

	env := mgr.Get().TaskEnv()
	logPath := run.LogPath
	if logPath == "" && t.Metadata().AcceptsLog {
		logPath = store.LogPath(run.Task)
	}
	if logPath != "" {
		appLog, err := results.OpenAppendLog(logPath)
		if err != nil {
			return fail(err)
		}
		env.Log = appLog
	}

	data, err := registry.Run(ctx, run.Task, env, run.Params)
	if err != nil {
		return fail(err)
	}

	out := run.Out
	if out == "" {
		out = store.OutputPath(run.Task)
	}
	if err := results.WriteJSON(out, data); err != nil {
		return fail(fmt.Errorf("save results: %w", err))
	}
	log.Debug().Str("task", run.Task).Str("path", out).Msg("results saved")
	return data, out, nil
}

// finish prints the document in JSON mode and the success line.
func finish(f format.Formatter, operation string, data any, out string) error {
	if f.Mode() == format.ModeJSON {
		if err := f.PrintJSON(data); err != nil {
			return err
		}
	}
	return f.PrintSuccessSummary(operation, out)
}
