// Package tasks exposes the runnable reconnaissance tasks behind a uniform
// contract: each task publishes metadata describing its parameters and runs
// with an environment carrying credentials and shared services.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

// DefaultTimeout applies to tasks that declare none.
const DefaultTimeout = 600 * time.Second

// ErrUnknownTask is returned for names missing from the registry.
var ErrUnknownTask = errors.New("unknown task")

// Param describes one task parameter.
type Param struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required"`
	Placeholder any    `json:"placeholder,omitempty"`
	Help        string `json:"help,omitempty"`
	// Rule is a validator tag checked against the resolved value.
	Rule string `json:"-"`
}

// Metadata describes a task.
type Metadata struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Params      []Param       `json:"params"`
	Timeout     time.Duration `json:"-"`
	AcceptsLog  bool          `json:"accepts_log"`
}

// Task is a runnable unit.
type Task interface {
	Metadata() Metadata
	Run(ctx context.Context, env *Env, params Params) (any, error)
}

// ParamError reports a rejected parameter.
type ParamError struct {
	Name   string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Name, e.Reason)
}

// Params holds raw parameter values keyed by name.
type Params map[string]any

// String returns the trimmed string value of name.
func (p Params) String(name string) string {
	return strings.TrimSpace(cast.ToString(p[name]))
}

// Int returns name as an int, or def when absent or malformed.
func (p Params) Int(name string, def int) int {
	v, ok := p[name]
	if !ok || v == nil {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

// Float returns name as a float64, or def when absent or malformed.
func (p Params) Float(name string, def float64) float64 {
	v, ok := p[name]
	if !ok || v == nil {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

var validate = validator.New()

// Resolve applies the parameter schema of meta to raw. Blank strings count as
// absent; absent optional parameters take their placeholder as default.
// Parameters unknown to the schema are passed through untouched.
func Resolve(meta Metadata, raw Params) (Params, error) {
	out := make(Params, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	for _, p := range meta.Params {
		v, ok := out[p.Name]
		if s, isStr := v.(string); isStr {
			s = strings.TrimSpace(s)
			if s == "" {
				ok = false
			} else {
				v = s
			}
		}
		if !ok || v == nil {
			if p.Required {
				return nil, &ParamError{Name: p.Name, Reason: "missing required parameter"}
			}
			delete(out, p.Name)
			if p.Placeholder != nil {
				out[p.Name] = p.Placeholder
			}
			continue
		}
		if p.Type == "number" {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				return nil, &ParamError{Name: p.Name, Reason: "must be a number"}
			}
			v = f
		}
		if p.Rule != "" {
			if err := validate.Var(v, p.Rule); err != nil {
				return nil, &ParamError{Name: p.Name, Reason: "failed rule " + p.Rule}
			}
		}
		out[p.Name] = v
	}
	return out, nil
}

// Registry holds tasks by name.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Register adds t, replacing any task of the same name.
func (r *Registry) Register(t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.Metadata().Name] = t
}

// Get returns the task called name.
func (r *Registry) Get(name string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return t, nil
}

// List returns task metadata sorted by name.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.Metadata())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SchemaEntry is the public description of a task.
type SchemaEntry struct {
	Description string  `json:"description"`
	Params      []Param `json:"params"`
	TimeoutSec  int     `json:"timeout"`
	AcceptsLog  bool    `json:"accepts_log"`
}

// Schema maps task names to their descriptions.
func (r *Registry) Schema() map[string]SchemaEntry {
	out := make(map[string]SchemaEntry)
	for _, m := range r.List() {
		params := m.Params
		if params == nil {
			params = []Param{}
		}
		out[m.Name] = SchemaEntry{
			Description: m.Description,
			Params:      params,
			TimeoutSec:  int(TimeoutOf(m).Seconds()),
			AcceptsLog:  m.AcceptsLog,
		}
	}
	return out
}

// TimeoutOf returns the run ceiling for a task.
func TimeoutOf(m Metadata) time.Duration {
	if m.Timeout > 0 {
		return m.Timeout
	}
	return DefaultTimeout
}

// Run resolves params and runs the task called name under its timeout.
func (r *Registry) Run(ctx context.Context, name string, env *Env, raw Params) (any, error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if env == nil {
		env = &Env{}
	}
	meta := t.Metadata()
	params, err := Resolve(meta, raw)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, TimeoutOf(meta))
	defer cancel()

	env.logger().Info().Str("task", name).Msg("Task started")
	_ = env.Log.Printf("Task %s started", name)

	data, err := t.Run(ctx, env, params)
	if err != nil {
		env.logger().Error().Err(err).Str("task", name).Msg("Task failed")
		_ = env.Log.Printf("Task %s failed: %v", name, err)
		return nil, err
	}
	env.logger().Info().Str("task", name).Msg("Task finished")
	_ = env.Log.Printf("Task %s finished", name)
	return data, nil
}

// Default returns a registry with every built-in task.
func Default() *Registry {
	r := NewRegistry()
	r.Register(ActiveScan{})
	r.Register(ClassifyOWASP{})
	r.Register(NmapScan{})
	r.Register(HostLookup{})
	r.Register(GlobalExposure{})
	r.Register(ShodanEnum{})
	r.Register(RealtimeMonitor{})
	return r
}
