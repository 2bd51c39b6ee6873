package tasks

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/exposure/pkg/nmap"
	"github.com/vulntor/exposure/pkg/nvd"
	"github.com/vulntor/exposure/pkg/pipeline"
	"github.com/vulntor/exposure/pkg/results"
	"github.com/vulntor/exposure/pkg/shodan"
	"github.com/vulntor/exposure/pkg/vulners"
)

// Keys are the upstream API credentials.
type Keys struct {
	Shodan  string
	NVD     string
	Vulners string
}

// Env carries what tasks need from the host process. Credentials are
// explicit here; tasks never read them from the process environment.
type Env struct {
	Keys    Keys
	NVD     nvd.Config
	Vulners vulners.Config
	Shodan  shodan.Config
	// Workers bounds concurrent record analyses per pipeline run.
	Workers int

	Runner *nmap.Runner
	Prober nmap.Prober

	// Store, when set, confines input files to the results directory.
	Store *results.Store
	Log   *results.AppendLog

	Now    func() time.Time
	Logger *zerolog.Logger
}

func (e *Env) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) logger() *zerolog.Logger {
	if e != nil && e.Logger != nil {
		return e.Logger
	}
	l := log.With().Str("component", "tasks").Logger()
	return &l
}

// timestamp formats t as an ISO-8601 UTC instant with a Z suffix.
func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// shodanClient builds a client; an api_key parameter overrides the
// configured key.
func (e *Env) shodanClient(p Params) *shodan.Client {
	cfg := e.Shodan
	cfg.APIKey = e.Keys.Shodan
	if k := p.String("api_key"); k != "" {
		cfg.APIKey = k
	}
	return shodan.New(cfg)
}

// orchestrator builds a fresh pipeline; nvd_api_key and vulners_api_key
// parameters override configured keys.
func (e *Env) orchestrator(p Params) *pipeline.Orchestrator {
	s := pipeline.Settings{NVD: e.NVD, Vulners: e.Vulners, Workers: e.Workers}
	s.NVD.APIKey = e.Keys.NVD
	if k := p.String("nvd_api_key"); k != "" {
		s.NVD.APIKey = k
	}
	s.Vulners.APIKey = e.Keys.Vulners
	if k := p.String("vulners_api_key"); k != "" {
		s.Vulners.APIKey = k
	}
	if n := p.Int("max_workers", 0); n > 0 {
		s.Workers = n
	}
	return pipeline.New(s)
}

func (e *Env) runner() *nmap.Runner {
	if e.Runner != nil {
		return e.Runner
	}
	return nmap.NewRunner()
}

func (e *Env) prober() nmap.Prober {
	if e.Prober != nil {
		return e.Prober
	}
	return nmap.AlwaysAlive{}
}

// openInput opens an input document, honouring the store restriction.
func (e *Env) openInput(path string) (*os.File, error) {
	if e.Store != nil {
		resolved, err := e.Store.Resolve(path)
		if err != nil {
			return nil, err
		}
		path = resolved
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &results.NotFoundError{Path: path}
		}
		return nil, err
	}
	return f, nil
}
