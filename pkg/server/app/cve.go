package app

import (
	"context"
	"sync/atomic"

	"github.com/vulntor/exposure/pkg/config"
	"github.com/vulntor/exposure/pkg/nvd"
)

// cveService serves single-CVE lookups through an NVD client that is
// replaced when the configuration changes. The client's detail cache lives
// as long as the client.
type cveService struct {
	client atomic.Pointer[nvd.Client]
}

func newCVEService(cfg config.Config) *cveService {
	s := &cveService{}
	s.reconfigure(cfg)
	return s
}

func (s *cveService) reconfigure(cfg config.Config) {
	s.client.Store(nvd.New(cfg.NVD()))
}

func (s *cveService) Get(ctx context.Context, cveID string) (*nvd.CVEDetail, error) {
	return s.client.Load().Get(ctx, cveID)
}
