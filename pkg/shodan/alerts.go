package shodan

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/vulntor/exposure/pkg/version"
)

// maxStreamLine bounds one streamed banner.
const maxStreamLine = 4 << 20

// Alert is a network alert.
type Alert struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Created string         `json:"created"`
	Expires int            `json:"expires"`
	Filters map[string]any `json:"filters"`
}

// CreateAlert registers an alert called name watching network (an IP or
// CIDR). expires is a lifetime in seconds; 0 keeps the alert until deleted.
func (c *Client) CreateAlert(ctx context.Context, name, network string, expires int) (*Alert, error) {
	body, err := jsonPayload(map[string]any{
		"name":    name,
		"filters": map[string]any{"ip": []string{network}},
		"expires": expires,
	})
	if err != nil {
		return nil, err
	}
	var out Alert
	if err := c.do(ctx, http.MethodPost, "/shodan/alert", nil, body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("create alert: response carries no id")
	}
	return &out, nil
}

// Alerts lists the network alerts of the account.
func (c *Client) Alerts(ctx context.Context) ([]map[string]any, error) {
	var out []map[string]any
	if err := c.do(ctx, http.MethodGet, "/shodan/alert/info", nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out, nil
}

// DeleteAlert removes alert id.
func (c *Client) DeleteAlert(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/shodan/alert/"+url.PathEscape(id), nil, nil, nil)
}

// StreamAlert follows the banner stream of alert id and calls fn for every
// banner until the stream ends, fn fails or ctx is done. The stream is not
// retried; the end of ctx is reported as ctx.Err().
func (c *Client) StreamAlert(ctx context.Context, id string, fn func(banner map[string]any) error) error {
	if c.cfg.APIKey == "" {
		return ErrMissingKey
	}
	endpoint := c.endpoint(c.cfg.StreamURL, "/shodan/alert/"+url.PathEscape(id), nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", redactURL(err))
	}
	req.Header.Set("User-Agent", version.UserAgent())

	// Streams stay open for as long as ctx allows, so no client timeout.
	hc := &http.Client{Transport: c.http.Transport}
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("open alert stream: %w", redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), maxStreamLine)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var banner map[string]any
		if err := json.Unmarshal(line, &banner); err != nil {
			c.logger.Debug().Err(err).Str("alert_id", id).Msg("Skipping undecodable stream line")
			continue
		}
		if err := fn(banner); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read alert stream: %w", err)
	}
	return nil
}
