package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Monitor outcomes.
const (
	MonitorFinished = "finished"
	MonitorError    = "error"
)

var (
	// monitorReconnect is the pause before reopening a dropped stream.
	monitorReconnect = time.Second
	// alertGrace keeps an alert alive past the collection window so that it
	// expires on its own when deletion fails.
	alertGrace = 60 * time.Second
)

// RealtimeMonitor opens a temporary network alert and collects the banners
// Shodan streams for it during a fixed window. The alert is deleted
// afterwards.
type RealtimeMonitor struct{}

// MonitorResult is the document produced by RealtimeMonitor.
type MonitorResult struct {
	Status string        `json:"status"`
	Data   []MonitorData `json:"data"`
}

// MonitorData summarises one monitoring window.
type MonitorData struct {
	Message         string         `json:"message"`
	AlertID         string         `json:"alert_id,omitempty"`
	Network         string         `json:"network,omitempty"`
	StartedAt       string         `json:"started_at,omitempty"`
	FinishedAt      string         `json:"finished_at,omitempty"`
	EventsCollected int            `json:"events_collected"`
	Events          []MonitorEvent `json:"events"`
}

// MonitorEvent is a streamed banner reduced to what the report shows.
type MonitorEvent struct {
	Timestamp string         `json:"timestamp"`
	IPStr     string         `json:"ip_str"`
	Port      int            `json:"port"`
	Module    string         `json:"module"`
	Data      []string       `json:"data"`
	Opts      map[string]any `json:"opts"`
}

func (RealtimeMonitor) Metadata() Metadata {
	return Metadata{
		Name: "realtime_monitor",
		Description: "Creates a temporary Shodan alert for an IP or network, collects the banners streamed " +
			"for it during the given duration and deletes the alert.",
		Params: []Param{
			{Name: "network", Label: "IP or network (CIDR)", Type: "text", Required: true, Placeholder: "198.51.100.0/24", Rule: "cidr|ip"},
			{Name: "name", Label: "Alert name", Type: "text", Placeholder: "ExposureMonitor"},
			{Name: "duration", Label: "Duration (seconds)", Type: "number", Placeholder: 300, Rule: "gt=0"},
		},
		Timeout:    15 * time.Minute,
		AcceptsLog: true,
	}
}

// Run collects until the duration elapses or ctx ends, whichever comes
// first, and reports what was gathered either way.
func (RealtimeMonitor) Run(ctx context.Context, env *Env, p Params) (any, error) {
	network := p.String("network")
	name := p.String("name")
	duration := time.Duration(p.Float("duration", 300) * float64(time.Second))
	api := env.shodanClient(p)
	log := env.logger()

	expires := int((duration + alertGrace).Seconds())
	alert, err := api.CreateAlert(ctx, name, network, expires)
	if err != nil {
		_ = env.Log.Printf("Alert creation failed: %v", err)
		return MonitorResult{
			Status: MonitorError,
			Data:   []MonitorData{{Message: err.Error(), Events: []MonitorEvent{}}},
		}, nil
	}
	started := env.now()
	_ = env.Log.Printf("Alert %s created for %s, monitoring for %s", alert.ID, network, duration)

	events := []MonitorEvent{}
	collect, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	for collect.Err() == nil {
		err := api.StreamAlert(collect, alert.ID, func(b map[string]any) error {
			evt := NormalizeEvent(b)
			events = append(events, evt)
			_ = env.Log.Printf("Event detected: %s:%d", evt.IPStr, evt.Port)
			return nil
		})
		if collect.Err() != nil {
			break
		}
		if err != nil {
			log.Debug().Err(err).Str("alert_id", alert.ID).Msg("Alert stream interrupted")
		}
		select {
		case <-collect.Done():
		case <-time.After(monitorReconnect):
		}
	}

	// The task context may already be done; deletion gets its own budget.
	delCtx, delCancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer delCancel()
	if err := api.DeleteAlert(delCtx, alert.ID); err != nil {
		log.Warn().Err(err).Str("alert_id", alert.ID).Msg("Alert deletion failed")
		_ = env.Log.Printf("Could not delete alert %s: %v", alert.ID, err)
	} else {
		_ = env.Log.Printf("Alert %s deleted", alert.ID)
	}

	_ = env.Log.Printf("Monitoring finished: %d events collected", len(events))
	return MonitorResult{
		Status: MonitorFinished,
		Data: []MonitorData{{
			Message:         "Monitoring finished",
			AlertID:         alert.ID,
			Network:         network,
			StartedAt:       timestamp(started),
			FinishedAt:      timestamp(env.now()),
			EventsCollected: len(events),
			Events:          events,
		}},
	}, nil
}

// NormalizeEvent reduces a streamed banner. Banner text is split into lines.
func NormalizeEvent(b map[string]any) MonitorEvent {
	module := ""
	if meta, ok := b["_shodan"].(map[string]any); ok {
		module = cast.ToString(meta["module"])
	}
	opts, _ := b["opts"].(map[string]any)
	if opts == nil {
		opts = map[string]any{}
	}
	return MonitorEvent{
		Timestamp: cast.ToString(b["timestamp"]),
		IPStr:     cast.ToString(b["ip_str"]),
		Port:      cast.ToInt(b["port"]),
		Module:    module,
		Data:      splitLines(cast.ToString(b["data"])),
		Opts:      opts,
	}
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
