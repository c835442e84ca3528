// Package notify publishes a JSON summary of every generator run so IDE
// integrations and CI dashboards can react to project set changes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	perrors "git.home.luguber.info/inful/projgen/internal/errors"
	"git.home.luguber.info/inful/projgen/internal/logfields"
)

// RunEvent is the message published after a run.
type RunEvent struct {
	RunID         string     `json:"run_id"`
	Timestamp     time.Time  `json:"timestamp"`
	Solution      string     `json:"solution"`
	Platform      string     `json:"platform"`
	Configuration string     `json:"configuration"`
	Outcome       string     `json:"outcome"`
	DurationMS    int64      `json:"duration_ms"`
	Projects      int        `json:"projects"`
	Enabled       int        `json:"enabled"`
	Rewritten     int        `json:"rewritten"`
	Excluded      []Excluded `json:"excluded,omitempty"`
	NewlyExcluded []string   `json:"newly_excluded,omitempty"`
	Cycles        []string   `json:"cycles,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Excluded is one exclusion in a RunEvent.
type Excluded struct {
	Project string `json:"project"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

// Publisher delivers run events.
type Publisher interface {
	Publish(ctx context.Context, ev RunEvent) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, RunEvent) error { return nil }
func (Noop) Close() error { return nil }

// NATSPublisher publishes events on a core NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to url. The connection reconnects on its own;
// an unreachable server at startup is an error.
func NewNATSPublisher(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("projgen"),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, perrors.NotifyFailed(subject, fmt.Errorf("connect %s: %w", url, err))
	}
	logger.Info("NATS publisher connected", logfields.URL(url), slog.String("subject", subject))
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}, nil
}

// Publish sends ev and waits for the server to acknowledge the flush.
func (p *NATSPublisher) Publish(ctx context.Context, ev RunEvent) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return perrors.NotifyFailed(p.subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return perrors.NotifyFailed(p.subject, fmt.Errorf("flush: %w", err))
	}
	p.logger.Debug("Published run event", logfields.RunID(ev.RunID), slog.String("subject", p.subject))
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// Encode marshals ev to JSON.
func Encode(ev RunEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal run event: %w", err)
	}
	return data, nil
}
