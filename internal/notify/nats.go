package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/companiond/internal/milestone"
)

// DefaultSubjectPrefix is where milestones are published.
const DefaultSubjectPrefix = "companion.milestones"

// DefaultFlushTimeout bounds the flush when the caller's context has no
// deadline.
const DefaultFlushTimeout = 2 * time.Second

// NATS publishes each milestone as JSON to <prefix>.<companion id>.
type NATS struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials url with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("companiond"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NewNATS returns a NATS sink on nc.
func NewNATS(nc *nats.Conn, prefix string) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATS{nc: nc, prefix: strings.TrimSuffix(prefix, ".")}
}

// Subject returns the subject milestones of companionID go to.
func (n *NATS) Subject(companionID string) string {
	return n.prefix + "." + subjectToken(companionID)
}

// Notify implements Sink.
func (n *NATS) Notify(ctx context.Context, ms []milestone.Milestone) error {
	for _, m := range ms {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal milestone: %w", err)
		}
		if err := n.nc.Publish(n.Subject(m.CompanionID), data); err != nil {
			return fmt.Errorf("publish milestone %s: %w", m.ID, err)
		}
	}
	// FlushWithContext refuses contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultFlushTimeout)
		defer cancel()
	}
	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush milestones: %w", err)
	}
	return nil
}

// subjectToken makes id safe to use as a single subject token.
func subjectToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, id)
}
