package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher forwards change-set events to other server instances.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

func ConnectNATS(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("kindred"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if prefix == "" {
		prefix = "kindred"
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, room string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.conn.Publish(Subject(p.prefix, room, ev.Type), data)
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Subject maps a room and event type onto a NATS subject, e.g.
// "kindred.family.f1.edge.created" or "kindred.global.node.upsert".
func Subject(prefix, room, eventType string) string {
	scope := "global"
	if id, ok := strings.CutPrefix(room, "family:"); ok && id != "" {
		scope = "family." + sanitizeToken(id)
	}
	return prefix + "." + scope + "." + strings.ReplaceAll(eventType, ":", ".")
}

func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
