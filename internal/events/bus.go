package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"pmtrack/internal/models"
)

const (
	AuditStream        = "PMTRACK_AUDIT"
	AuditSubjectPrefix = "pmtrack.audit."

	auditRetention = 90 * 24 * time.Hour
	dedupeWindow   = 2 * time.Minute
)

type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Bus mirrors stored audit rows onto the PMTRACK_AUDIT JetStream stream.
type Bus struct {
	conn *nats.Conn
	js   jetStream
}

// Connect dials NATS and makes sure the audit stream exists.
func Connect(url string, log zerolog.Logger) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.Name("pmtrack"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureAuditStream(js); err != nil {
		nc.Close()
		return nil, err
	}

	return &Bus{conn: nc, js: js}, nil
}

func ensureAuditStream(js nats.JetStreamContext) error {
	_, err := js.StreamInfo(AuditStream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("audit stream info: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:       AuditStream,
		Subjects:   []string{AuditSubjectPrefix + ">"},
		Storage:    nats.FileStorage,
		MaxAge:     auditRetention,
		Duplicates: dedupeWindow,
	})
	if err != nil {
		return fmt.Errorf("create audit stream: %w", err)
	}
	return nil
}

// Close drains pending publishes before closing the connection.
func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// PublishAudit sends row to pmtrack.audit.<entity_type>. The row id is the
// message id, so a repeated publish inside the dedupe window is stored once.
func (b *Bus) PublishAudit(ctx context.Context, row models.AuditLog) error {
	if b == nil {
		return errors.New("nil bus")
	}

	data, err := json.Marshal(NewAuditMessage(row))
	if err != nil {
		return fmt.Errorf("encode audit message: %w", err)
	}

	_, err = b.js.Publish(AuditSubject(row.EntityType), data,
		nats.Context(ctx),
		nats.MsgId(strconv.FormatUint(uint64(row.ID), 10)),
	)
	return err
}
