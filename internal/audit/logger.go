// Package audit records one append-only row per mutating action.
//
// Logging is fire-and-forget: Logger.Log has no return value and every failure
// is reported to the operator log and a counter, then dropped. This is the only
// place in pmtrack where errors are discarded on purpose.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"pmtrack/internal/models"
	"pmtrack/internal/telemetry"
)

var (
	ErrInvalidEvent = errors.New("invalid audit event")
	errEncode       = errors.New("encode details")
	errStore        = errors.New("store audit log")
)

const (
	maxUserAgent   = 255
	publishTimeout = 2 * time.Second
)

// RequestMeta is the request context worth keeping with an event.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type Event struct {
	ActorID    uint
	Action     Action
	EntityType EntityType
	EntityID   *uint
	EntityName *string
	Details    map[string]any
	Request    *RequestMeta
}

// Store persists audit rows. Implementations must write on their own unit of
// work, never inside a caller's transaction.
type Store interface {
	InsertAuditLog(ctx context.Context, row *models.AuditLog) error
}

// Publisher fans stored events out to other consumers.
type Publisher interface {
	PublishAudit(ctx context.Context, row models.AuditLog) error
}

type Logger struct {
	store     Store
	publisher Publisher
	metrics   *telemetry.Metrics
	log       zerolog.Logger
}

type Option func(*Logger)

func WithPublisher(p Publisher) Option {
	return func(l *Logger) { l.publisher = p }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

func NewLogger(store Store, logger zerolog.Logger, opts ...Option) *Logger {
	l := &Logger{
		store: store,
		log:   logger.With().Str("component", "audit").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = telemetry.NewMetrics()
	}
	return l
}

// Log records ev. Call it only after the business write has committed.
// It never panics and never reports failure to the caller.
func (l *Logger) Log(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.fail(ev, "panic", fmt.Errorf("panic: %v", r))
		}
	}()

	if err := l.write(ctx, ev); err != nil {
		l.fail(ev, failureReason(err), err)
	}
}

// LogBatch records each event independently; one failure does not stop the rest.
func (l *Logger) LogBatch(ctx context.Context, events []Event) {
	for _, ev := range events {
		l.Log(ctx, ev)
	}
}

func (l *Logger) fail(ev Event, reason string, err error) {
	l.metrics.AuditWriteFailures.WithLabelValues(reason).Inc()
	l.log.Error().
		Err(err).
		Uint("actor_id", ev.ActorID).
		Str("action", string(ev.Action)).
		Str("entity_type", string(ev.EntityType)).
		Msg("audit event dropped")
}

func (l *Logger) write(ctx context.Context, ev Event) error {
	if ev.ActorID == 0 {
		return fmt.Errorf("%w: missing actor", ErrInvalidEvent)
	}
	if !ev.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, ev.Action)
	}
	if !ev.EntityType.Valid() {
		return fmt.Errorf("%w: unknown entity type %q", ErrInvalidEvent, ev.EntityType)
	}

	row := models.AuditLog{
		UserID:     ev.ActorID,
		Action:     string(ev.Action),
		EntityType: string(ev.EntityType),
		EntityID:   ev.EntityID,
		EntityName: ev.EntityName,
	}

	if ev.Details != nil {
		raw, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("%w: %w", errEncode, err)
		}
		row.Details = raw
	}

	if ev.Request != nil {
		if ev.Request.IP != "" {
			ip := ev.Request.IP
			row.IPAddress = &ip
		}
		if ev.Request.UserAgent != "" {
			ua := truncateUTF8(ev.Request.UserAgent, maxUserAgent)
			row.UserAgent = &ua
		}
	}

	// the business request may be finished (or cancelled) by the time we get
	// here; the audit write still has to go through
	ctx = context.WithoutCancel(ctx)

	if err := l.store.InsertAuditLog(ctx, &row); err != nil {
		return fmt.Errorf("%w: %w", errStore, err)
	}
	l.metrics.AuditEvents.WithLabelValues(row.Action).Inc()

	if l.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := l.publisher.PublishAudit(pubCtx, row); err != nil {
			l.metrics.AuditWriteFailures.WithLabelValues("publish").Inc()
			l.log.Warn().Err(err).Uint("audit_id", row.ID).Msg("publish audit event")
		}
	}
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidEvent):
		return "invalid"
	case errors.Is(err, errEncode):
		return "encode"
	case errors.Is(err, errStore):
		return "store"
	default:
		return "unknown"
	}
}

// DecodeDetails returns the details payload of a stored row. A row written
// without details yields a nil map.
func DecodeDetails(row models.AuditLog) (map[string]any, error) {
	if len(row.Details) == 0 || string(row.Details) == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(row.Details, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
