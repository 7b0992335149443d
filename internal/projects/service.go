// Package projects holds the project lifecycle: creation with code
// assignment, updates, status changes and deletion, each followed by an
// audit event once the write has succeeded.
package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"pmtrack/internal/audit"
	"pmtrack/internal/database"
	"pmtrack/internal/models"
	"pmtrack/internal/projectcode"
	"pmtrack/internal/telemetry"
)

var (
	// ErrCodeConflict means two attempts in a row lost the race for a code.
	ErrCodeConflict           = errors.New("project code is already taken, please retry")
	ErrProjectNotFound        = errors.New("project not found")
	ErrStatusChangeNotAllowed = errors.New("status change not allowed for this role")
)

var tracer = otel.Tracer("pmtrack/projects")

type Store interface {
	Insert(ctx context.Context, p *models.Project) error
	Get(ctx context.Context, id uint) (*models.Project, error)
	Save(ctx context.Context, p *models.Project) error
	SoftDelete(ctx context.Context, id uint) error
}

type CodeGenerator interface {
	Next(ctx context.Context, label string) (string, error)
	Preview(ctx context.Context, label string) (string, error)
}

type AuditLogger interface {
	Log(ctx context.Context, ev audit.Event)
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   uint
	Role models.UserRole
}

type Deps struct {
	Store   Store
	Codes   CodeGenerator
	Audit   AuditLogger
	Metrics *telemetry.Metrics
	Clock   projectcode.Clock
	Log     zerolog.Logger
}

type Service struct {
	store   Store
	codes   CodeGenerator
	audit   AuditLogger
	metrics *telemetry.Metrics
	clock   projectcode.Clock
	log     zerolog.Logger
}

func NewService(d Deps) *Service {
	if d.Metrics == nil {
		d.Metrics = telemetry.NewMetrics()
	}
	if d.Clock == nil {
		d.Clock = projectcode.SystemClock
	}
	return &Service{
		store:   d.Store,
		codes:   d.Codes,
		audit:   d.Audit,
		metrics: d.Metrics,
		clock:   d.Clock,
		log:     d.Log.With().Str("component", "projects").Logger(),
	}
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Project, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("load project %d: %w", id, err)
	}
	return p, nil
}

// PreviewCode returns the code a project of type label would get right now.
func (s *Service) PreviewCode(ctx context.Context, label string) (string, error) {
	return s.codes.Preview(ctx, label)
}

func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput, meta *audit.RequestMeta) (*models.Project, error) {
	ctx, span := tracer.Start(ctx, "projects.Create")
	defer span.End()

	p := &models.Project{
		Name:           strings.TrimSpace(in.Name),
		Client:         strings.TrimSpace(in.Client),
		Type:           models.ProjectType(strings.TrimSpace(in.Type)),
		Status:         models.StatusPlanning,
		Description:    strings.TrimSpace(in.Description),
		Goal:           in.Goal,
		Approach:       in.Approach,
		Resource:       in.Resource,
		Feedback:       in.Feedback,
		PlannedRevenue: in.PlannedRevenue,
		PlannedExpense: in.PlannedExpense,
		PlannedStart:   in.PlannedStart,
		PlannedEnd:     in.PlannedEnd,
		CreatedByID:    actor.ID,
		UpdatedByID:    actor.ID,
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	if err := s.insertWithCode(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("project.code", p.Code), attribute.Int("project.id", int(p.ID)))

	s.audit.Log(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     audit.ActionProjectCreate,
		EntityType: audit.EntityProject,
		EntityID:   &p.ID,
		EntityName: entityName(p),
		Details: map[string]any{
			"code":   p.Code,
			"name":   p.Name,
			"type":   string(p.Type),
			"status": string(p.Status),
		},
		Request: meta,
	})
	return p, nil
}

// insertWithCode assigns a fresh code and inserts p. A duplicate code is
// retried exactly once with a recomputed code.
func (s *Service) insertWithCode(ctx context.Context, p *models.Project) error {
	for attempt := 1; attempt <= 2; attempt++ {
		code, err := s.codes.Next(ctx, string(p.Type))
		if err != nil {
			return fmt.Errorf("generate project code: %w", err)
		}
		p.ID = 0
		p.Code = code

		err = s.store.Insert(ctx, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, database.ErrDuplicateCode) {
			return fmt.Errorf("insert project: %w", err)
		}
		if attempt == 1 {
			s.metrics.CodeRetries.Inc()
			s.log.Warn().Str("code", code).Msg("project code taken, retrying")
		}
	}

	s.metrics.CodeConflicts.Inc()
	s.log.Warn().Str("type", string(p.Type)).Msg("project code conflict after retry")
	return ErrCodeConflict
}

func (s *Service) Update(ctx context.Context, actor Actor, id uint, in UpdateInput, meta *audit.RequestMeta) (*models.Project, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before := snapshot(p)
	in.apply(p)
	if err := validate(p); err != nil {
		return nil, err
	}

	changes := audit.Diff(before, snapshot(p))
	if len(changes) == 0 {
		return p, nil
	}

	p.UpdatedByID = actor.ID
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     audit.ActionProjectUpdate,
		EntityType: audit.EntityProject,
		EntityID:   &p.ID,
		EntityName: entityName(p),
		Details:    map[string]any{"code": p.Code, "changes": changes},
		Request:    meta,
	})
	return p, nil
}

func (s *Service) ChangeStatus(ctx context.Context, actor Actor, id uint, next models.ProjectStatus, meta *audit.RequestMeta) (*models.Project, error) {
	if !next.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("unknown status %q", next))
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == next {
		return nil, models.NewValidationError("project is already " + string(next))
	}
	if !CanChangeStatus(actor.Role, p.Status, next) {
		return nil, ErrStatusChangeNotAllowed
	}

	from := p.Status
	now := s.clock.Now()
	switch next {
	case models.StatusInProgress:
		if p.ActualStart == nil {
			p.ActualStart = &now
		}
	case models.StatusCompleted:
		p.ActualEnd = &now
		p.Progress = 100
	}
	p.Status = next
	p.UpdatedByID = actor.ID

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     audit.ActionProjectStatusChange,
		EntityType: audit.EntityProject,
		EntityID:   &p.ID,
		EntityName: entityName(p),
		Details:    map[string]any{"code": p.Code, "from": string(from), "to": string(next)},
		Request:    meta,
	})
	return p, nil
}

// Delete soft-deletes the project. Its code is never handed out again.
func (s *Service) Delete(ctx context.Context, actor Actor, id uint, meta *audit.RequestMeta) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("delete project %d: %w", id, err)
	}

	s.audit.Log(ctx, audit.Event{
		ActorID:    actor.ID,
		Action:     audit.ActionProjectDelete,
		EntityType: audit.EntityProject,
		EntityID:   &p.ID,
		EntityName: entityName(p),
		Details:    map[string]any{"code": p.Code, "name": p.Name},
		Request:    meta,
	})
	return nil
}

func (s *Service) save(ctx context.Context, p *models.Project) error {
	if err := s.store.Save(ctx, p); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("save project %d: %w", p.ID, err)
	}
	return nil
}

func entityName(p *models.Project) *string {
	name := p.Code + " " + p.Name
	return &name
}
