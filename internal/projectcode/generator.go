package projectcode

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// CodeLister returns every stored code beginning with prefix+"-", soft-deleted
// projects included, ordered descending.
type CodeLister interface {
	CodesWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Generator computes the next free code for a project type. The result is a
// hint: two callers may compute the same code, and the unique index on
// projects.code decides which insert wins.
type Generator struct {
	codes CodeLister
	clock Clock
}

func NewGenerator(codes CodeLister, clock Clock) *Generator {
	if clock == nil {
		clock = SystemClock
	}
	return &Generator{codes: codes, clock: clock}
}

// Next returns the code the next project of type label should receive.
func (g *Generator) Next(ctx context.Context, label string) (string, error) {
	ctx, span := otel.Tracer("pmtrack/projectcode").Start(ctx, "projectcode.Next")
	defer span.End()

	prefix := Prefix(label, g.clock.Now())
	span.SetAttributes(attribute.String("projectcode.prefix", prefix))

	codes, err := g.codes.CodesWithPrefix(ctx, prefix)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("list codes for %s: %w", prefix, err)
	}

	// the lister orders descending, but a malformed or wider suffix can sort
	// anywhere, so take the numeric max over all of them
	maxSeq := 0
	for _, c := range codes {
		if n := ParseSequence(c); n > maxSeq {
			maxSeq = n
		}
	}

	code := Format(prefix, maxSeq+1)
	span.SetAttributes(attribute.String("projectcode.code", code))
	return code, nil
}

// Preview is Next without any intent to persist. It is safe to call repeatedly.
func (g *Generator) Preview(ctx context.Context, label string) (string, error) {
	return g.Next(ctx, label)
}
