package projectcode

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeCodes struct {
	codes []string
	err   error
	calls []string
}

func (f *fakeCodes) CodesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	f.calls = append(f.calls, prefix)
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for _, c := range f.codes {
		if strings.HasPrefix(c, prefix+"-") {
			out = append(out, c)
		}
	}
	return out, nil
}

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

var feb10 = time.Date(2025, 2, 10, 10, 0, 0, 0, time.UTC)

func TestGeneratorNext(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		label    string
		want     string
	}{
		{"empty store", nil, "客戶需求導向", "C2507-001"},
		{"continues sequence", []string{"C2507-003", "C2507-002", "C2507-001"}, "客戶需求導向", "C2507-004"},
		{"other prefixes ignored", []string{"S2507-009", "C2506-004"}, "客戶需求導向", "C2507-001"},
		{"malformed suffix counts as zero", []string{"C2507-xyz"}, "客戶需求導向", "C2507-001"},
		{"numeric max wins over lexical order", []string{"C2507-99", "C2507-100"}, "客戶需求導向", "C2507-101"},
		{"fallback letter", []string{"X2507-001"}, "other", "X2507-002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(&fakeCodes{codes: tt.existing}, fixedClock(feb10))
			got, err := g.Next(context.Background(), tt.label)
			if err != nil {
				t.Fatalf("Next returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestGeneratorDeterministicWithinTick(t *testing.T) {
	codes := &fakeCodes{}
	g := NewGenerator(codes, fixedClock(feb10))

	first, err := g.Preview(context.Background(), "公司策略導向")
	if err != nil {
		t.Fatalf("Preview returned error: %v", err)
	}
	second, err := g.Preview(context.Background(), "公司策略導向")
	if err != nil {
		t.Fatalf("Preview returned error: %v", err)
	}

	if first != second {
		t.Errorf("Expected identical previews, got %s and %s", first, second)
	}
	if len(codes.calls) != 2 || codes.calls[0] != "S2507" || codes.calls[1] != "S2507" {
		t.Errorf("Expected two lookups for S2507, got %v", codes.calls)
	}
}

func TestGeneratorStorageError(t *testing.T) {
	boom := errors.New("connection refused")
	g := NewGenerator(&fakeCodes{err: boom}, fixedClock(feb10))

	_, err := g.Next(context.Background(), "內部專案")
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped storage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "I2507") {
		t.Errorf("Expected prefix in error message, got %q", err.Error())
	}
}

func TestNewGeneratorDefaultsClock(t *testing.T) {
	g := NewGenerator(&fakeCodes{}, nil)
	if g.clock == nil {
		t.Fatal("Expected a default clock")
	}
}
