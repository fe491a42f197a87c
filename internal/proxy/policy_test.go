package proxy

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stackhound/stackhound/internal/config"
	"github.com/stackhound/stackhound/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestSelectTierEscalation(t *testing.T) {
	p := &Policy{Default: TierResidential}

	tests := []struct {
		attempt int
		failure types.FailureClass
		want    Tier
	}{
		{0, types.FailureNone, TierResidential},
		{1, types.FailurePageLoadTimeout, TierUnblocker},
		{2, types.FailurePageLoadTimeout, TierUnblocker},
		{1, types.FailureContentNotFound, TierUnblocker},
		// A block jumps straight to the top tier.
		{1, types.FailureBlockDetected, TierUnblocker},
		{2, types.FailureBlockDetected, TierUnblocker},
	}
	for _, tt := range tests {
		if got := p.SelectTier(tt.attempt, tt.failure); got != tt.want {
			t.Errorf("SelectTier(%d, %s) = %s, want %s", tt.attempt, tt.failure, got, tt.want)
		}
	}
}

func TestSelectTierFromDatacenterStepsUp(t *testing.T) {
	p := &Policy{Default: TierDatacenter}

	if got := p.SelectTier(0, types.FailureNone); got != TierDatacenter {
		t.Errorf("first attempt = %s, want datacenter", got)
	}
	if got := p.SelectTier(1, types.FailurePageLoadTimeout); got != TierResidential {
		t.Errorf("first retry = %s, want residential", got)
	}
	if got := p.SelectTier(1, types.FailureBlockDetected); got != TierUnblocker {
		t.Errorf("block retry = %s, want unblocker", got)
	}
}

func TestParseTier(t *testing.T) {
	for _, name := range []string{"datacenter", "residential", "unblocker"} {
		tier, err := ParseTier(name)
		if err != nil {
			t.Fatalf("ParseTier(%q): %v", name, err)
		}
		if tier.String() != name {
			t.Errorf("round trip %q -> %s", name, tier)
		}
	}
	if _, err := ParseTier("carrier-pigeon"); err == nil {
		t.Error("expected error for unknown tier")
	}
}

func TestManagerRotation(t *testing.T) {
	cfg := &config.ProxyConfig{
		Servers: map[string][]string{
			"residential": {
				"http://proxy-a.example.net:8080",
				"http://proxy-b.example.net:8080",
			},
		},
	}
	m, err := NewManager(cfg, testLogger)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if m.Count(TierResidential) != 2 {
		t.Fatalf("expected 2 residential servers, got %d", m.Count(TierResidential))
	}

	first := m.ServerFor(TierResidential)
	second := m.ServerFor(TierResidential)
	if first == nil || second == nil {
		t.Fatal("expected servers, got nil")
	}
	if first.String() == second.String() {
		t.Errorf("expected rotation, got %s twice", first)
	}

	// Unconfigured tier means direct connection.
	if got := m.ServerFor(TierUnblocker); got != nil {
		t.Errorf("expected nil for unconfigured tier, got %s", got)
	}
}

func TestManagerMarkFailed(t *testing.T) {
	cfg := &config.ProxyConfig{
		Servers: map[string][]string{
			"residential": {
				"http://proxy-a.example.net:8080",
				"http://proxy-b.example.net:8080",
			},
		},
	}
	m, err := NewManager(cfg, testLogger)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	bad := m.ServerFor(TierResidential)
	m.MarkFailed(bad, os.ErrDeadlineExceeded)

	for i := 0; i < 4; i++ {
		got := m.ServerFor(TierResidential)
		if got == nil {
			t.Fatal("expected remaining healthy server")
		}
		if got.String() == bad.String() {
			t.Errorf("rotation returned failed server %s", bad)
		}
	}
}
