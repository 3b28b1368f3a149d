package audio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSelectTierMonotonicChains(t *testing.T) {
	th := DefaultThresholds()

	clean := SelectTier(80, -20, th)
	moderate := SelectTier(55, -20, th)
	poor := SelectTier(25, -20, th)

	if clean.Name != "TIER1-CLEAN" {
		t.Errorf("quality 80: got tier %s", clean.Name)
	}
	if moderate.Name != "TIER2-MODERATE" {
		t.Errorf("quality 55: got tier %s", moderate.Name)
	}
	if poor.Name != "TIER3-POOR" {
		t.Errorf("quality 25: got tier %s", poor.Name)
	}

	if !(len(clean.Filters) < len(moderate.Filters) && len(moderate.Filters) < len(poor.Filters)) {
		t.Errorf("filter chains not strictly increasing: %d, %d, %d",
			len(clean.Filters), len(moderate.Filters), len(poor.Filters))
	}
}

func TestSelectTierBoundaries(t *testing.T) {
	th := DefaultThresholds()

	if got := SelectTier(70, -20, th).Name; got != "TIER2-MODERATE" {
		t.Errorf("score exactly at light threshold should not get tier1, got %s", got)
	}
	if got := SelectTier(40, -20, th).Name; got != "TIER3-POOR" {
		t.Errorf("score exactly at moderate threshold should not get tier2, got %s", got)
	}
	if got := SelectTier(0, -20, th).Name; got != "TIER3-POOR" {
		t.Errorf("score 0: got %s", got)
	}
	if got := SelectTier(100, -20, th).Name; got != "TIER1-CLEAN" {
		t.Errorf("score 100: got %s", got)
	}
}

func TestTierChainsEndWithLoudnorm(t *testing.T) {
	th := DefaultThresholds()
	for _, score := range []float64{80, 55, 25} {
		tier := SelectTier(score, -18, th)
		last := tier.Filters[len(tier.Filters)-1]
		if last != "loudnorm=I=-18:LRA=11:TP=-1.5" {
			t.Errorf("tier %s: final filter = %q", tier.Name, last)
		}
		chain := tier.FilterChain()
		if strings.Count(chain, ",") != len(tier.Filters)-1 {
			t.Errorf("tier %s: malformed chain %q", tier.Name, chain)
		}
	}
}

func TestFallbackTier(t *testing.T) {
	tier := FallbackTier(-20)
	if tier.Name != "FALLBACK" {
		t.Errorf("got name %s", tier.Name)
	}
	if got := tier.FilterChain(); got != "loudnorm=I=-20:LRA=11:TP=-1.5,afftdn=nf=-20" {
		t.Errorf("got chain %q", got)
	}
}

func TestLoadThresholds(t *testing.T) {
	got, err := LoadThresholds("")
	if err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if got != DefaultThresholds() {
		t.Errorf("empty path: got %+v", got)
	}

	path := filepath.Join(t.TempDir(), "tiers.yaml")
	if err := os.WriteFile(path, []byte("light: 80\nmoderate: 50\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = LoadThresholds(path)
	if err != nil {
		t.Fatalf("valid file: %v", err)
	}
	if got.Light != 80 || got.Moderate != 50 {
		t.Errorf("got %+v", got)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("light: 30\nmoderate: 60\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadThresholds(bad); err == nil {
		t.Error("inverted thresholds accepted")
	}

	if _, err := LoadThresholds(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
