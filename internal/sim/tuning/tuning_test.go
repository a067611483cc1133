package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	doc := `
update_interval_ms: 1000
time_scale: 3600
recovery_rate_per_hour: 0.2
ai:
  travel_speed: 50
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	tn, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tn.UpdateIntervalMs != 1000 || tn.TimeScale != 3600 {
		t.Fatalf("overrides lost: %+v", tn)
	}
	if tn.RecoveryRatePerHour != 0.2 {
		t.Fatalf("recovery rate = %v", tn.RecoveryRatePerHour)
	}
	if tn.AI.TravelSpeed != 50 {
		t.Fatalf("ai travel speed = %v", tn.AI.TravelSpeed)
	}

	// Unset knobs fall back to defaults.
	if tn.MaxPriceDeviation != 2.0 || tn.StartingCredits != 1000 {
		t.Fatalf("defaults missing: %+v", tn)
	}
	if tn.AI.MinProfitMargin != 0.1 || tn.AI.MaxRoutesTracked != 10 {
		t.Fatalf("ai defaults missing: %+v", tn.AI)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "tuning.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(":\n  - ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for bad yaml")
	}
}

func TestDefaults(t *testing.T) {
	tn := Defaults()
	if tn.UpdateIntervalMs != 5000 || tn.TimeScale != 60 {
		t.Fatalf("defaults: %+v", tn)
	}
	if len(tn.ProfitMilestones) == 0 {
		t.Fatal("no default milestones")
	}
}
