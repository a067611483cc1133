package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning carries the economy-wide knobs loaded from tuning.yaml. Everything
// has a usable default so a missing file still yields a working economy.
type Tuning struct {
	UpdateIntervalMs int     `yaml:"update_interval_ms"`
	TimeScale        float64 `yaml:"time_scale"` // game seconds per real second

	SupplyDemandAdjustmentRate float64 `yaml:"supply_demand_adjustment_rate"`
	MinSupplyDemandLevel       float64 `yaml:"min_supply_demand_level"`
	MaxSupplyDemandLevel       float64 `yaml:"max_supply_demand_level"`
	RecoveryRatePerHour        float64 `yaml:"recovery_rate_per_hour"`

	// Default price deviation clamp for items that don't set their own.
	MinPriceDeviation    float64 `yaml:"min_price_deviation"`
	MaxPriceDeviation    float64 `yaml:"max_price_deviation"`
	VolatilityMultiplier float64 `yaml:"volatility_multiplier"`

	LedgerMaxHistory int `yaml:"ledger_max_history"`

	StartingCredits  int64   `yaml:"starting_credits"`
	ProfitMilestones []int64 `yaml:"profit_milestones"`

	AI AITuning `yaml:"ai"`
}

type AITuning struct {
	TravelSpeed            float64 `yaml:"travel_speed"` // distance units per game hour
	MinProfitMargin        float64 `yaml:"min_profit_margin"`
	BaseContractThreshold  int64   `yaml:"base_contract_threshold"`
	TradeFrequencyPerDay   int     `yaml:"trade_frequency_per_day"`
	ManipulationFraction   float64 `yaml:"manipulation_fraction"`
	DefaultCargoCapacity   float64 `yaml:"default_cargo_capacity"`
	DefaultStartingCapital int64   `yaml:"default_starting_capital"`
	MaxRoutesTracked       int     `yaml:"max_routes_tracked"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.ApplyDefaults()
	return t, nil
}

func Defaults() Tuning {
	var t Tuning
	t.ApplyDefaults()
	return t
}

func (t *Tuning) ApplyDefaults() {
	if t.UpdateIntervalMs <= 0 {
		t.UpdateIntervalMs = 5000
	}
	if t.TimeScale <= 0 {
		t.TimeScale = 60 // 1 real second = 1 game minute
	}
	if t.SupplyDemandAdjustmentRate <= 0 {
		t.SupplyDemandAdjustmentRate = 0.05
	}
	if t.MinSupplyDemandLevel <= 0 {
		t.MinSupplyDemandLevel = 0.1
	}
	if t.MaxSupplyDemandLevel <= 0 {
		t.MaxSupplyDemandLevel = 3.0
	}
	if t.RecoveryRatePerHour <= 0 {
		t.RecoveryRatePerHour = 0.1
	}
	if t.MinPriceDeviation <= 0 {
		t.MinPriceDeviation = 0.5
	}
	if t.MaxPriceDeviation <= 0 {
		t.MaxPriceDeviation = 2.0
	}
	if t.VolatilityMultiplier <= 0 {
		t.VolatilityMultiplier = 1.0
	}
	if t.LedgerMaxHistory <= 0 {
		t.LedgerMaxHistory = 10000
	}
	if t.StartingCredits <= 0 {
		t.StartingCredits = 1000
	}
	if len(t.ProfitMilestones) == 0 {
		t.ProfitMilestones = []int64{5000, 10000, 25000, 50000, 100000, 250000, 500000, 1000000}
	}
	if t.AI.TravelSpeed <= 0 {
		t.AI.TravelSpeed = 100
	}
	if t.AI.MinProfitMargin <= 0 {
		t.AI.MinProfitMargin = 0.1
	}
	if t.AI.BaseContractThreshold <= 0 {
		t.AI.BaseContractThreshold = 1000
	}
	if t.AI.TradeFrequencyPerDay <= 0 {
		t.AI.TradeFrequencyPerDay = 10
	}
	if t.AI.ManipulationFraction <= 0 {
		t.AI.ManipulationFraction = 0.1
	}
	if t.AI.DefaultCargoCapacity <= 0 {
		t.AI.DefaultCargoCapacity = 1000
	}
	if t.AI.DefaultStartingCapital <= 0 {
		t.AI.DefaultStartingCapital = 10000
	}
	if t.AI.MaxRoutesTracked <= 0 {
		t.AI.MaxRoutesTracked = 10
	}
}
