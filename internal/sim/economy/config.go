package economy

import (
	"time"

	"starhaul.sim/internal/sim/tuning"
)

type Config struct {
	ID   string
	Seed int64

	UpdateInterval time.Duration
	TimeScale      float64 // game seconds per real second

	SupplyDemandAdjustmentRate float64
	MinSupplyDemandLevel       float64
	MaxSupplyDemandLevel       float64
	RecoveryRatePerHour        float64

	// Item-level deviation clamp defaults (items may override).
	MinPriceDeviation    float64
	MaxPriceDeviation    float64
	VolatilityMultiplier float64

	LedgerMaxHistory int

	StartingCredits  int64
	ProfitMilestones []int64

	AI AIConfig
}

type AIConfig struct {
	TravelSpeed            float64
	MinProfitMargin        float64
	BaseContractThreshold  int64
	TradeFrequencyPerDay   int
	ManipulationFraction   float64
	DefaultCargoCapacity   float64
	DefaultStartingCapital int64
	MaxRoutesTracked       int
}

func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = "economy_1"
	}
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = 5 * time.Second
	}
	if c.TimeScale <= 0 {
		c.TimeScale = 60
	}
	if c.SupplyDemandAdjustmentRate <= 0 {
		c.SupplyDemandAdjustmentRate = 0.05
	}
	if c.MinSupplyDemandLevel <= 0 {
		c.MinSupplyDemandLevel = 0.1
	}
	if c.MaxSupplyDemandLevel <= 0 {
		c.MaxSupplyDemandLevel = 3.0
	}
	if c.RecoveryRatePerHour <= 0 {
		c.RecoveryRatePerHour = 0.1
	}
	if c.MinPriceDeviation <= 0 {
		c.MinPriceDeviation = 0.5
	}
	if c.MaxPriceDeviation <= 0 {
		c.MaxPriceDeviation = 2.0
	}
	if c.VolatilityMultiplier <= 0 {
		c.VolatilityMultiplier = 1.0
	}
	if c.LedgerMaxHistory <= 0 {
		c.LedgerMaxHistory = 10000
	}
	if c.StartingCredits <= 0 {
		c.StartingCredits = 1000
	}
	if len(c.ProfitMilestones) == 0 {
		c.ProfitMilestones = []int64{5000, 10000, 25000, 50000, 100000, 250000, 500000, 1000000}
	}
	if c.AI.TravelSpeed <= 0 {
		c.AI.TravelSpeed = 100
	}
	if c.AI.MinProfitMargin <= 0 {
		c.AI.MinProfitMargin = 0.1
	}
	if c.AI.BaseContractThreshold <= 0 {
		c.AI.BaseContractThreshold = 1000
	}
	if c.AI.TradeFrequencyPerDay <= 0 {
		c.AI.TradeFrequencyPerDay = 10
	}
	if c.AI.ManipulationFraction <= 0 {
		c.AI.ManipulationFraction = 0.1
	}
	if c.AI.DefaultCargoCapacity <= 0 {
		c.AI.DefaultCargoCapacity = 1000
	}
	if c.AI.DefaultStartingCapital <= 0 {
		c.AI.DefaultStartingCapital = 10000
	}
	if c.AI.MaxRoutesTracked <= 0 {
		c.AI.MaxRoutesTracked = 10
	}
}

// ConfigFromTuning maps the loaded tuning file onto a runtime config.
func ConfigFromTuning(id string, seed int64, t tuning.Tuning) Config {
	return Config{
		ID:   id,
		Seed: seed,

		UpdateInterval: time.Duration(t.UpdateIntervalMs) * time.Millisecond,
		TimeScale:      t.TimeScale,

		SupplyDemandAdjustmentRate: t.SupplyDemandAdjustmentRate,
		MinSupplyDemandLevel:       t.MinSupplyDemandLevel,
		MaxSupplyDemandLevel:       t.MaxSupplyDemandLevel,
		RecoveryRatePerHour:        t.RecoveryRatePerHour,

		MinPriceDeviation:    t.MinPriceDeviation,
		MaxPriceDeviation:    t.MaxPriceDeviation,
		VolatilityMultiplier: t.VolatilityMultiplier,

		LedgerMaxHistory: t.LedgerMaxHistory,

		StartingCredits:  t.StartingCredits,
		ProfitMilestones: t.ProfitMilestones,

		AI: AIConfig{
			TravelSpeed:            t.AI.TravelSpeed,
			MinProfitMargin:        t.AI.MinProfitMargin,
			BaseContractThreshold:  t.AI.BaseContractThreshold,
			TradeFrequencyPerDay:   t.AI.TradeFrequencyPerDay,
			ManipulationFraction:   t.AI.ManipulationFraction,
			DefaultCargoCapacity:   t.AI.DefaultCargoCapacity,
			DefaultStartingCapital: t.AI.DefaultStartingCapital,
			MaxRoutesTracked:       t.AI.MaxRoutesTracked,
		},
	}
}
