package economy

import (
	"testing"
	"time"

	"starhaul.sim/internal/sim/catalogs"
)

// Test economy layout: two open markets with an ore price spread, a
// reputation-gated market, and a black market for contraband.
//
//	M_ALPHA  ore glut (supply 2.0, demand 0.5)   position 0,0,0
//	M_BETA   ore famine (supply 0.5, demand 2.0) position 300,0,0
//	M_GATED  requires reputation 50
//	M_BLACK  black market, only place STIMS trade
func testCatalogs() *catalogs.Catalogs {
	items := map[string]catalogs.ItemDef{
		"RATIONS": {
			ID: "RATIONS", Name: "Rations", Category: "COMMODITY",
			BasePrice: 10, VolumePerUnit: 1, MassPerUnit: 1,
			AIArbitrageEnabled: true,
		},
		"ORE": {
			ID: "ORE", Name: "Ore", Category: "ORE",
			BasePrice: 50, VolumePerUnit: 2, MassPerUnit: 5,
			TypicalMarketStock: 200, ReplenishmentRate: 10,
			AffectedBySupplyDemand: true,
			AffectedByMarketEvents: true,
			AIArbitrageEnabled:     true,
		},
		"STIMS": {
			ID: "STIMS", Name: "Stims", Category: "MEDICAL",
			BasePrice: 100, VolumePerUnit: 0.5, MassPerUnit: 0.2,
			Legality:           catalogs.LegalityIllegal,
			AIArbitrageEnabled: true,
		},
	}
	markets := map[string]catalogs.MarketDef{
		"M_ALPHA": {
			ID: "M_ALPHA", Name: "Alpha Station", MarketType: catalogs.MarketOpen,
			TaxRate: 0.05, SellMarkup: 1.2, BuyMarkdown: 0.8,
			AllowPlayerBuying: true, AllowPlayerSelling: true, AllowAITraders: true,
			Position: [3]float64{0, 0, 0},
			Inventory: []catalogs.MarketStockDef{
				{Item: "RATIONS", InitialStock: 100, MaxStock: 200},
				{Item: "ORE", InitialStock: 200, MaxStock: 400, SupplyLevel: 2.0, DemandLevel: 0.5},
			},
		},
		"M_BETA": {
			ID: "M_BETA", Name: "Beta Depot", MarketType: catalogs.MarketOpen,
			SellMarkup: 1.1, BuyMarkdown: 0.9,
			AllowPlayerBuying: true, AllowPlayerSelling: true, AllowAITraders: true,
			Position: [3]float64{300, 0, 0},
			Inventory: []catalogs.MarketStockDef{
				{Item: "RATIONS", InitialStock: 100, MaxStock: 200},
				{Item: "ORE", InitialStock: 50, MaxStock: 400, SupplyLevel: 0.5, DemandLevel: 2.0},
			},
		},
		"M_GATED": {
			ID: "M_GATED", Name: "Navy Yard", MarketType: catalogs.MarketFactionExclusive,
			FactionID:  "FAC_NAVY",
			SellMarkup: 1.1, BuyMarkdown: 0.9,
			AllowPlayerBuying: true, AllowPlayerSelling: true,
			MinReputation: 50,
			Position:      [3]float64{100, 100, 0},
			Inventory: []catalogs.MarketStockDef{
				{Item: "RATIONS", InitialStock: 100, MaxStock: 200},
			},
		},
		"M_BLACK": {
			ID: "M_BLACK", Name: "The Drift", MarketType: catalogs.MarketBlackMarket,
			SellMarkup: 1.5, BuyMarkdown: 0.7,
			AllowPlayerBuying: true, AllowPlayerSelling: true, AllowAITraders: true,
			Position: [3]float64{50, 50, 0},
			Inventory: []catalogs.MarketStockDef{
				{Item: "STIMS", InitialStock: 40, MaxStock: 100},
			},
		},
	}
	events := map[string]catalogs.EventTemplate{
		"EV_SHORTAGE": {
			ID: "EV_SHORTAGE", Name: "Ore Shortage",
			BaseWeight:    1,
			AffectedItems: []string{"ORE"},
			PriceMultiplier: 2.0, SupplyMultiplier: 0.5, DemandMultiplier: 1.5,
			DurationHours: 24,
		},
	}

	cats := &catalogs.Catalogs{}
	cats.Items.Defs = items
	cats.Markets.Defs = markets
	cats.Events.ByID = events
	for _, id := range []string{"ORE", "RATIONS", "STIMS"} {
		cats.Items.Palette = append(cats.Items.Palette, id)
	}
	cats.Items.Index = map[string]uint16{}
	for i, id := range cats.Items.Palette {
		cats.Items.Index[id] = uint16(i)
	}
	for _, id := range []string{"M_ALPHA", "M_BETA", "M_BLACK", "M_GATED"} {
		cats.Markets.Palette = append(cats.Markets.Palette, id)
	}
	cats.Markets.Index = map[string]uint16{}
	for i, id := range cats.Markets.Palette {
		cats.Markets.Index[id] = uint16(i)
	}
	return cats
}

// testConfig makes one simulation step advance exactly one game hour.
func testConfig() Config {
	return Config{
		ID:   "economy_test",
		Seed: 42,

		UpdateInterval: time.Second,
		TimeScale:      3600,

		StartingCredits:  1000,
		ProfitMilestones: []int64{100, 500, 2000},
	}
}

func newTestEconomy(t *testing.T) *Economy {
	t.Helper()
	return New(testConfig(), testCatalogs())
}

// mustBuy fails the test on any trade rejection.
func mustBuy(t *testing.T, e *Economy, traderID, marketID, itemID string, qty int) *Transaction {
	t.Helper()
	txn, err := e.Buy(traderID, marketID, itemID, qty)
	if err != nil {
		t.Fatalf("buy %d x %s at %s: %v", qty, itemID, marketID, err)
	}
	return txn
}

func mustSell(t *testing.T, e *Economy, traderID, marketID, itemID string, qty int) *Transaction {
	t.Helper()
	txn, err := e.Sell(traderID, marketID, itemID, qty)
	if err != nil {
		t.Fatalf("sell %d x %s at %s: %v", qty, itemID, marketID, err)
	}
	return txn
}

// wantCode asserts err carries the given protocol error code.
func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code %s, got nil", code)
	}
	if got := CodeOf(err); got != code {
		t.Fatalf("expected error code %s, got %s (%v)", code, got, err)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
