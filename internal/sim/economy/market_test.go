package economy

import (
	"testing"
)

func TestUnitPriceSpreadAndTax(t *testing.T) {
	e := newTestEconomy(t)
	m := e.Market("M_ALPHA")

	// RATIONS are insulated from supply/demand, so the price is exactly
	// base * spread * (1 + tax).
	buy, err := m.UnitPrice("RATIONS", true)
	if err != nil {
		t.Fatalf("buy price: %v", err)
	}
	if !almostEqual(buy, 10*1.2*1.05) {
		t.Fatalf("buy price = %v, want 12.6", buy)
	}
	sell, err := m.UnitPrice("RATIONS", false)
	if err != nil {
		t.Fatalf("sell price: %v", err)
	}
	if !almostEqual(sell, 10*0.8*1.05) {
		t.Fatalf("sell price = %v, want 8.4", sell)
	}
	if sell >= buy {
		t.Fatalf("sell price %v should be below buy price %v", sell, buy)
	}
}

func TestUnitPriceSupplyDemand(t *testing.T) {
	e := newTestEconomy(t)

	// Glut at alpha: supply 2.0, demand 0.5 pushes ore to the deviation
	// floor (base 50 * 0.5 = 25 internal).
	buy, err := e.Market("M_ALPHA").UnitPrice("ORE", true)
	if err != nil {
		t.Fatalf("alpha buy: %v", err)
	}
	if !almostEqual(buy, 25*1.2*1.05) {
		t.Fatalf("alpha ore buy = %v, want 31.5", buy)
	}

	// Famine at beta caps ore at the ceiling (base 50 * 2.0 = 100).
	sell, err := e.Market("M_BETA").UnitPrice("ORE", false)
	if err != nil {
		t.Fatalf("beta sell: %v", err)
	}
	if !almostEqual(sell, 100*0.9) {
		t.Fatalf("beta ore sell = %v, want 90", sell)
	}
}

func TestUnitPriceUnlistedItem(t *testing.T) {
	e := newTestEconomy(t)
	if _, err := e.Market("M_ALPHA").UnitPrice("STIMS", true); err == nil {
		t.Fatal("expected error for unlisted item")
	}
	_, err := e.Market("M_ALPHA").UnitPrice("NOPE", true)
	wantCode(t, err, "E_UNKNOWN_ITEM")
}

func TestRecordTradeShiftsSupplyDemand(t *testing.T) {
	e := newTestEconomy(t)
	m := e.Market("M_ALPHA")
	entry := m.Entry("RATIONS")

	m.RecordTrade("RATIONS", 10, true)
	if entry.Stock != 90 {
		t.Fatalf("stock = %d, want 90", entry.Stock)
	}
	if !almostEqual(entry.Supply, 0.95) || !almostEqual(entry.Demand, 1.05) {
		t.Fatalf("after buy supply=%v demand=%v, want 0.95/1.05", entry.Supply, entry.Demand)
	}

	m.RecordTrade("RATIONS", 10, false)
	if entry.Stock != 100 {
		t.Fatalf("stock = %d, want 100", entry.Stock)
	}
	if !almostEqual(entry.Supply, 0.95*1.05) || !almostEqual(entry.Demand, 1.05*0.95) {
		t.Fatalf("after sell supply=%v demand=%v", entry.Supply, entry.Demand)
	}
}

func TestRecordTradeClamps(t *testing.T) {
	e := newTestEconomy(t)
	m := e.Market("M_ALPHA")
	entry := m.Entry("RATIONS")

	// Hammer one direction; levels must stay inside [0.1, 3.0] and stock
	// must not go negative.
	for i := 0; i < 200; i++ {
		m.RecordTrade("RATIONS", 50, true)
	}
	if entry.Stock != 0 {
		t.Fatalf("stock = %d, want 0", entry.Stock)
	}
	if entry.Supply < 0.1 || entry.Demand > 3.0 {
		t.Fatalf("levels escaped clamp: supply=%v demand=%v", entry.Supply, entry.Demand)
	}
	if !almostEqual(entry.Supply, 0.1) || !almostEqual(entry.Demand, 3.0) {
		t.Fatalf("levels should rest at the clamp: supply=%v demand=%v", entry.Supply, entry.Demand)
	}

	// Selling caps stock at MaxStock.
	for i := 0; i < 10; i++ {
		m.RecordTrade("RATIONS", 100, false)
	}
	if entry.Stock != 200 {
		t.Fatalf("stock = %d, want MaxStock 200", entry.Stock)
	}
}

func TestMarketUpdateDriftsTowardNormal(t *testing.T) {
	e := newTestEconomy(t)
	m := e.Market("M_ALPHA")
	entry := m.Entry("ORE")

	// Each hour closes a tenth of the remaining gap to 1.0, so the supply
	// glut (a full point out) recovers twice as fast as the demand slump
	// (half a point out).
	m.update(1, 1)
	if !almostEqual(entry.Supply, 1.9) {
		t.Fatalf("supply after 1h = %v, want 1.9", entry.Supply)
	}
	if !almostEqual(entry.Demand, 0.55) {
		t.Fatalf("demand after 1h = %v, want 0.55", entry.Demand)
	}

	// Long enough and both close on 1.0 from their own side, no overshoot.
	for h := 2; h <= 100; h++ {
		m.update(1, float64(h))
	}
	if entry.Supply < 1.0 || entry.Supply-1.0 > 1e-3 {
		t.Fatalf("supply did not settle: %v", entry.Supply)
	}
	if entry.Demand > 1.0 || 1.0-entry.Demand > 1e-3 {
		t.Fatalf("demand did not settle: %v", entry.Demand)
	}
}

func TestIsItemInStockNeedsPositiveQuantity(t *testing.T) {
	e := newTestEconomy(t)
	m := e.Market("M_ALPHA")
	entry := m.Entry("RATIONS")
	entry.Stock = 0

	// An empty shelf satisfies no request, not even a degenerate one.
	if m.IsItemInStock("RATIONS", 0) {
		t.Fatal("zero quantity reported in stock")
	}
	if m.IsItemInStock("RATIONS", -5) {
		t.Fatal("negative quantity reported in stock")
	}

	entry.Stock = 3
	if !m.IsItemInStock("RATIONS", 3) {
		t.Fatal("exact stock not reported in stock")
	}
	if m.IsItemInStock("RATIONS", 4) {
		t.Fatal("over-ask reported in stock")
	}
	if m.IsItemInStock("NOPE", 1) {
		t.Fatal("unlisted item reported in stock")
	}
}

func TestMarketUpdateReplenishesStock(t *testing.T) {
	e := newTestEconomy(t)
	m := e.Market("M_ALPHA")
	entry := m.Entry("ORE")
	entry.Stock = 0

	m.update(1, 1)
	if entry.Stock != 10 {
		t.Fatalf("stock after 1h = %d, want 10", entry.Stock)
	}

	// Replenishment never exceeds MaxStock.
	for h := 2; h <= 100; h++ {
		m.update(1, float64(h))
	}
	if entry.Stock != 400 {
		t.Fatalf("stock = %d, want MaxStock 400", entry.Stock)
	}
}

func TestStockRefreshSnapsToInitial(t *testing.T) {
	cats := testCatalogs()
	def := cats.Markets.Defs["M_ALPHA"]
	def.StockRefreshHours = 12
	cats.Markets.Defs["M_ALPHA"] = def
	e := New(testConfig(), cats)

	m := e.Market("M_ALPHA")
	entry := m.Entry("RATIONS")
	entry.Stock = 5

	// No replenishment rate on rations, so only the refresh can restore it.
	m.update(1, 6)
	if entry.Stock != 5 {
		t.Fatalf("stock refreshed early: %d", entry.Stock)
	}
	m.update(1, 12)
	if entry.Stock != 100 {
		t.Fatalf("stock after refresh = %d, want initial 100", entry.Stock)
	}
	if m.nextStockRefreshHours != 24 {
		t.Fatalf("next refresh = %v, want 24", m.nextStockRefreshHours)
	}
}

func TestItemDeviationOverride(t *testing.T) {
	cats := testCatalogs()
	def := cats.Items.Defs["ORE"]
	def.MinPriceDeviation = 0.9
	def.MaxPriceDeviation = 1.1
	cats.Items.Defs["ORE"] = def
	e := New(testConfig(), cats)

	// The tight item clamp overrides the economy default: the alpha glut
	// can only push ore down to 45 internal.
	buy, err := e.Market("M_ALPHA").UnitPrice("ORE", true)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !almostEqual(buy, 45*1.2*1.05) {
		t.Fatalf("buy = %v, want %v", buy, 45*1.2*1.05)
	}
}
