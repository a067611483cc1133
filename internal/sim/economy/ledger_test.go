package economy

import (
	"bytes"
	"fmt"
	"testing"
)

func txnAt(item string, qty int, unitPrice float64, hours float64) Transaction {
	return Transaction{
		ID: fmt.Sprintf("TX_%s_%v", item, hours), Type: TxnBuy,
		Item: item, Quantity: qty, UnitPrice: unitPrice,
		Total:   int64(unitPrice * float64(qty)),
		BuyerID: "TR0001", SellerID: "M_ALPHA", MarketID: "M_ALPHA",
		GameHours: hours,
	}
}

func TestLedgerPrunesOldest(t *testing.T) {
	l := NewLedger(3)
	for i := 1; i <= 5; i++ {
		l.Record(txnAt("ORE", i, 50, float64(i)))
	}
	if l.Len() != 3 {
		t.Fatalf("len = %d, want 3", l.Len())
	}
	h := l.History()
	if h[0].Quantity != 3 || h[2].Quantity != 5 {
		t.Fatalf("wrong survivors: first qty %d, last qty %d", h[0].Quantity, h[2].Quantity)
	}
}

func TestTotalVolumeWindow(t *testing.T) {
	l := NewLedger(0)
	l.Record(txnAt("ORE", 10, 50, 1))
	l.Record(txnAt("ORE", 20, 55, 10))
	l.Record(txnAt("RATIONS", 5, 12, 10))
	l.Record(txnAt("ORE", 30, 60, 23))

	if got := l.TotalVolume("ORE", 0, 24); got != 60 {
		t.Fatalf("all-time volume = %d, want 60", got)
	}
	// A 20h window at hour 24 cuts off the hour-1 trade.
	if got := l.TotalVolume("ORE", 20, 24); got != 50 {
		t.Fatalf("windowed volume = %d, want 50", got)
	}
	if got := l.TotalVolume("RATIONS", 0, 24); got != 5 {
		t.Fatalf("rations volume = %d, want 5", got)
	}
}

func TestAveragePriceVolumeWeighted(t *testing.T) {
	l := NewLedger(0)
	l.Record(txnAt("ORE", 1, 100, 1))
	l.Record(txnAt("ORE", 9, 50, 2))

	avg, ok := l.AveragePrice("ORE", 0, 10)
	if !ok {
		t.Fatal("expected ok")
	}
	// (1*100 + 9*50) / 10, not the per-trade mean of 75.
	if !almostEqual(avg, 55) {
		t.Fatalf("avg = %v, want 55", avg)
	}

	if _, ok := l.AveragePrice("STIMS", 0, 10); ok {
		t.Fatal("empty item should report not-ok")
	}
}

func TestPriceTrend(t *testing.T) {
	l := NewLedger(0)
	// Early half at 50, late half at 60: a 20% rise.
	l.Record(txnAt("ORE", 1, 50, 1))
	l.Record(txnAt("ORE", 1, 50, 2))
	l.Record(txnAt("ORE", 1, 60, 8))
	l.Record(txnAt("ORE", 1, 60, 9))

	trend, ok := l.PriceTrend("ORE", 0)
	if !ok {
		t.Fatal("expected ok")
	}
	if !almostEqual(trend, 0.2) {
		t.Fatalf("trend = %v, want 0.2", trend)
	}

	// A window tight enough to hold only the late trades has no early half.
	if _, ok := l.PriceTrend("ORE", 2); ok {
		t.Fatal("one-sided window should report not-ok")
	}
	if _, ok := l.PriceTrend("STIMS", 0); ok {
		t.Fatal("untraded item should report not-ok")
	}
}

func TestTopTradedItems(t *testing.T) {
	l := NewLedger(0)
	l.Record(txnAt("ORE", 10, 50, 1))
	l.Record(txnAt("ORE", 10, 50, 2))
	l.Record(txnAt("RATIONS", 30, 12, 3))
	l.Record(txnAt("STIMS", 20, 100, 4))

	top := l.TopTradedItems(2, 0, 10)
	if len(top) != 2 {
		t.Fatalf("len = %d, want 2", len(top))
	}
	if top[0].Item != "RATIONS" || top[0].Units != 30 || top[0].Trades != 1 {
		t.Fatalf("top[0] = %+v", top[0])
	}
	if top[1].Item != "ORE" || top[1].Units != 20 || top[1].Trades != 2 {
		t.Fatalf("top[1] = %+v", top[1])
	}

	// Equal volume falls back to id order.
	l2 := NewLedger(0)
	l2.Record(txnAt("STIMS", 10, 100, 1))
	l2.Record(txnAt("ORE", 10, 50, 2))
	tied := l2.TopTradedItems(0, 0, 10)
	if tied[0].Item != "ORE" || tied[1].Item != "STIMS" {
		t.Fatalf("tie order: %+v", tied)
	}
}

func TestProfitLoss(t *testing.T) {
	l := NewLedger(0)
	buy := txnAt("ORE", 10, 31.5, 1) // trader pays 315
	l.Record(buy)
	sell := Transaction{
		ID: "TX_SELL", Type: TxnSell, Item: "ORE", Quantity: 10,
		UnitPrice: 90, Total: 900,
		BuyerID: "M_BETA", SellerID: "TR0001", MarketID: "M_BETA",
		GameHours: 5,
	}
	l.Record(sell)

	if got := l.ProfitLoss("TR0001", 0, 10); got != 900-315 {
		t.Fatalf("net = %d, want 585", got)
	}
	if got := l.ProfitLoss("TR0002", 0, 10); got != 0 {
		t.Fatalf("uninvolved trader net = %d, want 0", got)
	}
	// Window excluding the buy leaves only the sell.
	if got := l.ProfitLoss("TR0001", 2, 6); got != 900 {
		t.Fatalf("windowed net = %d, want 900", got)
	}
}

func TestLedgerCSVRoundTrip(t *testing.T) {
	l := NewLedger(0)
	l.Record(Transaction{
		ID: "TX00000001", Type: TxnBuy, Item: "STIMS", Quantity: 3,
		UnitPrice: 157.5, Total: 473, Tax: 0,
		BuyerID: "TR0001", SellerID: "M_BLACK", MarketID: "M_BLACK",
		GameHours: 2.5, SupplyLevel: 1, DemandLevel: 1,
		Events:     []string{"EV_SHORTAGE"},
		Contraband: true, Suspicious: true,
	})
	l.Record(txnAt("ORE", 10, 31.5, 3))

	var buf bytes.Buffer
	if err := l.ExportCSV(&buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	restored := NewLedger(0)
	if err := restored.ImportCSV(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("import: %v", err)
	}
	if restored.Len() != 2 {
		t.Fatalf("len = %d, want 2", restored.Len())
	}
	got := restored.History()[0]
	want := l.History()[0]
	if got.ID != want.ID || got.Total != want.Total || !got.Suspicious {
		t.Fatalf("first row mismatch: %+v", got)
	}
	if len(got.Events) != 1 || got.Events[0] != "EV_SHORTAGE" {
		t.Fatalf("events mismatch: %v", got.Events)
	}
	if !almostEqual(got.UnitPrice, 157.5) {
		t.Fatalf("unit price = %v", got.UnitPrice)
	}
}
