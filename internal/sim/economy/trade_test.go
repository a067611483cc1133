package economy

import (
	"testing"
)

func TestBuySettlesEverywhere(t *testing.T) {
	e := newTestEconomy(t)
	tr := e.CreateTrader("kestrel")

	txn := mustBuy(t, e, tr.ID, "M_ALPHA", "RATIONS", 10)

	if txn.Total != 126 {
		t.Fatalf("total = %d, want 126", txn.Total)
	}
	if txn.Tax != 6 {
		t.Fatalf("tax = %d, want 6", txn.Tax)
	}
	if txn.Type != TxnBuy || txn.BuyerID != tr.ID || txn.SellerID != "M_ALPHA" {
		t.Fatalf("bad parties: %+v", txn)
	}
	if got := tr.Wallet.Credits(); got != 1000-126 {
		t.Fatalf("credits = %d, want 874", got)
	}
	if got := tr.Cargo.Quantity("RATIONS"); got != 10 {
		t.Fatalf("cargo = %d, want 10", got)
	}
	if got := e.Market("M_ALPHA").Entry("RATIONS").Stock; got != 90 {
		t.Fatalf("stock = %d, want 90", got)
	}
	if tr.Location != "M_ALPHA" {
		t.Fatalf("location = %q, want M_ALPHA", tr.Location)
	}
	if !tr.Knows("M_ALPHA") {
		t.Fatal("trade should discover the market")
	}
	if e.Ledger().Len() != 1 {
		t.Fatalf("ledger len = %d, want 1", e.Ledger().Len())
	}
}

func TestSellSettlesEverywhere(t *testing.T) {
	e := newTestEconomy(t)
	tr := e.CreateTrader("kestrel")
	mustBuy(t, e, tr.ID, "M_ALPHA", "RATIONS", 10)
	credits := tr.Wallet.Credits()

	txn := mustSell(t, e, tr.ID, "M_ALPHA", "RATIONS", 10)

	// Sell runs at the marked-down price the market held after the buy
	// shifted supply/demand; spread plus tax keep it below the buy total.
	if txn.Total >= 126 {
		t.Fatalf("sell total %d should be below buy total 126", txn.Total)
	}
	if txn.Type != TxnSell || txn.SellerID != tr.ID || txn.BuyerID != "M_ALPHA" {
		t.Fatalf("bad parties: %+v", txn)
	}
	if got := tr.Wallet.Credits(); got != credits+txn.Total {
		t.Fatalf("credits = %d, want %d", got, credits+txn.Total)
	}
	if got := tr.Cargo.Quantity("RATIONS"); got != 0 {
		t.Fatalf("cargo = %d, want 0", got)
	}
	if got := e.Market("M_ALPHA").Entry("RATIONS").Stock; got != 100 {
		t.Fatalf("stock = %d, want 100", got)
	}
}

func TestTradeRejections(t *testing.T) {
	e := newTestEconomy(t)
	tr := e.CreateTrader("kestrel")

	_, err := e.Buy(tr.ID, "M_ALPHA", "RATIONS", 0)
	wantCode(t, err, "E_INVALID_QUANTITY")

	_, err = e.Buy("TR9999", "M_ALPHA", "RATIONS", 1)
	wantCode(t, err, "E_UNKNOWN_TRADER")

	_, err = e.Buy(tr.ID, "M_NOWHERE", "RATIONS", 1)
	wantCode(t, err, "E_UNKNOWN_MARKET")

	_, err = e.Buy(tr.ID, "M_ALPHA", "WIDGETS", 1)
	wantCode(t, err, "E_UNKNOWN_ITEM")

	_, err = e.Buy(tr.ID, "M_ALPHA", "RATIONS", 101)
	wantCode(t, err, "E_INSUFFICIENT_STOCK")

	// 100 ore at 31.5 is 3150 credits against a 1000 starting wallet.
	_, err = e.Buy(tr.ID, "M_ALPHA", "ORE", 100)
	wantCode(t, err, "E_INSUFFICIENT_FUNDS")

	_, err = e.Sell(tr.ID, "M_ALPHA", "RATIONS", 5)
	wantCode(t, err, "E_INSUFFICIENT_CARGO")
}

func TestBuyCargoSpaceGate(t *testing.T) {
	e := newTestEconomy(t)
	tr := e.CreateTrader("kestrel")
	tr.Cargo = NewCargoHold(5, &e.Catalogs().Items)

	_, err := e.Buy(tr.ID, "M_ALPHA", "RATIONS", 10)
	wantCode(t, err, "E_INSUFFICIENT_CARGO_SPACE")
	if got := tr.Wallet.Credits(); got != 1000 {
		t.Fatalf("rejected buy moved credits: %d", got)
	}
}

func TestContrabandOnlyAtBlackMarket(t *testing.T) {
	e := newTestEconomy(t)
	tr := e.CreateTrader("smuggler")

	_, err := e.Buy(tr.ID, "M_ALPHA", "STIMS", 1)
	wantCode(t, err, "E_ITEM_RESTRICTED")

	txn := mustBuy(t, e, tr.ID, "M_BLACK", "STIMS", 2)
	if !txn.Contraband || !txn.Suspicious {
		t.Fatalf("black market stim run should be flagged: %+v", txn)
	}
}

func TestReputationGate(t *testing.T) {
	e := newTestEconomy(t)
	tr := e.CreateTrader("kestrel")

	// Default source: everyone is neutral, the navy yard wants 50.
	_, err := e.Buy(tr.ID, "M_GATED", "RATIONS", 1)
	wantCode(t, err, "E_MARKET_ACCESS_DENIED")
	if tr.Knows("M_GATED") {
		t.Fatal("rejected access should not discover the market")
	}

	e.SetReputationSource(repFunc(func(traderID, factionID string) int { return 60 }))
	mustBuy(t, e, tr.ID, "M_GATED", "RATIONS", 1)
}

// repFunc adapts a function to the ReputationSource interface.
type repFunc func(traderID, factionID string) int

func (f repFunc) Reputation(traderID, factionID string) int { return f(traderID, factionID) }

func TestGetQuote(t *testing.T) {
	e := newTestEconomy(t)
	tr := e.CreateTrader("kestrel")

	q, err := e.GetQuote(tr.ID, "M_ALPHA", "RATIONS")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !almostEqual(q.BuyPrice, 12.6) || !almostEqual(q.SellPrice, 8.4) {
		t.Fatalf("quote prices %v / %v, want 12.6 / 8.4", q.BuyPrice, q.SellPrice)
	}
	if q.Stock != 100 || q.MaxStock != 200 {
		t.Fatalf("quote stock %d/%d, want 100/200", q.Stock, q.MaxStock)
	}
	if !tr.Knows("M_ALPHA") {
		t.Fatal("a quote should discover the market")
	}
	if got := tr.Wallet.Credits(); got != 1000 {
		t.Fatalf("a quote moved credits: %d", got)
	}
}

func TestProfitMilestonesFireOnce(t *testing.T) {
	e := newTestEconomy(t)
	tr := e.CreateTrader("kestrel")

	// Ore arbitrage: 31.5 to buy at alpha, 90 to sell at beta. Ten units
	// gross 585 profit, crossing the 100 and 500 milestones in one sale.
	mustBuy(t, e, tr.ID, "M_ALPHA", "ORE", 10)
	e.pendingEvents = nil
	mustSell(t, e, tr.ID, "M_BETA", "ORE", 10)

	var milestones []int64
	for _, ev := range e.pendingEvents {
		if ev["type"] == "MILESTONE" {
			milestones = append(milestones, ev["milestone"].(int64))
		}
	}
	if len(milestones) != 2 || milestones[0] != 100 || milestones[1] != 500 {
		t.Fatalf("milestones = %v, want [100 500]", milestones)
	}

	// A second crossing of the same levels stays quiet.
	e.pendingEvents = nil
	mustBuy(t, e, tr.ID, "M_ALPHA", "ORE", 1)
	mustSell(t, e, tr.ID, "M_BETA", "ORE", 1)
	for _, ev := range e.pendingEvents {
		if ev["type"] == "MILESTONE" {
			t.Fatalf("milestone fired twice: %v", ev)
		}
	}
}
