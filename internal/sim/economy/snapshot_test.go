package economy

import (
	"reflect"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	e1 := newTestEconomy(t)

	tr := e1.CreateTrader("kestrel")
	tr.Discover("M_ALPHA")
	tr.Discover("M_BETA")
	mustBuy(t, e1, tr.ID, "M_ALPHA", "ORE", 10)

	e1.SpawnAITrader("hauler", AITraderOptions{
		Strategy:      StrategyAggressive,
		CanManipulate: true,
	})

	c := e1.PostContract(oreRun())
	if _, err := e1.AcceptContract(tr.ID, c.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := e1.TriggerEvent("M_ALPHA", "EV_SHORTAGE"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	e1.AdvanceHours(3)
	snap := e1.ExportSnapshot()

	e2 := New(testConfig(), testCatalogs())
	if err := e2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}

	// A faithful restore exports byte-for-byte the same state.
	if again := e2.ExportSnapshot(); !reflect.DeepEqual(snap, again) {
		t.Fatalf("restore drifted:\nwant %+v\ngot  %+v", snap, again)
	}

	if e2.Tick() != e1.Tick() || e2.GameHours() != e1.GameHours() {
		t.Fatalf("clock mismatch: tick %d/%d hours %v/%v",
			e2.Tick(), e1.Tick(), e2.GameHours(), e1.GameHours())
	}
	restored := e2.Trader(tr.ID)
	if restored == nil || restored.Wallet.Credits() != tr.Wallet.Credits() {
		t.Fatalf("trader wallet not restored")
	}
	if restored.Cargo.Quantity("ORE") != tr.Cargo.Quantity("ORE") {
		t.Fatalf("trader cargo not restored")
	}
	if got := e2.Contract(c.ID); got == nil || got.Status != c.Status || got.AcceptedBy != tr.ID {
		t.Fatalf("contract not restored: %+v", got)
	}
	if e2.Ledger().Len() != e1.Ledger().Len() {
		t.Fatalf("ledger %d entries, want %d", e2.Ledger().Len(), e1.Ledger().Len())
	}

	// Id counters continue where the original left off.
	next := e2.CreateTrader("newcomer")
	if e1.Trader(next.ID) != nil {
		t.Fatalf("restored economy reissued id %s", next.ID)
	}
}

func TestSnapshotRestoresInFlightHaul(t *testing.T) {
	e1 := newTestEconomy(t)
	ai1 := e1.SpawnAITrader("hauler", AITraderOptions{Strategy: StrategyBalanced})

	// Three hours in, the hauler has bought out alpha and is in transit.
	e1.AdvanceHours(3)
	if ai1.carryingUnits == 0 {
		t.Fatal("expected cargo in flight")
	}

	snap := e1.ExportSnapshot()
	e2 := New(testConfig(), testCatalogs())
	if err := e2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}

	ai2 := e2.AITrader(ai1.ID)
	if ai2 == nil {
		t.Fatalf("ai trader %s not restored", ai1.ID)
	}
	if ai2.carryingItem != "ORE" || ai2.carryingUnits != ai1.carryingUnits || ai2.costBasis != ai1.costBasis {
		t.Fatalf("haul state lost: carrying %d x %q basis %d",
			ai2.carryingUnits, ai2.carryingItem, ai2.costBasis)
	}
	if ai2.current == nil || ai2.current.DestMarket != "M_BETA" {
		t.Fatalf("route lost: %+v", ai2.current)
	}

	// The restored hauler finishes the leg: the cargo drains into beta on
	// arrival instead of rotting in the hold.
	e2.AdvanceHours(3)
	if ai2.carryingUnits != 0 || ai2.Cargo.Quantity("ORE") != 0 {
		t.Fatalf("restored cargo stranded: carrying %d, holding %d",
			ai2.carryingUnits, ai2.Cargo.Quantity("ORE"))
	}
	if ai2.SuccessfulTrades != ai1.SuccessfulTrades+1 {
		t.Fatalf("successful trades = %d, want %d", ai2.SuccessfulTrades, ai1.SuccessfulTrades+1)
	}
}

func TestImportSnapshotRejectsWrongVersion(t *testing.T) {
	e := newTestEconomy(t)
	snap := e.ExportSnapshot()
	snap.Header.Version = 99
	if err := New(testConfig(), testCatalogs()).ImportSnapshot(snap); err == nil {
		t.Fatal("expected version error")
	}
}

func TestImportSnapshotRejectsUnknownMarket(t *testing.T) {
	e := newTestEconomy(t)
	snap := e.ExportSnapshot()
	snap.Markets[0].ID = "M_GONE"
	if err := New(testConfig(), testCatalogs()).ImportSnapshot(snap); err == nil {
		t.Fatal("expected unknown market error")
	}
}
