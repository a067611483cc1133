package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeGarbage(path string) error {
	return os.WriteFile(path, []byte("not a zstd stream"), 0o644)
}

func sampleSnapshot() SnapshotV1 {
	return SnapshotV1{
		Header: Header{Version: 1, EconomyID: "economy_test", Tick: 42},

		Seed:      1337,
		GameHours: 42.5,
		TimeScale: 3600,

		Markets: []MarketV1{
			{
				ID: "M_ALPHA",
				Stock: []StockV1{
					{Item: "ORE", Stock: 180, MaxStock: 400, Supply: 1.9, Demand: 0.6},
					{Item: "RATIONS", Stock: 100, MaxStock: 200, Supply: 1, Demand: 1},
				},
				Events:                []EventV1{{TemplateID: "EV_SHORTAGE", StartedAt: 40, ExpiresAt: 64}},
				NextStockRefreshHours: 48,
			},
		},
		Traders: []TraderV1{
			{
				ID: "TR0001", Name: "kestrel", Kind: "PLAYER",
				Credits: 874, StartingCredits: 1000,
				CargoCapacity: 1000,
				Cargo:         map[string]int{"ORE": 10},
				Location:      "M_ALPHA",
				KnownMarkets:  []string{"M_ALPHA", "M_BETA"},
				TradeCount:    1,
			},
			{
				ID: "TR0002", Name: "hauler", Kind: "AI",
				Credits: 10000, StartingCredits: 10000,
				CargoCapacity: 1000,
				AI: &AIStateV1{
					Strategy: "AGGRESSIVE", RiskTolerance: 0.8, MinProfitMargin: 0.05,
					TravelSpeed: 100, CanManipulate: true,
					TradeItems: []string{"ORE", "RATIONS"},
					Route: &RouteV1{
						OriginMarket: "M_ALPHA", DestMarket: "M_BETA", Item: "ORE",
						BuyPrice: 31.5, SellPrice: 90, ProfitPerUnit: 58.5,
						ProfitMargin: 1.857, TravelHours: 3, Score: 19.5, MaxUnits: 200,
					},
					CarryingItem: "ORE", CarryingUnits: 220, CostBasis: 6930,
					BusyUntilHours:   44,
					SuccessfulTrades: 3, TotalProfit: 7200,
				},
			},
		},
		Contracts: []ContractV1{
			{
				ID: "C000001", Title: "Ore Run",
				RequiredCargo: map[string]int{"ORE": 10},
				OriginMarket:  "M_ALPHA", DestMarket: "M_BETA",
				TimeLimitHours: 10, RewardCredits: 2000,
				Status: "ACTIVE", AcceptedBy: "TR0001", AcceptedAt: 40, ExpiresAt: 50,
			},
		},
		Ledger: []TransactionV1{
			{
				ID: "TX00000001", Type: "BUY", Item: "ORE", Quantity: 10,
				UnitPrice: 31.5, Total: 315, Tax: 15,
				BuyerID: "TR0001", SellerID: "M_ALPHA", MarketID: "M_ALPHA",
				GameHours: 41, SupplyLevel: 2, DemandLevel: 0.5,
				Events: []string{"EV_SHORTAGE"},
			},
		},
		Counters: CountersV1{NextTrader: 2, NextContract: 1, NextTransaction: 1},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "42.snap.zst")
	want := sampleSnapshot()

	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip drifted:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestWriteSnapshotCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "economies", "economy_test", "snapshots", "1.snap.zst")
	if err := WriteSnapshot(path, sampleSnapshot()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestReadSnapshotMissingFile(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.snap.zst")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReadSnapshotGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	if err := writeGarbage(path); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatal("expected error for corrupt file")
	}
}
