package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Data-only snapshot structs. The economy package converts its live state
// to and from these; nothing here imports simulation code, so old snapshot
// files stay readable as the simulation evolves.

type Header struct {
	Version   int    `json:"version"`
	EconomyID string `json:"economy_id"`
	Tick      uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed      int64   `json:"seed"`
	GameHours float64 `json:"game_hours"`
	TimeScale float64 `json:"time_scale"`

	Markets   []MarketV1   `json:"markets"`
	Traders   []TraderV1   `json:"traders"`
	Contracts []ContractV1 `json:"contracts"`

	Ledger []TransactionV1 `json:"ledger"`

	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextTrader      uint64 `json:"next_trader"`
	NextContract    uint64 `json:"next_contract"`
	NextTransaction uint64 `json:"next_transaction"`
}

type MarketV1 struct {
	ID string `json:"id"`

	Stock  []StockV1 `json:"stock"`
	Events []EventV1 `json:"events,omitempty"`

	NextStockRefreshHours float64 `json:"next_stock_refresh_hours,omitempty"`
}

type StockV1 struct {
	Item     string  `json:"item"`
	Stock    int     `json:"stock"`
	MaxStock int     `json:"max_stock"`
	Supply   float64 `json:"supply"`
	Demand   float64 `json:"demand"`
}

type EventV1 struct {
	TemplateID string  `json:"template_id"`
	StartedAt  float64 `json:"started_at"`
	ExpiresAt  float64 `json:"expires_at,omitempty"`
}

type TraderV1 struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`

	Credits         int64 `json:"credits"`
	StartingCredits int64 `json:"starting_credits"`
	LastMilestone   int64 `json:"last_milestone,omitempty"`

	CargoCapacity float64        `json:"cargo_capacity"`
	Cargo         map[string]int `json:"cargo,omitempty"`

	Location     string   `json:"location,omitempty"`
	KnownMarkets []string `json:"known_markets,omitempty"`

	TotalBought int64 `json:"total_bought,omitempty"`
	TotalSold   int64 `json:"total_sold,omitempty"`
	TradeCount  int   `json:"trade_count,omitempty"`

	ActiveContracts []string `json:"active_contracts,omitempty"`

	AI *AIStateV1 `json:"ai,omitempty"`
}

type AIStateV1 struct {
	Strategy        string  `json:"strategy"`
	RiskTolerance   float64 `json:"risk_tolerance"`
	MinProfitMargin float64 `json:"min_profit_margin"`
	TravelSpeed     float64 `json:"travel_speed"`
	CanManipulate   bool    `json:"can_manipulate,omitempty"`
	HaulsContracts  bool    `json:"hauls_contracts,omitempty"`

	TradeItems []string `json:"trade_items,omitempty"`

	// In-flight haul, so a restore mid-route keeps the cargo moving.
	Route         *RouteV1 `json:"route,omitempty"`
	CarryingItem  string   `json:"carrying_item,omitempty"`
	CarryingUnits int      `json:"carrying_units,omitempty"`
	CostBasis     int64    `json:"cost_basis,omitempty"`
	ContractID    string   `json:"contract_id,omitempty"`
	ContractCost  int64    `json:"contract_cost,omitempty"`

	BusyUntilHours    float64 `json:"busy_until_hours,omitempty"`
	NextDecisionHours float64 `json:"next_decision_hours,omitempty"`

	TotalProfit      int64 `json:"total_profit,omitempty"`
	SuccessfulTrades int   `json:"successful_trades,omitempty"`
	FailedTrades     int   `json:"failed_trades,omitempty"`
}

type RouteV1 struct {
	OriginMarket string  `json:"origin_market"`
	DestMarket   string  `json:"dest_market"`
	Item         string  `json:"item"`
	BuyPrice      float64 `json:"buy_price"`
	SellPrice     float64 `json:"sell_price"`
	ProfitPerUnit float64 `json:"profit_per_unit"`
	ProfitMargin  float64 `json:"profit_margin"`
	TravelHours   float64 `json:"travel_hours"`
	Score    float64 `json:"score"`
	MaxUnits int     `json:"max_units"`
}

type ContractV1 struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	IssuerID    string `json:"issuer_id,omitempty"`

	RequiredCargo map[string]int `json:"required_cargo"`
	OriginMarket  string         `json:"origin_market"`
	DestMarket    string         `json:"dest_market"`

	TimeLimitHours float64 `json:"time_limit_hours"`

	RewardCredits     int64 `json:"reward_credits"`
	ReputationGain    int   `json:"reputation_gain,omitempty"`
	CreditPenalty     int64 `json:"credit_penalty,omitempty"`
	ReputationPenalty int   `json:"reputation_penalty,omitempty"`

	MinReputation int  `json:"min_reputation,omitempty"`
	Repeatable    bool `json:"repeatable,omitempty"`

	Status       string  `json:"status"`
	AcceptedBy   string  `json:"accepted_by,omitempty"`
	AcceptedAt   float64 `json:"accepted_at,omitempty"`
	ExpiresAt    float64 `json:"expires_at,omitempty"`
	ResolvedAt   float64 `json:"resolved_at,omitempty"`
	FailedReason string  `json:"failed_reason,omitempty"`
}

type TransactionV1 struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Item      string  `json:"item"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     int64   `json:"total"`
	Tax       int64   `json:"tax"`

	BuyerID  string `json:"buyer_id"`
	SellerID string `json:"seller_id"`
	MarketID string `json:"market_id"`

	GameHours float64 `json:"game_hours"`

	SupplyLevel float64  `json:"supply_level"`
	DemandLevel float64  `json:"demand_level"`
	Events      []string `json:"events,omitempty"`

	Contraband bool `json:"contraband,omitempty"`
	Suspicious bool `json:"suspicious,omitempty"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is human-readable metadata; gob carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
