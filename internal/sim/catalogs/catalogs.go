package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Catalogs hold the immutable load-time data for one economy session: trade
// item definitions, market definitions, and market event templates. Nothing
// in here mutates after Load; runtime market state lives in the economy
// package and only references these by id.
type Catalogs struct {
	Items   ItemCatalog
	Markets MarketCatalog
	Events  EventCatalog
}

type ItemCatalog struct {
	Palette []string
	Index   map[string]uint16
	Defs    map[string]ItemDef
	Digest  string
}

// Legality status values for ItemDef.Legality.
const (
	LegalityLegal      = "LEGAL"
	LegalityRestricted = "RESTRICTED"
	LegalityIllegal    = "ILLEGAL"
)

type ItemDef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"` // "COMMODITY","FUEL","ORE","LUXURY","TECH","MEDICAL","WEAPON","OTHER"

	BasePrice     float64 `json:"base_price"`
	VolumePerUnit float64 `json:"volume_per_unit"`
	MassPerUnit   float64 `json:"mass_per_unit"`

	StandardLotSize    int `json:"standard_lot_size,omitempty"`
	TypicalMarketStock int `json:"typical_market_stock,omitempty"`
	ReplenishmentRate  int `json:"replenishment_rate"` // units per game hour

	Legality                string  `json:"legality,omitempty"` // default LEGAL
	ContrabandFineMultiplier float64 `json:"contraband_fine_multiplier,omitempty"`

	AffectedBySupplyDemand bool `json:"affected_by_supply_demand"`
	AffectedByMarketEvents bool `json:"affected_by_market_events"`

	// Price deviation clamp, relative to base price. Zero values fall back to
	// the economy tuning defaults.
	MinPriceDeviation    float64 `json:"min_price_deviation,omitempty"`
	MaxPriceDeviation    float64 `json:"max_price_deviation,omitempty"`
	VolatilityMultiplier float64 `json:"volatility_multiplier,omitempty"`

	AITradePriority    int      `json:"ai_trade_priority,omitempty"` // 1..10
	AIHoardable        bool     `json:"ai_hoardable,omitempty"`
	AIArbitrageEnabled bool     `json:"ai_arbitrage_enabled"`
	BehaviorTags       []string `json:"behavior_tags,omitempty"`
}

func (d ItemDef) IsContraband() bool {
	return d.Legality == LegalityRestricted || d.Legality == LegalityIllegal
}

func (d ItemDef) TotalVolume(quantity int) float64 {
	return d.VolumePerUnit * float64(quantity)
}

func (d ItemDef) TotalMass(quantity int) float64 {
	return d.MassPerUnit * float64(quantity)
}

func (d ItemDef) HasBehaviorTag(tag string) bool {
	for _, t := range d.BehaviorTags {
		if t == tag {
			return true
		}
	}
	return false
}

type MarketCatalog struct {
	Palette []string
	Index   map[string]uint16
	Defs    map[string]MarketDef
	Digest  string
}

// Market type values for MarketDef.MarketType.
const (
	MarketOpen             = "OPEN"
	MarketBlackMarket      = "BLACK_MARKET"
	MarketFactionExclusive = "FACTION_EXCLUSIVE"
	MarketCommodityExchange = "COMMODITY_EXCHANGE"
	MarketLuxuryBazaar     = "LUXURY_BAZAAR"
	MarketMilitarySupply   = "MILITARY_SUPPLY"
	MarketResearchHub      = "RESEARCH_HUB"
	MarketIndustrialDepot  = "INDUSTRIAL_DEPOT"
)

type MarketDef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MarketType string `json:"market_type,omitempty"` // default OPEN
	MarketSize string `json:"market_size,omitempty"` // "SMALL","MEDIUM","LARGE","MEGACITY","CAPITAL"
	FactionID string `json:"faction_id,omitempty"`

	TaxRate     float64 `json:"tax_rate"`
	SellMarkup  float64 `json:"sell_markup"`
	BuyMarkdown float64 `json:"buy_markdown"`

	AllowPlayerBuying  bool `json:"allow_player_buying"`
	AllowPlayerSelling bool `json:"allow_player_selling"`
	AllowAITraders     bool `json:"allow_ai_traders"`

	MinReputation int `json:"min_reputation"` // -100..100

	StockRefreshHours float64 `json:"stock_refresh_hours,omitempty"`
	RandomEventChance float64 `json:"random_event_chance,omitempty"` // per game day

	Position [3]float64 `json:"position"`

	Inventory []MarketStockDef `json:"inventory"`
}

func (d MarketDef) IsBlackMarket() bool {
	return d.MarketType == MarketBlackMarket
}

type MarketStockDef struct {
	Item         string  `json:"item"`
	InitialStock int     `json:"initial_stock"`
	MaxStock     int     `json:"max_stock"`
	SupplyLevel  float64 `json:"supply_level,omitempty"` // default 1.0
	DemandLevel  float64 `json:"demand_level,omitempty"` // default 1.0
}

type EventCatalog struct {
	ByID   map[string]EventTemplate
	Digest string
}

type EventTemplate struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	BaseWeight  float64 `json:"base_weight"`

	// Empty AffectedItems means the event applies to every item.
	AffectedItems []string `json:"affected_items,omitempty"`

	PriceMultiplier  float64 `json:"price_multiplier"`
	SupplyMultiplier float64 `json:"supply_multiplier"`
	DemandMultiplier float64 `json:"demand_multiplier"`
	DurationHours    float64 `json:"duration_hours"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadMarkets(filepath.Join(configDir, "markets.json"), &c.Markets, &c.Items); err != nil {
		return nil, err
	}
	if err := loadEvents(filepath.Join(configDir, "events"), &c.Events, &c.Items); err != nil {
		return nil, err
	}

	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %q", d.ID)
		}
		if d.BasePrice <= 0 {
			return fmt.Errorf("items.json: %s: base_price must be > 0", d.ID)
		}
		if d.VolumePerUnit <= 0 {
			return fmt.Errorf("items.json: %s: volume_per_unit must be > 0", d.ID)
		}
		if d.MassPerUnit <= 0 {
			return fmt.Errorf("items.json: %s: mass_per_unit must be > 0", d.ID)
		}
		if d.Legality == "" {
			d.Legality = LegalityLegal
		}
		switch d.Legality {
		case LegalityLegal, LegalityRestricted, LegalityIllegal:
		default:
			return fmt.Errorf("items.json: %s: bad legality %q", d.ID, d.Legality)
		}
		if d.AITradePriority < 0 || d.AITradePriority > 10 {
			return fmt.Errorf("items.json: %s: ai_trade_priority out of range", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	return nil
}

func loadMarkets(path string, out *MarketCatalog, items *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []MarketDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("markets.json: %w", err)
	}
	out.Defs = map[string]MarketDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("markets.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("markets.json: duplicate id %q", d.ID)
		}
		if d.MarketType == "" {
			d.MarketType = MarketOpen
		}
		seen := map[string]bool{}
		for _, s := range d.Inventory {
			if _, ok := items.Defs[s.Item]; !ok {
				return fmt.Errorf("markets.json: %s: unknown item %q", d.ID, s.Item)
			}
			if seen[s.Item] {
				return fmt.Errorf("markets.json: %s: duplicate inventory item %q", d.ID, s.Item)
			}
			seen[s.Item] = true
			if s.MaxStock <= 0 {
				return fmt.Errorf("markets.json: %s: %s: max_stock must be > 0", d.ID, s.Item)
			}
			if s.InitialStock < 0 || s.InitialStock > s.MaxStock {
				return fmt.Errorf("markets.json: %s: %s: initial_stock out of [0,max_stock]", d.ID, s.Item)
			}
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	return nil
}

func loadEvents(dir string, out *EventCatalog, items *ItemCatalog) error {
	out.ByID = map[string]EventTemplate{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// Events are optional; an economy with no event templates just never
		// rolls random events.
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var concat bytes.Buffer
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		var ev EventTemplate
		if err := json.Unmarshal(b, &ev); err != nil {
			return fmt.Errorf("event %s: %w", filepath.Base(p), err)
		}
		if ev.ID == "" {
			return fmt.Errorf("event %s: missing id", filepath.Base(p))
		}
		for _, item := range ev.AffectedItems {
			if _, ok := items.Defs[item]; !ok {
				return fmt.Errorf("event %s: unknown item %q", filepath.Base(p), item)
			}
		}
		if ev.PriceMultiplier <= 0 {
			ev.PriceMultiplier = 1.0
		}
		if ev.SupplyMultiplier <= 0 {
			ev.SupplyMultiplier = 1.0
		}
		if ev.DemandMultiplier <= 0 {
			ev.DemandMultiplier = 1.0
		}
		out.ByID[ev.ID] = ev
	}
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}
