package economy

import (
	"math"
	"sort"

	"starhaul.sim/internal/protocol"
	"starhaul.sim/internal/sim/catalogs"
)

// StockEntry is the live state of one item at one market.
type StockEntry struct {
	Stock    int
	MaxStock int
	Supply   float64 // 0.1..3.0, 1.0 = normal
	Demand   float64 // 0.1..3.0, 1.0 = normal
}

// Market is the runtime counterpart of a catalogs.MarketDef: mutable stock,
// supply/demand levels and active events. Owned by the economy goroutine.
type Market struct {
	def   catalogs.MarketDef
	items *catalogs.ItemCatalog
	cfg   *Config

	inventory map[string]*StockEntry
	itemOrder []string // sorted ids, stable iteration

	activeEvents []*MarketEvent

	// Game hour at which stock snaps back to initial levels, 0 = disabled.
	nextStockRefreshHours float64
}

func newMarket(def catalogs.MarketDef, items *catalogs.ItemCatalog, cfg *Config) *Market {
	m := &Market{
		def:       def,
		items:     items,
		cfg:       cfg,
		inventory: map[string]*StockEntry{},
	}
	for _, s := range def.Inventory {
		supply := s.SupplyLevel
		if supply <= 0 {
			supply = 1.0
		}
		demand := s.DemandLevel
		if demand <= 0 {
			demand = 1.0
		}
		m.inventory[s.Item] = &StockEntry{
			Stock:    s.InitialStock,
			MaxStock: s.MaxStock,
			Supply:   clampf(supply, cfg.MinSupplyDemandLevel, cfg.MaxSupplyDemandLevel),
			Demand:   clampf(demand, cfg.MinSupplyDemandLevel, cfg.MaxSupplyDemandLevel),
		}
		m.itemOrder = append(m.itemOrder, s.Item)
	}
	sort.Strings(m.itemOrder)
	if def.StockRefreshHours > 0 {
		m.nextStockRefreshHours = def.StockRefreshHours
	}
	return m
}

func (m *Market) ID() string                 { return m.def.ID }
func (m *Market) Def() catalogs.MarketDef    { return m.def }
func (m *Market) Entry(itemID string) *StockEntry {
	return m.inventory[itemID]
}

// AccessibleBy reports whether a trader with the given faction standing may
// trade here at all.
func (m *Market) AccessibleBy(reputation int) bool {
	return reputation >= m.def.MinReputation
}

// AllowsItem reports whether this market will trade the item. Restricted and
// illegal goods only move through black markets.
func (m *Market) AllowsItem(def catalogs.ItemDef) bool {
	if def.IsContraband() {
		return m.def.IsBlackMarket()
	}
	return true
}

func (m *Market) IsItemInStock(itemID string, quantity int) bool {
	e := m.inventory[itemID]
	return e != nil && quantity > 0 && e.Stock >= quantity
}

func (m *Market) deviationBounds(def catalogs.ItemDef) (minDev, maxDev, volatility float64) {
	minDev = def.MinPriceDeviation
	if minDev <= 0 {
		minDev = m.cfg.MinPriceDeviation
	}
	maxDev = def.MaxPriceDeviation
	if maxDev <= 0 {
		maxDev = m.cfg.MaxPriceDeviation
	}
	volatility = def.VolatilityMultiplier
	if volatility <= 0 {
		volatility = m.cfg.VolatilityMultiplier
	}
	volatility *= m.cfg.VolatilityMultiplier
	return minDev, maxDev, volatility
}

// basePrice computes the market-internal price of one unit before the trade
// direction spread and tax are applied.
func (m *Market) basePrice(def catalogs.ItemDef, e *StockEntry) float64 {
	price := def.BasePrice
	minDev, maxDev, volatility := m.deviationBounds(def)

	if def.AffectedBySupplyDemand && e != nil {
		supplyFactor := clampf(1.0/math.Max(e.Supply, 0.1), minDev, maxDev)
		demandFactor := clampf(e.Demand, minDev, maxDev)
		price *= supplyFactor * demandFactor * volatility
	}
	if def.AffectedByMarketEvents {
		price *= m.eventPriceMultiplier(def.ID)
	}
	return clampf(price, def.BasePrice*minDev, def.BasePrice*maxDev)
}

// UnitPrice returns the per-unit price a trader pays (buying=true) or
// receives (buying=false) for the item here, tax included.
func (m *Market) UnitPrice(itemID string, buying bool) (float64, error) {
	def, ok := m.items.Defs[itemID]
	if !ok {
		return 0, errf(protocol.ErrUnknownItem, "unknown item %q", itemID)
	}
	e, listed := m.inventory[itemID]
	if !listed {
		return 0, errf(protocol.ErrTradeNotAllowed, "%s does not trade %s", m.def.ID, itemID)
	}

	price := m.basePrice(def, e)
	if buying {
		price *= m.def.SellMarkup
	} else {
		price *= m.def.BuyMarkdown
	}
	price *= 1.0 + m.def.TaxRate
	return price, nil
}

// RecordTrade applies the stock and supply/demand consequences of a settled
// trade. buying=true means the trader bought from the market.
func (m *Market) RecordTrade(itemID string, quantity int, buying bool) {
	e := m.inventory[itemID]
	if e == nil || quantity <= 0 {
		return
	}
	rate := m.cfg.SupplyDemandAdjustmentRate
	if buying {
		e.Stock -= quantity
		if e.Stock < 0 {
			e.Stock = 0
		}
		e.Supply *= 1.0 - rate
		e.Demand *= 1.0 + rate
	} else {
		e.Stock += quantity
		if e.Stock > e.MaxStock {
			e.Stock = e.MaxStock
		}
		e.Supply *= 1.0 + rate
		e.Demand *= 1.0 - rate
	}
	e.Supply = clampf(e.Supply, m.cfg.MinSupplyDemandLevel, m.cfg.MaxSupplyDemandLevel)
	e.Demand = clampf(e.Demand, m.cfg.MinSupplyDemandLevel, m.cfg.MaxSupplyDemandLevel)
}

// update advances this market's simulation by deltaHours of game time:
// supply/demand drift toward their resting levels, stock replenishes, and
// the periodic stock refresh fires.
func (m *Market) update(deltaHours, nowHours float64) {
	frac := m.cfg.RecoveryRatePerHour * deltaHours
	for _, id := range m.itemOrder {
		e := m.inventory[id]
		def := m.items.Defs[id]

		// Active events pull the resting point away from 1.0.
		supplyTarget := m.eventSupplyMultiplier(id)
		demandTarget := m.eventDemandMultiplier(id)
		e.Supply = driftToward(e.Supply, supplyTarget, frac)
		e.Demand = driftToward(e.Demand, demandTarget, frac)
		e.Supply = clampf(e.Supply, m.cfg.MinSupplyDemandLevel, m.cfg.MaxSupplyDemandLevel)
		e.Demand = clampf(e.Demand, m.cfg.MinSupplyDemandLevel, m.cfg.MaxSupplyDemandLevel)

		if def.ReplenishmentRate > 0 && e.Stock < e.MaxStock {
			e.Stock += int(float64(def.ReplenishmentRate) * deltaHours * m.eventSupplyMultiplier(id))
			if e.Stock > e.MaxStock {
				e.Stock = e.MaxStock
			}
		}
	}

	if m.def.StockRefreshHours > 0 && nowHours >= m.nextStockRefreshHours {
		m.refreshStock()
		for nowHours >= m.nextStockRefreshHours {
			m.nextStockRefreshHours += m.def.StockRefreshHours
		}
	}
}

// refreshStock snaps stock back to the catalog's initial levels, modelling a
// scheduled resupply convoy. Supply/demand levels are left to drift on their
// own.
func (m *Market) refreshStock() {
	for _, s := range m.def.Inventory {
		if e := m.inventory[s.Item]; e != nil && e.Stock < s.InitialStock {
			e.Stock = s.InitialStock
		}
	}
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// driftToward closes frac of the remaining gap between v and target.
// Far-out levels recover faster in absolute terms and the value never
// overshoots.
func driftToward(v, target, frac float64) float64 {
	if frac >= 1 {
		return target
	}
	return v + (target-v)*frac
}
