package economy

import (
	"sort"

	"starhaul.sim/internal/protocol"
)

// TradeRoute is a scored buy-here sell-there opportunity for one item.
type TradeRoute struct {
	OriginMarket string  `json:"origin_market"`
	DestMarket   string  `json:"dest_market"`
	Item         string  `json:"item"`
	BuyPrice     float64 `json:"buy_price"`
	SellPrice    float64 `json:"sell_price"`
	ProfitPerUnit float64 `json:"profit_per_unit"`
	ProfitMargin  float64 `json:"profit_margin"`
	TravelHours   float64 `json:"travel_hours"`
	Score         float64 `json:"score"` // profit per unit per travel hour
	MaxUnits      int     `json:"max_units"`
}

type routeParams struct {
	known       []string // markets to scan, in discovery order
	minMargin   float64
	travelSpeed float64
	maxRoutes   int
	itemOK      func(itemID string) bool // nil = all items
	reputation  func(marketID string) int
}

// FindBestRoutes scans the trader's known markets for profitable routes.
// One route per (origin, item) pair: only the single best destination is
// kept. Results come back sorted by score, best first, truncated to
// maxRoutes.
func (e *Economy) FindBestRoutes(traderID string, maxRoutes int) ([]TradeRoute, error) {
	tr := e.traders[traderID]
	if tr == nil {
		return nil, errf(protocol.ErrUnknownTrader, "unknown trader %q", traderID)
	}
	if maxRoutes <= 0 {
		maxRoutes = e.cfg.AI.MaxRoutesTracked
	}
	p := routeParams{
		known:       tr.KnownMarkets,
		minMargin:   e.cfg.AI.MinProfitMargin,
		travelSpeed: e.cfg.AI.TravelSpeed,
		maxRoutes:   maxRoutes,
		reputation: func(marketID string) int {
			return e.reputation.Reputation(tr.ID, e.markets[marketID].def.FactionID)
		},
	}
	if ai := e.ais[traderID]; ai != nil {
		if ai.MinProfitMargin > 0 {
			p.minMargin = ai.MinProfitMargin
		}
		if ai.TravelSpeed > 0 {
			p.travelSpeed = ai.TravelSpeed
		}
		p.itemOK = ai.tradesItem
	}
	return e.findRoutes(p), nil
}

func (e *Economy) findRoutes(p routeParams) []TradeRoute {
	var routes []TradeRoute
	for _, originID := range p.known {
		origin := e.markets[originID]
		if origin == nil {
			continue
		}
		for _, itemID := range origin.itemOrder {
			if p.itemOK != nil && !p.itemOK(itemID) {
				continue
			}
			def := e.cats.Items.Defs[itemID]
			entry := origin.Entry(itemID)
			if entry.Stock <= 0 || !origin.AllowsItem(def) {
				continue
			}
			if !origin.AccessibleBy(p.reputation(originID)) {
				continue
			}
			buyPrice, err := origin.UnitPrice(itemID, true)
			if err != nil || buyPrice <= 0 {
				continue
			}

			best, found := e.bestDestination(p, originID, itemID, buyPrice)
			if !found {
				continue
			}
			best.MaxUnits = entry.Stock
			routes = append(routes, best)
		}
	}

	// Stable: routes discovered earlier keep their place on equal scores.
	sort.SliceStable(routes, func(i, j int) bool { return routes[i].Score > routes[j].Score })
	if len(routes) > p.maxRoutes {
		routes = routes[:p.maxRoutes]
	}
	return routes
}

// bestDestination finds the single best market to sell the item bought at
// origin for buyPrice. Strictly-greater comparison: the first destination
// scanned wins score ties.
func (e *Economy) bestDestination(p routeParams, originID, itemID string, buyPrice float64) (TradeRoute, bool) {
	var best TradeRoute
	found := false
	for _, destID := range p.known {
		if destID == originID {
			continue
		}
		dest := e.markets[destID]
		if dest == nil || dest.Entry(itemID) == nil {
			continue
		}
		def := e.cats.Items.Defs[itemID]
		if !dest.AllowsItem(def) || !dest.AccessibleBy(p.reputation(destID)) {
			continue
		}
		sellPrice, err := dest.UnitPrice(itemID, false)
		if err != nil {
			continue
		}
		profit := sellPrice - buyPrice
		if profit <= 0 {
			continue
		}
		margin := profit / buyPrice
		if margin < p.minMargin {
			continue
		}
		travel := 0.0
		if p.travelSpeed > 0 {
			travel = e.positions.Distance(originID, destID) / p.travelSpeed
		}
		score := profit
		if travel > 0 {
			score = profit / travel
		}
		if !found || score > best.Score {
			best = TradeRoute{
				OriginMarket: originID,
				DestMarket:   destID,
				Item:         itemID,
				BuyPrice:     buyPrice,
				SellPrice:    sellPrice,
				ProfitPerUnit: profit,
				ProfitMargin:  margin,
				TravelHours:   travel,
				Score:         score,
			}
			found = true
		}
	}
	return best, found
}

// CalculateArbitrageOpportunity finds the best market to sell the item
// bought where the trader is currently docked, or nil when no profitable
// spread exists from here. A trader with no current location has no buy leg
// to price, so there is never an opportunity.
func (e *Economy) CalculateArbitrageOpportunity(traderID, itemID string) (*TradeRoute, error) {
	tr := e.traders[traderID]
	if tr == nil {
		return nil, errf(protocol.ErrUnknownTrader, "unknown trader %q", traderID)
	}
	if _, ok := e.cats.Items.Defs[itemID]; !ok {
		return nil, errf(protocol.ErrUnknownItem, "unknown item %q", itemID)
	}
	origin := e.markets[tr.Location]
	if origin == nil || origin.Entry(itemID) == nil {
		return nil, nil
	}
	p := routeParams{
		known:       tr.KnownMarkets,
		minMargin:   0, // arbitrage reports any positive spread
		travelSpeed: e.cfg.AI.TravelSpeed,
		reputation: func(marketID string) int {
			return e.reputation.Reputation(tr.ID, e.markets[marketID].def.FactionID)
		},
	}
	def := e.cats.Items.Defs[itemID]
	entry := origin.Entry(itemID)
	if entry.Stock <= 0 || !origin.AllowsItem(def) || !origin.AccessibleBy(p.reputation(tr.Location)) {
		return nil, nil
	}
	buyPrice, err := origin.UnitPrice(itemID, true)
	if err != nil || buyPrice <= 0 {
		return nil, nil
	}
	r, found := e.bestDestination(p, tr.Location, itemID, buyPrice)
	if !found {
		return nil, nil
	}
	r.MaxUnits = entry.Stock
	return &r, nil
}
