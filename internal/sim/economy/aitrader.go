package economy

import (
	"fmt"
	"math"

	"starhaul.sim/internal/protocol"
)

// AI trading strategies.
const (
	StrategyBalanced     = "BALANCED"
	StrategyAggressive   = "AGGRESSIVE"
	StrategyConservative = "CONSERVATIVE"
	StrategySmuggler     = "SMUGGLER"
)

// AITraderOptions configures a spawned AI trader. Zero fields fall back to
// strategy and economy defaults.
type AITraderOptions struct {
	Strategy        string
	RiskTolerance   float64 // 0..1
	MinProfitMargin float64
	TravelSpeed     float64
	CargoCapacity   float64
	StartingCapital int64
	CanManipulate   bool
	HaulsContracts  bool
	TradeItems      []string // empty = every arbitrage-enabled item
	KnownMarkets    []string // empty = every market
}

// AITrader runs an autonomous haul loop: find routes, buy at the origin,
// travel, sell at the destination. One state machine per trader, stepped by
// the economy loop.
type AITrader struct {
	*Trader

	Strategy        string
	RiskTolerance   float64
	MinProfitMargin float64
	TravelSpeed     float64
	CanManipulate   bool
	HaulsContracts  bool

	tradeItems map[string]bool // nil = catalog arbitrage flags decide

	routes        []TradeRoute
	current       *TradeRoute
	carryingItem  string
	carryingUnits int
	costBasis     int64

	contractID   string
	contractCost int64

	busyUntilHours    float64 // traveling until this game hour
	nextDecisionHours float64

	TotalProfit      int64
	SuccessfulTrades int
	FailedTrades     int
}

// tradesItem is the AI's item filter for route scans.
func (ai *AITrader) tradesItem(itemID string) bool {
	if ai.tradeItems != nil {
		return ai.tradeItems[itemID]
	}
	return true
}

// SpawnAITrader registers a new autonomous trader. Loop-thread only; spawn
// before Run or from a loop callback.
func (e *Economy) SpawnAITrader(name string, opts AITraderOptions) *AITrader {
	if opts.Strategy == "" {
		opts.Strategy = StrategyBalanced
	}
	switch opts.Strategy {
	case StrategyAggressive:
		if opts.RiskTolerance <= 0 {
			opts.RiskTolerance = 0.8
		}
		if opts.MinProfitMargin <= 0 {
			opts.MinProfitMargin = 0.05
		}
	case StrategyConservative:
		if opts.RiskTolerance <= 0 {
			opts.RiskTolerance = 0.2
		}
		if opts.MinProfitMargin <= 0 {
			opts.MinProfitMargin = 0.2
		}
	case StrategySmuggler:
		if opts.RiskTolerance <= 0 {
			opts.RiskTolerance = 0.7
		}
		if opts.MinProfitMargin <= 0 {
			opts.MinProfitMargin = 0.15
		}
	default:
		opts.Strategy = StrategyBalanced
		if opts.RiskTolerance <= 0 {
			opts.RiskTolerance = 0.5
		}
		if opts.MinProfitMargin <= 0 {
			opts.MinProfitMargin = e.cfg.AI.MinProfitMargin
		}
	}
	if opts.TravelSpeed <= 0 {
		opts.TravelSpeed = e.cfg.AI.TravelSpeed
	}
	if opts.CargoCapacity <= 0 {
		opts.CargoCapacity = e.cfg.AI.DefaultCargoCapacity
	}
	if opts.StartingCapital <= 0 {
		opts.StartingCapital = e.cfg.AI.DefaultStartingCapital
	}

	e.nextTraderNum++
	id := fmt.Sprintf("TR%04d", e.nextTraderNum)
	wallet := NewCreditAccount(opts.StartingCapital)
	cargo := NewCargoHold(opts.CargoCapacity, &e.cats.Items)

	ai := &AITrader{
		Trader:          newTrader(id, name, TraderAI, wallet, cargo),
		Strategy:        opts.Strategy,
		RiskTolerance:   opts.RiskTolerance,
		MinProfitMargin: opts.MinProfitMargin,
		TravelSpeed:     opts.TravelSpeed,
		CanManipulate:   opts.CanManipulate,
		HaulsContracts:  opts.HaulsContracts,
	}
	if len(opts.TradeItems) > 0 {
		ai.tradeItems = make(map[string]bool, len(opts.TradeItems))
		for _, item := range opts.TradeItems {
			ai.tradeItems[item] = true
		}
	} else {
		ai.tradeItems = e.defaultTradeItems(opts.Strategy)
	}

	known := opts.KnownMarkets
	if len(known) == 0 {
		known = e.marketOrder
	}
	for _, mid := range known {
		if m := e.markets[mid]; m != nil && m.def.AllowAITraders {
			ai.Discover(mid)
			if ai.Location == "" {
				ai.Location = mid
			}
		}
	}

	e.traders[id] = ai.Trader
	e.ais[id] = ai
	e.aiOrder = append(e.aiOrder, id)
	return ai
}

// defaultTradeItems derives the item filter from catalog flags: only
// arbitrage-enabled items, with contraband reserved for smugglers.
func (e *Economy) defaultTradeItems(strategy string) map[string]bool {
	set := map[string]bool{}
	for _, id := range e.cats.Items.Palette {
		def := e.cats.Items.Defs[id]
		if !def.AIArbitrageEnabled {
			continue
		}
		if def.IsContraband() && strategy != StrategySmuggler {
			continue
		}
		set[id] = true
	}
	return set
}

// AITrader returns a spawned AI trader by id, or nil. Loop-thread only.
func (e *Economy) AITrader(id string) *AITrader { return e.ais[id] }

// EvaluateContract decides whether the AI trader should take the contract:
// the estimated profit has to clear a risk-scaled threshold, and the cargo
// has to fit the hold.
func (e *Economy) EvaluateContract(aiID, contractID string) (bool, error) {
	ai := e.ais[aiID]
	if ai == nil {
		return false, errf(protocol.ErrUnknownTrader, "unknown ai trader %q", aiID)
	}
	c := e.contracts[contractID]
	if c == nil {
		return false, errf(protocol.ErrContractNotAvailable, "unknown contract %q", contractID)
	}
	if c.Status != ContractAvailable {
		return false, nil
	}

	volumes := map[string]float64{}
	for _, line := range c.RequiredCargo {
		def, ok := e.cats.Items.Defs[line.Item]
		if !ok {
			return false, nil
		}
		volumes[line.Item] = def.VolumePerUnit
	}
	if c.TotalCargoVolume(volumes) > ai.Cargo.Capacity() {
		return false, nil
	}

	cost := e.estimateCargoCost(c)
	estProfit := c.RewardCredits - cost
	threshold := int64(float64(e.cfg.AI.BaseContractThreshold) * (1.0 - ai.RiskTolerance))
	return estProfit >= threshold, nil
}

// estimateCargoCost prices the contract cargo at the origin market, falling
// back to catalog base prices for unlisted items.
func (e *Economy) estimateCargoCost(c *Contract) int64 {
	var cost int64
	origin := e.markets[c.OriginMarket]
	for _, line := range c.RequiredCargo {
		def := e.cats.Items.Defs[line.Item]
		unit := def.BasePrice
		if origin != nil {
			if p, err := origin.UnitPrice(line.Item, true); err == nil {
				unit = p
			}
		}
		cost += creditsOf(unit, line.Quantity)
	}
	return cost
}

// AttemptMarketManipulation buys up a fraction of an item's typical stock
// to squeeze supply and push the price up. Only traders spawned with the
// capability may try it.
func (e *Economy) AttemptMarketManipulation(aiID, marketID, itemID string) (*Transaction, error) {
	ai := e.ais[aiID]
	if ai == nil {
		return nil, errf(protocol.ErrUnknownTrader, "unknown ai trader %q", aiID)
	}
	if !ai.CanManipulate {
		return nil, errf(protocol.ErrTradeNotAllowed, "trader %s cannot manipulate markets", aiID)
	}
	m := e.markets[marketID]
	if m == nil {
		return nil, errf(protocol.ErrUnknownMarket, "unknown market %q", marketID)
	}
	def, ok := e.cats.Items.Defs[itemID]
	if !ok {
		return nil, errf(protocol.ErrUnknownItem, "unknown item %q", itemID)
	}
	typical := def.TypicalMarketStock
	if typical <= 0 {
		if entry := m.Entry(itemID); entry != nil {
			typical = entry.MaxStock
		}
	}
	units := int(float64(typical) * e.cfg.AI.ManipulationFraction)
	if units < 1 {
		units = 1
	}
	if entry := m.Entry(itemID); entry != nil && units > entry.Stock {
		units = entry.Stock
	}
	if units <= 0 {
		return nil, errf(protocol.ErrInsufficientStock, "%s has no %s to absorb", marketID, itemID)
	}
	txn, err := e.Buy(aiID, marketID, itemID, units)
	if err != nil {
		return nil, err
	}
	txn.Suspicious = true
	if n := len(e.ledger.history); n > 0 && e.ledger.history[n-1].ID == txn.ID {
		e.ledger.history[n-1].Suspicious = true
	}
	e.publishEvent(protocol.Event{
		"type":      "MANIPULATION",
		"trader_id": aiID,
		"market_id": marketID,
		"item":      itemID,
		"quantity":  units,
	})
	return txn, nil
}

// decisionIntervalHours is the game time between AI trade decisions.
func (e *Economy) decisionIntervalHours() float64 {
	return 24.0 / float64(e.cfg.AI.TradeFrequencyPerDay)
}

// tickAITraders steps every AI trader's haul state machine.
func (e *Economy) tickAITraders() {
	for _, id := range e.aiOrder {
		if ai := e.ais[id]; ai != nil {
			e.stepAI(ai)
		}
	}
}

func (e *Economy) stepAI(ai *AITrader) {
	now := e.gameHours
	if now < ai.busyUntilHours {
		return // in transit
	}

	if ai.contractID != "" {
		e.stepAIContract(ai)
		return
	}
	if ai.carryingUnits > 0 {
		e.aiExecuteSell(ai)
		return
	}

	if ai.current == nil {
		if now < ai.nextDecisionHours {
			return
		}
		ai.nextDecisionHours = now + e.decisionIntervalHours()
		if ai.HaulsContracts && e.aiPickContract(ai) {
			return
		}
		e.aiPickRoute(ai)
		if ai.current == nil && ai.CanManipulate {
			e.aiConsiderManipulation(ai)
		}
		return
	}

	e.aiExecuteBuy(ai)
}

// aiPickContract scans the board for a haul worth taking and accepts the
// first one that clears the risk threshold. Returns true when a contract was
// taken and the trader is headed for its origin.
func (e *Economy) aiPickContract(ai *AITrader) bool {
	for _, id := range e.contractOrder {
		c := e.contracts[id]
		if c == nil || c.Status != ContractAvailable {
			continue
		}
		if !ai.Knows(c.OriginMarket) || !ai.Knows(c.DestMarket) {
			continue
		}
		take, err := e.EvaluateContract(ai.ID, id)
		if err != nil || !take {
			continue
		}
		if _, err := e.AcceptContract(ai.ID, id); err != nil {
			continue
		}
		ai.contractID = id
		ai.contractCost = 0
		if ai.Location != c.OriginMarket {
			ai.busyUntilHours = e.gameHours + e.travelHours(ai, ai.Location, c.OriginMarket)
			ai.Location = c.OriginMarket
		}
		return true
	}
	return false
}

// stepAIContract runs one leg of an accepted contract: source the cargo at
// the origin, travel, deliver at the destination.
func (e *Economy) stepAIContract(ai *AITrader) {
	c := e.contracts[ai.contractID]
	if c == nil || c.Status != ContractActive || c.AcceptedBy != ai.ID {
		ai.contractID = ""
		ai.contractCost = 0
		return
	}

	if !contractCargoLoaded(ai, c) {
		for _, line := range c.RequiredCargo {
			need := line.Quantity - ai.Cargo.Quantity(line.Item)
			if need <= 0 {
				continue
			}
			txn, err := e.Buy(ai.ID, c.OriginMarket, line.Item, need)
			if err != nil {
				e.FailContract(ai.ID, c.ID, "could not source cargo")
				// Sell back whatever was already sourced, best effort.
				for _, l := range c.RequiredCargo {
					if n := ai.Cargo.Quantity(l.Item); n > 0 {
						e.Sell(ai.ID, c.OriginMarket, l.Item, n)
					}
				}
				ai.contractID = ""
				ai.contractCost = 0
				ai.FailedTrades++
				return
			}
			ai.contractCost += txn.Total
		}
		ai.busyUntilHours = e.gameHours + e.travelHours(ai, c.OriginMarket, c.DestMarket)
		ai.Location = c.DestMarket
		return
	}

	if _, err := e.CompleteContract(ai.ID, c.ID); err != nil {
		ai.FailedTrades++
	} else {
		ai.TotalProfit += c.RewardCredits - ai.contractCost
		ai.SuccessfulTrades++
	}
	ai.contractID = ""
	ai.contractCost = 0
}

func contractCargoLoaded(ai *AITrader, c *Contract) bool {
	for _, line := range c.RequiredCargo {
		if ai.Cargo.Quantity(line.Item) < line.Quantity {
			return false
		}
	}
	return true
}

// aiConsiderManipulation has an idle capable trader squeeze the market it is
// docked at. Risk tolerance sets the odds per decision; the absorbed stock
// rides in the hold as carried cargo and gets dumped on a later tick.
func (e *Economy) aiConsiderManipulation(ai *AITrader) {
	if ai.Location == "" || e.rng.Float64() >= ai.RiskTolerance {
		return
	}
	m := e.markets[ai.Location]
	if m == nil {
		return
	}
	for _, itemID := range m.itemOrder {
		if !ai.tradesItem(itemID) {
			continue
		}
		txn, err := e.AttemptMarketManipulation(ai.ID, ai.Location, itemID)
		if err != nil {
			continue
		}
		ai.carryingItem = txn.Item
		ai.carryingUnits = txn.Quantity
		ai.costBasis = txn.Total
		return
	}
}

func (e *Economy) aiPickRoute(ai *AITrader) {
	routes, err := e.FindBestRoutes(ai.ID, e.cfg.AI.MaxRoutesTracked)
	if err != nil {
		return
	}
	ai.routes = routes
	for i := range routes {
		r := routes[i]
		// Need funds for at least one unit.
		if ai.Wallet.Credits() < creditsOf(r.BuyPrice, 1) {
			continue
		}
		ai.current = &r
		if ai.Location != r.OriginMarket {
			ai.busyUntilHours = e.gameHours + e.travelHours(ai, ai.Location, r.OriginMarket)
			ai.Location = r.OriginMarket
		}
		return
	}
}

func (e *Economy) aiExecuteBuy(ai *AITrader) {
	r := ai.current
	units := e.affordableUnits(ai, r)
	if units <= 0 {
		ai.current = nil
		ai.FailedTrades++
		return
	}
	txn, err := e.Buy(ai.ID, r.OriginMarket, r.Item, units)
	if err != nil {
		ai.current = nil
		ai.FailedTrades++
		return
	}
	ai.carryingItem = r.Item
	ai.carryingUnits = units
	ai.costBasis = txn.Total
	ai.busyUntilHours = e.gameHours + r.TravelHours
	ai.Location = r.DestMarket
}

func (e *Economy) aiExecuteSell(ai *AITrader) {
	txn, err := e.Sell(ai.ID, ai.Location, ai.carryingItem, ai.carryingUnits)
	if err != nil {
		// Market conditions moved against us; find another buyer for the
		// cargo instead of deadlocking on it.
		ai.current = nil
		ai.FailedTrades++
		e.aiRerouteCargo(ai)
		return
	}
	ai.TotalProfit += txn.Total - ai.costBasis
	ai.SuccessfulTrades++
	ai.carryingItem = ""
	ai.carryingUnits = 0
	ai.costBasis = 0
	ai.current = nil
}

// aiRerouteCargo redirects cargo stuck in the hold after a failed sale to
// the best paying alternative market. With no buyer anywhere the cargo is
// jettisoned and the cost written off, freeing the hold for the next route.
func (e *Economy) aiRerouteCargo(ai *AITrader) {
	if dest, ok := e.bestSellMarket(ai, ai.carryingItem, ai.Location); ok {
		ai.busyUntilHours = e.gameHours + e.travelHours(ai, ai.Location, dest)
		ai.Location = dest
		return
	}
	if err := ai.Cargo.Remove(ai.carryingItem, ai.carryingUnits); err == nil {
		ai.TotalProfit -= ai.costBasis
	}
	ai.carryingItem = ""
	ai.carryingUnits = 0
	ai.costBasis = 0
}

// bestSellMarket is the known market paying the most for the item that will
// actually deal with this trader, excluding the one it is docked at.
func (e *Economy) bestSellMarket(ai *AITrader, itemID, exclude string) (string, bool) {
	def, ok := e.cats.Items.Defs[itemID]
	if !ok {
		return "", false
	}
	bestID, bestPrice := "", 0.0
	for _, mid := range ai.KnownMarkets {
		if mid == exclude {
			continue
		}
		m := e.markets[mid]
		if m == nil || m.Entry(itemID) == nil || !m.def.AllowAITraders || !m.AllowsItem(def) {
			continue
		}
		if !m.AccessibleBy(e.reputation.Reputation(ai.ID, m.def.FactionID)) {
			continue
		}
		price, err := m.UnitPrice(itemID, false)
		if err != nil || price <= bestPrice {
			continue
		}
		bestID, bestPrice = mid, price
	}
	return bestID, bestID != ""
}

// affordableUnits bounds a route purchase by funds, hold space and the
// origin's live stock.
func (e *Economy) affordableUnits(ai *AITrader, r *TradeRoute) int {
	m := e.markets[r.OriginMarket]
	if m == nil {
		return 0
	}
	unit, err := m.UnitPrice(r.Item, true)
	if err != nil || unit <= 0 {
		return 0
	}
	byFunds := int(float64(ai.Wallet.Credits()) / unit)
	def := e.cats.Items.Defs[r.Item]
	bySpace := math.MaxInt32
	if def.VolumePerUnit > 0 {
		bySpace = int(ai.Cargo.AvailableSpace() / def.VolumePerUnit)
	}
	byStock := 0
	if entry := m.Entry(r.Item); entry != nil {
		byStock = entry.Stock
	}
	units := byFunds
	if bySpace < units {
		units = bySpace
	}
	if byStock < units {
		units = byStock
	}
	return units
}

// travelHours is the game time to move between two markets at this trader's
// speed.
func (e *Economy) travelHours(ai *AITrader, from, to string) float64 {
	if from == "" || from == to || ai.TravelSpeed <= 0 {
		return 0
	}
	return e.positions.Distance(from, to) / ai.TravelSpeed
}
