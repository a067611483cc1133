package economy

import (
	"math"

	"starhaul.sim/internal/protocol"
	"starhaul.sim/internal/sim/catalogs"
)

// Quote is a read-only price check: what one unit costs to buy and fetches
// on a sell at this market right now.
type Quote struct {
	MarketID string  `json:"market_id"`
	ItemID   string  `json:"item_id"`
	BuyPrice  float64 `json:"buy_price"`
	SellPrice float64 `json:"sell_price"`
	Stock     int     `json:"stock"`
	MaxStock  int     `json:"max_stock"`
	Supply    float64 `json:"supply"`
	Demand    float64 `json:"demand"`
	Events    []string `json:"events,omitempty"`
}

// GetQuote prices an item at a market without trading. Access gates apply
// the same as for a real trade.
func (e *Economy) GetQuote(traderID, marketID, itemID string) (*Quote, error) {
	tr, m, def, err := e.resolveTrade(traderID, marketID, itemID)
	if err != nil {
		return nil, err
	}
	if err := e.checkAccess(tr, m, def); err != nil {
		return nil, err
	}
	buy, err := m.UnitPrice(itemID, true)
	if err != nil {
		return nil, err
	}
	sell, _ := m.UnitPrice(itemID, false)
	entry := m.Entry(itemID)
	return &Quote{
		MarketID: marketID,
		ItemID:   itemID,
		BuyPrice: buy, SellPrice: sell,
		Stock: entry.Stock, MaxStock: entry.MaxStock,
		Supply: entry.Supply, Demand: entry.Demand,
		Events: m.ActiveEventIDs(),
	}, nil
}

// Buy settles a purchase of quantity units from the market into the
// trader's hold. Nothing changes hands unless every check passes.
func (e *Economy) Buy(traderID, marketID, itemID string, quantity int) (*Transaction, error) {
	if quantity <= 0 {
		return nil, errf(protocol.ErrInvalidQuantity, "quantity must be positive, got %d", quantity)
	}
	tr, m, def, err := e.resolveTrade(traderID, marketID, itemID)
	if err != nil {
		return nil, err
	}
	if err := e.checkAccess(tr, m, def); err != nil {
		return nil, err
	}
	if tr.Kind == TraderPlayer && !m.def.AllowPlayerBuying {
		return nil, errf(protocol.ErrTradeNotAllowed, "%s does not sell to independent traders", marketID)
	}
	if !m.IsItemInStock(itemID, quantity) {
		have := 0
		if entry := m.Entry(itemID); entry != nil {
			have = entry.Stock
		}
		return nil, errf(protocol.ErrInsufficientStock, "%s has %d x %s, need %d", marketID, have, itemID, quantity)
	}

	unit, err := m.UnitPrice(itemID, true)
	if err != nil {
		return nil, err
	}
	total := creditsOf(unit, quantity)
	if tr.Wallet.Credits() < total {
		return nil, errf(protocol.ErrInsufficientFunds, "need %d credits, have %d", total, tr.Wallet.Credits())
	}
	if !tr.Cargo.HasSpaceFor(itemID, quantity) {
		return nil, errf(protocol.ErrInsufficientCargoSpace,
			"need %.1f cargo space, have %.1f", def.TotalVolume(quantity), tr.Cargo.AvailableSpace())
	}

	// Settle.
	entry := m.Entry(itemID)
	txn := Transaction{
		ID:   e.nextTransactionID(),
		Type: TxnBuy,

		Item: itemID, Quantity: quantity,
		UnitPrice: unit, Total: total,
		Tax: taxOf(total, m.def.TaxRate),

		BuyerID: tr.ID, SellerID: marketID, MarketID: marketID,
		GameHours: e.gameHours,

		SupplyLevel: entry.Supply, DemandLevel: entry.Demand,
		Events: m.ActiveEventIDs(),

		Contraband: def.IsContraband(),
		Suspicious: def.IsContraband() && m.def.IsBlackMarket(),
	}

	tr.Wallet.ModifyCredits(-total)
	if err := tr.Cargo.Add(itemID, quantity); err != nil {
		// Space was checked above; refund rather than lose the credits.
		tr.Wallet.ModifyCredits(total)
		return nil, err
	}
	m.RecordTrade(itemID, quantity, true)
	tr.TotalBought += total
	tr.TradeCount++
	tr.Location = marketID

	e.settle(txn)
	return &txn, nil
}

// Sell settles a sale of quantity units from the trader's hold to the
// market.
func (e *Economy) Sell(traderID, marketID, itemID string, quantity int) (*Transaction, error) {
	if quantity <= 0 {
		return nil, errf(protocol.ErrInvalidQuantity, "quantity must be positive, got %d", quantity)
	}
	tr, m, def, err := e.resolveTrade(traderID, marketID, itemID)
	if err != nil {
		return nil, err
	}
	if err := e.checkAccess(tr, m, def); err != nil {
		return nil, err
	}
	if tr.Kind == TraderPlayer && !m.def.AllowPlayerSelling {
		return nil, errf(protocol.ErrTradeNotAllowed, "%s does not buy from independent traders", marketID)
	}
	if tr.Cargo.Quantity(itemID) < quantity {
		return nil, errf(protocol.ErrInsufficientCargo,
			"have %d x %s, need %d", tr.Cargo.Quantity(itemID), itemID, quantity)
	}

	unit, err := m.UnitPrice(itemID, false)
	if err != nil {
		return nil, err
	}
	total := creditsOf(unit, quantity)

	entry := m.Entry(itemID)
	txn := Transaction{
		ID:   e.nextTransactionID(),
		Type: TxnSell,

		Item: itemID, Quantity: quantity,
		UnitPrice: unit, Total: total,
		Tax: taxOf(total, m.def.TaxRate),

		BuyerID: marketID, SellerID: tr.ID, MarketID: marketID,
		GameHours: e.gameHours,

		SupplyLevel: entry.Supply, DemandLevel: entry.Demand,
		Events: m.ActiveEventIDs(),

		Contraband: def.IsContraband(),
		Suspicious: def.IsContraband() && m.def.IsBlackMarket(),
	}

	if err := tr.Cargo.Remove(itemID, quantity); err != nil {
		return nil, err
	}
	tr.Wallet.ModifyCredits(total)
	m.RecordTrade(itemID, quantity, false)
	tr.TotalSold += total
	tr.TradeCount++
	tr.Location = marketID

	e.settle(txn)

	for _, milestone := range tr.crossedMilestones(e.cfg.ProfitMilestones) {
		e.publishEvent(protocol.Event{
			"type":      "MILESTONE",
			"trader_id": tr.ID,
			"milestone": milestone,
			"profit":    tr.SessionProfit(),
		})
	}
	return &txn, nil
}

// resolveTrade looks up the three parties of a trade.
func (e *Economy) resolveTrade(traderID, marketID, itemID string) (*Trader, *Market, *catalogs.ItemDef, error) {
	tr := e.traders[traderID]
	if tr == nil {
		return nil, nil, nil, errf(protocol.ErrUnknownTrader, "unknown trader %q", traderID)
	}
	m := e.markets[marketID]
	if m == nil {
		return nil, nil, nil, errf(protocol.ErrUnknownMarket, "unknown market %q", marketID)
	}
	def, ok := e.cats.Items.Defs[itemID]
	if !ok {
		return nil, nil, nil, errf(protocol.ErrUnknownItem, "unknown item %q", itemID)
	}
	return tr, m, &def, nil
}

// checkAccess gates reputation, AI-trader admission and contraband. A trade
// that clears the gates also marks the market discovered for the trader.
func (e *Economy) checkAccess(tr *Trader, m *Market, def *catalogs.ItemDef) error {
	rep := e.reputation.Reputation(tr.ID, m.def.FactionID)
	if !m.AccessibleBy(rep) {
		return errf(protocol.ErrMarketAccessDenied,
			"%s requires reputation %d, have %d", m.def.ID, m.def.MinReputation, rep)
	}
	if tr.Kind == TraderAI && !m.def.AllowAITraders {
		return errf(protocol.ErrMarketAccessDenied, "%s does not admit automated traders", m.def.ID)
	}
	if !m.AllowsItem(*def) {
		return errf(protocol.ErrItemRestricted, "%s goods not traded at %s", def.Legality, m.def.ID)
	}
	tr.Discover(m.def.ID)
	return nil
}

// settle records the transaction everywhere it needs to go.
func (e *Economy) settle(txn Transaction) {
	e.ledger.Record(txn)
	for _, sink := range e.txnSinks {
		sink.AppendTransaction(txn)
	}
	e.stats.observeTrade(txn)
	e.publishEvent(protocol.Event{
		"type":       "TRADE",
		"txn_id":     txn.ID,
		"trade_type": txn.Type,
		"market_id":  txn.MarketID,
		"item":       txn.Item,
		"quantity":   txn.Quantity,
		"unit_price": txn.UnitPrice,
		"total":      txn.Total,
		"trader_id":  txn.TraderOf(),
	})
}

// creditsOf rounds a unit price times quantity to whole credits.
func creditsOf(unitPrice float64, quantity int) int64 {
	return int64(math.Round(unitPrice * float64(quantity)))
}

// taxOf extracts the tax component from a tax-inclusive total.
func taxOf(total int64, taxRate float64) int64 {
	if taxRate <= 0 {
		return 0
	}
	return total - int64(math.Round(float64(total)/(1.0+taxRate)))
}
