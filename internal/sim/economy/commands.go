package economy

import (
	"starhaul.sim/internal/protocol"
)

// applyCommand executes one client command and sends the RESULT back on the
// trader's session.
func (e *Economy) applyCommand(env CommandEnvelope) {
	data, err := e.dispatch(env.TraderID, env.Cmd)
	res := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Ref:             env.Cmd.ID,
		GameHours:       e.gameHours,
	}
	if err != nil {
		res.OK = false
		res.Code = CodeOf(err)
		res.Message = err.Error()
	} else {
		res.OK = true
		res.Data = data
	}
	e.sendResult(env.TraderID, res)
}

func (e *Economy) dispatch(traderID string, cmd protocol.CommandMsg) (any, error) {
	switch cmd.Op {
	case protocol.OpQuote:
		return e.GetQuote(traderID, cmd.MarketID, cmd.ItemID)
	case protocol.OpBuy:
		return e.Buy(traderID, cmd.MarketID, cmd.ItemID, cmd.Quantity)
	case protocol.OpSell:
		return e.Sell(traderID, cmd.MarketID, cmd.ItemID, cmd.Quantity)

	case protocol.OpMarkets:
		return e.marketListing(traderID)
	case protocol.OpDiscoverMarket:
		return e.discoverMarket(traderID, cmd.MarketID)

	case protocol.OpRoutes:
		return e.FindBestRoutes(traderID, cmd.MaxRoutes)
	case protocol.OpArbitrage:
		return e.CalculateArbitrageOpportunity(traderID, cmd.ItemID)

	case protocol.OpLedgerVolume:
		if _, ok := e.cats.Items.Defs[cmd.ItemID]; !ok {
			return nil, errf(protocol.ErrUnknownItem, "unknown item %q", cmd.ItemID)
		}
		return map[string]any{
			"item":  cmd.ItemID,
			"units": e.ledger.TotalVolume(cmd.ItemID, cmd.WindowHours, e.gameHours),
		}, nil
	case protocol.OpLedgerAvgPrice:
		if _, ok := e.cats.Items.Defs[cmd.ItemID]; !ok {
			return nil, errf(protocol.ErrUnknownItem, "unknown item %q", cmd.ItemID)
		}
		avg, ok := e.ledger.AveragePrice(cmd.ItemID, cmd.WindowHours, e.gameHours)
		return map[string]any{"item": cmd.ItemID, "average_price": avg, "has_data": ok}, nil
	case protocol.OpLedgerTrend:
		if _, ok := e.cats.Items.Defs[cmd.ItemID]; !ok {
			return nil, errf(protocol.ErrUnknownItem, "unknown item %q", cmd.ItemID)
		}
		trend, ok := e.ledger.PriceTrend(cmd.ItemID, cmd.WindowHours)
		return map[string]any{"item": cmd.ItemID, "trend": trend, "has_data": ok}, nil
	case protocol.OpLedgerTopItems:
		return e.ledger.TopTradedItems(cmd.TopN, cmd.WindowHours, e.gameHours), nil
	case protocol.OpLedgerProfitLoss:
		return map[string]any{
			"trader_id": traderID,
			"net":       e.ledger.ProfitLoss(traderID, cmd.WindowHours, e.gameHours),
		}, nil

	case protocol.OpContracts:
		return e.contractListing(traderID)
	case protocol.OpContractAccept:
		return e.AcceptContract(traderID, cmd.ContractID)
	case protocol.OpContractComplete:
		return e.CompleteContract(traderID, cmd.ContractID)
	case protocol.OpContractFail:
		return e.FailContract(traderID, cmd.ContractID, cmd.Reason)

	case protocol.OpStatus:
		return e.traderStatus(traderID)

	default:
		return nil, errf(protocol.ErrProtoBadRequest, "unknown op %q", cmd.Op)
	}
}

// MarketSummary is the MARKETS listing entry for one known market.
type MarketSummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	MarketType string   `json:"market_type"`
	FactionID  string   `json:"faction_id,omitempty"`
	TaxRate    float64  `json:"tax_rate"`
	Items      []string `json:"items"`
	Events     []string `json:"events,omitempty"`
	Accessible bool     `json:"accessible"`
}

func (e *Economy) marketListing(traderID string) ([]MarketSummary, error) {
	tr := e.traders[traderID]
	if tr == nil {
		return nil, errf(protocol.ErrUnknownTrader, "unknown trader %q", traderID)
	}
	out := make([]MarketSummary, 0, len(tr.KnownMarkets))
	for _, id := range tr.KnownMarkets {
		m := e.markets[id]
		if m == nil {
			continue
		}
		rep := e.reputation.Reputation(traderID, m.def.FactionID)
		out = append(out, MarketSummary{
			ID:         id,
			Name:       m.def.Name,
			MarketType: m.def.MarketType,
			FactionID:  m.def.FactionID,
			TaxRate:    m.def.TaxRate,
			Items:      m.itemOrder,
			Events:     m.ActiveEventIDs(),
			Accessible: m.AccessibleBy(rep),
		})
	}
	return out, nil
}

func (e *Economy) discoverMarket(traderID, marketID string) (any, error) {
	tr := e.traders[traderID]
	if tr == nil {
		return nil, errf(protocol.ErrUnknownTrader, "unknown trader %q", traderID)
	}
	m := e.markets[marketID]
	if m == nil {
		return nil, errf(protocol.ErrUnknownMarket, "unknown market %q", marketID)
	}
	newlyFound := tr.Discover(marketID)
	return map[string]any{"market_id": marketID, "new": newlyFound}, nil
}

func (e *Economy) contractListing(traderID string) (any, error) {
	tr := e.traders[traderID]
	if tr == nil {
		return nil, errf(protocol.ErrUnknownTrader, "unknown trader %q", traderID)
	}
	rep := e.reputation.Reputation(traderID, "")
	available := e.AvailableContracts(rep)
	var active []*Contract
	for _, id := range tr.ActiveContracts {
		if c := e.contracts[id]; c != nil {
			active = append(active, c)
		}
	}
	return map[string]any{"available": available, "active": active}, nil
}

// TraderStatus is the STATUS payload: wallet, hold and progress in one view.
type TraderStatus struct {
	TraderID string `json:"trader_id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`

	Credits       int64 `json:"credits"`
	SessionProfit int64 `json:"session_profit"`

	CargoUsed     float64              `json:"cargo_used"`
	CargoCapacity float64              `json:"cargo_capacity"`
	Cargo         []protocol.ItemStack `json:"cargo,omitempty"`

	Location     string   `json:"location,omitempty"`
	KnownMarkets []string `json:"known_markets"`

	TotalBought int64 `json:"total_bought"`
	TotalSold   int64 `json:"total_sold"`
	TradeCount  int   `json:"trade_count"`

	ActiveContracts []string `json:"active_contracts,omitempty"`
}

func (e *Economy) traderStatus(traderID string) (*TraderStatus, error) {
	tr := e.traders[traderID]
	if tr == nil {
		return nil, errf(protocol.ErrUnknownTrader, "unknown trader %q", traderID)
	}
	return &TraderStatus{
		TraderID: tr.ID,
		Name:     tr.Name,
		Kind:     tr.Kind,

		Credits:       tr.Wallet.Credits(),
		SessionProfit: tr.SessionProfit(),

		CargoUsed:     tr.Cargo.UsedSpace(),
		CargoCapacity: tr.Cargo.Capacity(),
		Cargo:         tr.Cargo.Stacks(),

		Location:     tr.Location,
		KnownMarkets: tr.KnownMarkets,

		TotalBought: tr.TotalBought,
		TotalSold:   tr.TotalSold,
		TradeCount:  tr.TradeCount,

		ActiveContracts: tr.ActiveContracts,
	}, nil
}
