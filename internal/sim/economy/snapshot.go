package economy

import (
	"context"
	"fmt"
	"sort"

	"starhaul.sim/internal/persistence/snapshot"
)

type snapshotRequest struct {
	reply chan snapshot.SnapshotV1
}

// RequestSnapshot asks the running loop for a state capture. Safe from any
// goroutine; blocks until the loop answers, ctx expires or the economy
// stops.
func (e *Economy) RequestSnapshot(ctx context.Context) (snapshot.SnapshotV1, error) {
	req := snapshotRequest{reply: make(chan snapshot.SnapshotV1, 1)}
	select {
	case e.snapCh <- req:
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	case <-e.stopCh:
		return snapshot.SnapshotV1{}, fmt.Errorf("economy stopped")
	}
	select {
	case snap := <-req.reply:
		return snap, nil
	case <-ctx.Done():
		return snapshot.SnapshotV1{}, ctx.Err()
	}
}

const snapshotVersion = 1

// ExportSnapshot captures the full mutable state of the economy. Loop-thread
// only.
func (e *Economy) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:   snapshotVersion,
			EconomyID: e.cfg.ID,
			Tick:      e.tick,
		},
		Seed:      e.cfg.Seed,
		GameHours: e.gameHours,
		TimeScale: e.cfg.TimeScale,
		Counters: snapshot.CountersV1{
			NextTrader:      e.nextTraderNum,
			NextContract:    e.nextContractNum,
			NextTransaction: e.nextTxnNum,
		},
	}

	for _, id := range e.marketOrder {
		m := e.markets[id]
		mv := snapshot.MarketV1{
			ID:                    id,
			NextStockRefreshHours: m.nextStockRefreshHours,
		}
		for _, itemID := range m.itemOrder {
			entry := m.inventory[itemID]
			mv.Stock = append(mv.Stock, snapshot.StockV1{
				Item:     itemID,
				Stock:    entry.Stock,
				MaxStock: entry.MaxStock,
				Supply:   entry.Supply,
				Demand:   entry.Demand,
			})
		}
		for _, ev := range m.activeEvents {
			mv.Events = append(mv.Events, snapshot.EventV1{
				TemplateID: ev.Template.ID,
				StartedAt:  ev.StartedAt,
				ExpiresAt:  ev.ExpiresAt,
			})
		}
		snap.Markets = append(snap.Markets, mv)
	}

	for _, id := range e.sortedTraderIDs() {
		tr := e.traders[id]
		tv := snapshot.TraderV1{
			ID:   tr.ID,
			Name: tr.Name,
			Kind: tr.Kind,

			Credits:         tr.Wallet.Credits(),
			StartingCredits: tr.startingCredits,
			LastMilestone:   tr.lastMilestone,

			CargoCapacity: tr.Cargo.Capacity(),

			Location:     tr.Location,
			KnownMarkets: append([]string(nil), tr.KnownMarkets...),

			TotalBought: tr.TotalBought,
			TotalSold:   tr.TotalSold,
			TradeCount:  tr.TradeCount,

			ActiveContracts: append([]string(nil), tr.ActiveContracts...),
		}
		if len(tr.Cargo.counts) > 0 {
			tv.Cargo = make(map[string]int, len(tr.Cargo.counts))
			for item, n := range tr.Cargo.counts {
				tv.Cargo[item] = n
			}
		}
		if ai := e.ais[id]; ai != nil {
			st := &snapshot.AIStateV1{
				Strategy:        ai.Strategy,
				RiskTolerance:   ai.RiskTolerance,
				MinProfitMargin: ai.MinProfitMargin,
				TravelSpeed:     ai.TravelSpeed,
				CanManipulate:   ai.CanManipulate,
				HaulsContracts:  ai.HaulsContracts,

				CarryingItem:  ai.carryingItem,
				CarryingUnits: ai.carryingUnits,
				CostBasis:     ai.costBasis,
				ContractID:    ai.contractID,
				ContractCost:  ai.contractCost,

				BusyUntilHours:    ai.busyUntilHours,
				NextDecisionHours: ai.nextDecisionHours,

				TotalProfit:      ai.TotalProfit,
				SuccessfulTrades: ai.SuccessfulTrades,
				FailedTrades:     ai.FailedTrades,
			}
			if ai.current != nil {
				r := snapshot.RouteV1(*ai.current)
				st.Route = &r
			}
			if ai.tradeItems != nil {
				for item := range ai.tradeItems {
					st.TradeItems = append(st.TradeItems, item)
				}
				sort.Strings(st.TradeItems)
			}
			tv.AI = st
		}
		snap.Traders = append(snap.Traders, tv)
	}

	for _, id := range e.contractOrder {
		c := e.contracts[id]
		if c == nil {
			continue
		}
		cv := snapshot.ContractV1{
			ID:          c.ID,
			Title:       c.Title,
			Description: c.Description,
			IssuerID:    c.IssuerID,

			RequiredCargo: map[string]int{},
			OriginMarket:  c.OriginMarket,
			DestMarket:    c.DestMarket,

			TimeLimitHours: c.TimeLimitHours,

			RewardCredits:     c.RewardCredits,
			ReputationGain:    c.ReputationGain,
			CreditPenalty:     c.CreditPenalty,
			ReputationPenalty: c.ReputationPenalty,

			MinReputation: c.MinReputation,
			Repeatable:    c.Repeatable,

			Status:       c.Status,
			AcceptedBy:   c.AcceptedBy,
			AcceptedAt:   c.AcceptedAt,
			ExpiresAt:    c.ExpiresAt,
			ResolvedAt:   c.ResolvedAt,
			FailedReason: c.FailedReason,
		}
		for _, line := range c.RequiredCargo {
			cv.RequiredCargo[line.Item] += line.Quantity
		}
		snap.Contracts = append(snap.Contracts, cv)
	}

	for _, t := range e.ledger.history {
		snap.Ledger = append(snap.Ledger, snapshot.TransactionV1(t))
	}

	return snap
}

// ImportSnapshot restores the economy from a snapshot taken with the same
// catalogs. Existing runtime state is replaced. Loop-thread only.
func (e *Economy) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshotVersion {
		return fmt.Errorf("snapshot version %d not supported", snap.Header.Version)
	}

	e.tick = snap.Header.Tick
	e.gameHours = snap.GameHours
	e.nextTraderNum = snap.Counters.NextTrader
	e.nextContractNum = snap.Counters.NextContract
	e.nextTxnNum = snap.Counters.NextTransaction

	for _, mv := range snap.Markets {
		m := e.markets[mv.ID]
		if m == nil {
			return fmt.Errorf("snapshot market %q not in catalog", mv.ID)
		}
		m.nextStockRefreshHours = mv.NextStockRefreshHours
		for _, sv := range mv.Stock {
			entry := m.inventory[sv.Item]
			if entry == nil {
				return fmt.Errorf("snapshot market %q stocks unknown item %q", mv.ID, sv.Item)
			}
			entry.Stock = sv.Stock
			entry.MaxStock = sv.MaxStock
			entry.Supply = sv.Supply
			entry.Demand = sv.Demand
		}
		m.activeEvents = nil
		for _, ev := range mv.Events {
			tmpl, ok := e.cats.Events.ByID[ev.TemplateID]
			if !ok {
				continue // template removed from catalog; drop the instance
			}
			inst := newMarketEvent(tmpl, ev.StartedAt)
			inst.ExpiresAt = ev.ExpiresAt
			m.activeEvents = append(m.activeEvents, inst)
		}
	}

	e.traders = map[string]*Trader{}
	e.ais = map[string]*AITrader{}
	e.aiOrder = nil
	for _, tv := range snap.Traders {
		wallet := NewCreditAccount(tv.Credits)
		cargo := NewCargoHold(tv.CargoCapacity, &e.cats.Items)
		tr := newTrader(tv.ID, tv.Name, tv.Kind, wallet, cargo)
		tr.startingCredits = tv.StartingCredits
		tr.lastMilestone = tv.LastMilestone
		tr.Location = tv.Location
		tr.TotalBought = tv.TotalBought
		tr.TotalSold = tv.TotalSold
		tr.TradeCount = tv.TradeCount
		tr.ActiveContracts = append([]string(nil), tv.ActiveContracts...)
		for _, mid := range tv.KnownMarkets {
			tr.Discover(mid)
		}
		for _, item := range sortedKeys(tv.Cargo) {
			if err := cargo.Add(item, tv.Cargo[item]); err != nil {
				return fmt.Errorf("snapshot trader %s cargo: %w", tv.ID, err)
			}
		}
		e.traders[tv.ID] = tr

		if tv.AI != nil {
			ai := &AITrader{
				Trader:          tr,
				Strategy:        tv.AI.Strategy,
				RiskTolerance:   tv.AI.RiskTolerance,
				MinProfitMargin: tv.AI.MinProfitMargin,
				TravelSpeed:     tv.AI.TravelSpeed,
				CanManipulate:   tv.AI.CanManipulate,
				HaulsContracts:  tv.AI.HaulsContracts,

				carryingItem:  tv.AI.CarryingItem,
				carryingUnits: tv.AI.CarryingUnits,
				costBasis:     tv.AI.CostBasis,

				contractID:   tv.AI.ContractID,
				contractCost: tv.AI.ContractCost,

				busyUntilHours:    tv.AI.BusyUntilHours,
				nextDecisionHours: tv.AI.NextDecisionHours,

				TotalProfit:      tv.AI.TotalProfit,
				SuccessfulTrades: tv.AI.SuccessfulTrades,
				FailedTrades:     tv.AI.FailedTrades,
			}
			if tv.AI.Route != nil {
				r := TradeRoute(*tv.AI.Route)
				ai.current = &r
			}
			if len(tv.AI.TradeItems) > 0 {
				ai.tradeItems = make(map[string]bool, len(tv.AI.TradeItems))
				for _, item := range tv.AI.TradeItems {
					ai.tradeItems[item] = true
				}
			}
			e.ais[tv.ID] = ai
			e.aiOrder = append(e.aiOrder, tv.ID)
		}
	}

	e.contracts = map[string]*Contract{}
	e.contractOrder = nil
	for _, cv := range snap.Contracts {
		c := &Contract{
			ID:          cv.ID,
			Title:       cv.Title,
			Description: cv.Description,
			IssuerID:    cv.IssuerID,

			OriginMarket: cv.OriginMarket,
			DestMarket:   cv.DestMarket,

			TimeLimitHours: cv.TimeLimitHours,

			RewardCredits:     cv.RewardCredits,
			ReputationGain:    cv.ReputationGain,
			CreditPenalty:     cv.CreditPenalty,
			ReputationPenalty: cv.ReputationPenalty,

			MinReputation: cv.MinReputation,
			Repeatable:    cv.Repeatable,

			Status:       cv.Status,
			AcceptedBy:   cv.AcceptedBy,
			AcceptedAt:   cv.AcceptedAt,
			ExpiresAt:    cv.ExpiresAt,
			ResolvedAt:   cv.ResolvedAt,
			FailedReason: cv.FailedReason,
		}
		for _, item := range sortedKeys(cv.RequiredCargo) {
			c.RequiredCargo = append(c.RequiredCargo, ContractCargo{Item: item, Quantity: cv.RequiredCargo[item]})
		}
		e.contracts[c.ID] = c
		e.contractOrder = append(e.contractOrder, c.ID)
	}

	e.ledger = NewLedger(e.cfg.LedgerMaxHistory)
	for _, tv := range snap.Ledger {
		e.ledger.Record(Transaction(tv))
	}

	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
