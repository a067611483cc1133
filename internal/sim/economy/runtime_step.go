package economy

import (
	"sort"

	"starhaul.sim/internal/protocol"
	"starhaul.sim/internal/sim/catalogs"
)

// updateMarkets advances every market by deltaHours: event expiry, the
// supply/demand/stock update, and the random event roll.
func (e *Economy) updateMarkets(deltaHours float64) {
	for _, id := range e.marketOrder {
		m := e.markets[id]

		for _, ev := range m.expireEvents(e.gameHours) {
			e.publishEvent(protocol.Event{
				"type":      "MARKET_EVENT_ENDED",
				"market_id": id,
				"event_id":  ev.Template.ID,
			})
		}

		m.update(deltaHours, e.gameHours)

		e.rollRandomEvent(m, deltaHours)
	}
}

// rollRandomEvent maybe starts a random event at the market. The catalog
// chance is per game day; scale it down to this tick's share of a day.
func (e *Economy) rollRandomEvent(m *Market, deltaHours float64) {
	chance := m.def.RandomEventChance
	if chance <= 0 || len(e.cats.Events.ByID) == 0 {
		return
	}
	if e.rng.Float64() >= chance*deltaHours/24.0 {
		return
	}
	tmpl, ok := e.pickEventTemplate()
	if !ok {
		return
	}
	ev := m.StartEvent(tmpl, e.gameHours)
	e.publishEvent(protocol.Event{
		"type":       "MARKET_EVENT_STARTED",
		"market_id":  m.ID(),
		"event_id":   tmpl.ID,
		"expires_at": ev.ExpiresAt,
	})
}

// pickEventTemplate draws an event template weighted by base_weight.
// Iterates templates in sorted id order so the draw is reproducible for a
// given seed.
func (e *Economy) pickEventTemplate() (tmpl catalogs.EventTemplate, ok bool) {
	ids := make([]string, 0, len(e.cats.Events.ByID))
	var totalWeight float64
	for id, t := range e.cats.Events.ByID {
		if t.BaseWeight > 0 {
			ids = append(ids, id)
			totalWeight += t.BaseWeight
		}
	}
	if totalWeight <= 0 {
		return tmpl, false
	}
	sort.Strings(ids)
	roll := e.rng.Float64() * totalWeight
	for _, id := range ids {
		t := e.cats.Events.ByID[id]
		roll -= t.BaseWeight
		if roll <= 0 {
			return t, true
		}
	}
	return e.cats.Events.ByID[ids[len(ids)-1]], true
}

// TriggerEvent force-starts an event template at a market. Loop-thread
// only; used by admin tooling and tests.
func (e *Economy) TriggerEvent(marketID, eventID string) (*MarketEvent, error) {
	m := e.markets[marketID]
	if m == nil {
		return nil, errf(protocol.ErrUnknownMarket, "unknown market %q", marketID)
	}
	tmpl, ok := e.cats.Events.ByID[eventID]
	if !ok {
		return nil, errf(protocol.ErrInternal, "unknown event template %q", eventID)
	}
	ev := m.StartEvent(tmpl, e.gameHours)
	e.publishEvent(protocol.Event{
		"type":       "MARKET_EVENT_STARTED",
		"market_id":  marketID,
		"event_id":   eventID,
		"expires_at": ev.ExpiresAt,
	})
	return ev, nil
}
