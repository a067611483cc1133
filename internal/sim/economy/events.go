package economy

import "starhaul.sim/internal/sim/catalogs"

// MarketEvent is a live instance of an event template at one market.
type MarketEvent struct {
	Template    catalogs.EventTemplate
	StartedAt   float64 // game hours
	ExpiresAt   float64 // game hours, 0 = never
	affectedSet map[string]bool
}

func newMarketEvent(tmpl catalogs.EventTemplate, nowHours float64) *MarketEvent {
	ev := &MarketEvent{
		Template:  tmpl,
		StartedAt: nowHours,
	}
	if tmpl.DurationHours > 0 {
		ev.ExpiresAt = nowHours + tmpl.DurationHours
	}
	if len(tmpl.AffectedItems) > 0 {
		ev.affectedSet = make(map[string]bool, len(tmpl.AffectedItems))
		for _, id := range tmpl.AffectedItems {
			ev.affectedSet[id] = true
		}
	}
	return ev
}

// Affects reports whether the event touches the item. An event with no
// affected_items list touches everything.
func (ev *MarketEvent) Affects(itemID string) bool {
	return ev.affectedSet == nil || ev.affectedSet[itemID]
}

func (ev *MarketEvent) Expired(nowHours float64) bool {
	return ev.ExpiresAt > 0 && nowHours >= ev.ExpiresAt
}

// StartEvent activates an event template at this market. Stacked events
// multiply.
func (m *Market) StartEvent(tmpl catalogs.EventTemplate, nowHours float64) *MarketEvent {
	ev := newMarketEvent(tmpl, nowHours)
	m.activeEvents = append(m.activeEvents, ev)
	return ev
}

// expireEvents drops events past their end time and returns them.
func (m *Market) expireEvents(nowHours float64) []*MarketEvent {
	var expired []*MarketEvent
	kept := m.activeEvents[:0]
	for _, ev := range m.activeEvents {
		if ev.Expired(nowHours) {
			expired = append(expired, ev)
		} else {
			kept = append(kept, ev)
		}
	}
	m.activeEvents = kept
	return expired
}

func (m *Market) eventPriceMultiplier(itemID string) float64 {
	mult := 1.0
	for _, ev := range m.activeEvents {
		if ev.Affects(itemID) {
			mult *= ev.Template.PriceMultiplier
		}
	}
	return mult
}

func (m *Market) eventSupplyMultiplier(itemID string) float64 {
	mult := 1.0
	for _, ev := range m.activeEvents {
		if ev.Affects(itemID) {
			mult *= ev.Template.SupplyMultiplier
		}
	}
	return mult
}

func (m *Market) eventDemandMultiplier(itemID string) float64 {
	mult := 1.0
	for _, ev := range m.activeEvents {
		if ev.Affects(itemID) {
			mult *= ev.Template.DemandMultiplier
		}
	}
	return mult
}

// ActiveEventIDs lists the ids of events currently running here.
func (m *Market) ActiveEventIDs() []string {
	if len(m.activeEvents) == 0 {
		return nil
	}
	ids := make([]string, 0, len(m.activeEvents))
	for _, ev := range m.activeEvents {
		ids = append(ids, ev.Template.ID)
	}
	return ids
}
