package economy

import (
	"testing"

	"starhaul.sim/internal/protocol"
)

func TestTriggerEventMovesPrices(t *testing.T) {
	e := newTestEconomy(t)
	m := e.Market("M_ALPHA")
	entry := m.Entry("ORE")
	entry.Supply, entry.Demand = 1.0, 1.0

	before, err := m.UnitPrice("ORE", true)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !almostEqual(before, 50*1.2*1.05) {
		t.Fatalf("baseline = %v, want 63", before)
	}

	ev, err := e.TriggerEvent("M_ALPHA", "EV_SHORTAGE")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if ev.ExpiresAt != 24 {
		t.Fatalf("expires at %v, want 24", ev.ExpiresAt)
	}

	// Shortage doubles the internal price, which the 2x deviation ceiling
	// just admits.
	after, err := m.UnitPrice("ORE", true)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !almostEqual(after, 100*1.2*1.05) {
		t.Fatalf("shortage price = %v, want 126", after)
	}

	// Rations ignore market events entirely.
	flat, err := m.UnitPrice("RATIONS", true)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !almostEqual(flat, 12.6) {
		t.Fatalf("rations price = %v, want 12.6", flat)
	}

	if ids := m.ActiveEventIDs(); len(ids) != 1 || ids[0] != "EV_SHORTAGE" {
		t.Fatalf("active events: %v", ids)
	}
}

func TestEventShiftsDriftTargets(t *testing.T) {
	e := newTestEconomy(t)
	m := e.Market("M_ALPHA")
	entry := m.Entry("ORE")
	entry.Supply, entry.Demand = 1.0, 1.0

	if _, err := e.TriggerEvent("M_ALPHA", "EV_SHORTAGE"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	// Levels now drift toward the event's 0.5 / 1.5 targets instead of 1.0,
	// closing a tenth of the gap per hour.
	m.update(1, 1)
	if !almostEqual(entry.Supply, 0.95) || !almostEqual(entry.Demand, 1.05) {
		t.Fatalf("after 1h: supply=%v demand=%v, want 0.95/1.05", entry.Supply, entry.Demand)
	}
}

func TestEventExpiry(t *testing.T) {
	e := newTestEconomy(t)
	events := make(chan protocol.Event, 256)
	e.AddListener(events)

	if _, err := e.TriggerEvent("M_ALPHA", "EV_SHORTAGE"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	e.AdvanceHours(25)

	if ids := e.Market("M_ALPHA").ActiveEventIDs(); len(ids) != 0 {
		t.Fatalf("event still active: %v", ids)
	}

	var started, ended bool
	for {
		select {
		case ev := <-events:
			switch ev["type"] {
			case "MARKET_EVENT_STARTED":
				started = true
			case "MARKET_EVENT_ENDED":
				ended = true
				if ev["market_id"] != "M_ALPHA" || ev["event_id"] != "EV_SHORTAGE" {
					t.Fatalf("bad end event: %v", ev)
				}
			}
		default:
			if !started || !ended {
				t.Fatalf("lifecycle events missing: started=%v ended=%v", started, ended)
			}
			return
		}
	}
}

func TestTriggerEventRejections(t *testing.T) {
	e := newTestEconomy(t)

	_, err := e.TriggerEvent("M_NOWHERE", "EV_SHORTAGE")
	wantCode(t, err, "E_UNKNOWN_MARKET")

	_, err = e.TriggerEvent("M_ALPHA", "EV_NOPE")
	wantCode(t, err, "E_INTERNAL")
}
