package economy

import (
	"sort"

	"starhaul.sim/internal/protocol"
	"starhaul.sim/internal/sim/catalogs"
)

// CargoHold tracks a trader's carried goods against a volume capacity.
// Quantities are whole units; volume comes from the item catalog.
type CargoHold struct {
	capacity float64
	items    *catalogs.ItemCatalog
	counts   map[string]int
	used     float64
}

func NewCargoHold(capacity float64, items *catalogs.ItemCatalog) *CargoHold {
	if capacity < 0 {
		capacity = 0
	}
	return &CargoHold{
		capacity: capacity,
		items:    items,
		counts:   map[string]int{},
	}
}

func (h *CargoHold) Capacity() float64       { return h.capacity }
func (h *CargoHold) UsedSpace() float64      { return h.used }
func (h *CargoHold) AvailableSpace() float64 { return h.capacity - h.used }

func (h *CargoHold) Utilization() float64 {
	if h.capacity <= 0 {
		return 0
	}
	return h.used / h.capacity
}

func (h *CargoHold) Quantity(itemID string) int { return h.counts[itemID] }

// HasSpaceFor reports whether quantity units of the item fit right now.
func (h *CargoHold) HasSpaceFor(itemID string, quantity int) bool {
	def, ok := h.items.Defs[itemID]
	if !ok {
		return false
	}
	return def.TotalVolume(quantity) <= h.AvailableSpace()+1e-9
}

// Add places quantity units into the hold. The hold is left unchanged on
// any failure.
func (h *CargoHold) Add(itemID string, quantity int) error {
	if quantity <= 0 {
		return errf(protocol.ErrInvalidQuantity, "quantity must be positive, got %d", quantity)
	}
	def, ok := h.items.Defs[itemID]
	if !ok {
		return errf(protocol.ErrUnknownItem, "unknown item %q", itemID)
	}
	vol := def.TotalVolume(quantity)
	if vol > h.AvailableSpace()+1e-9 {
		return errf(protocol.ErrInsufficientCargoSpace,
			"need %.1f cargo space for %d x %s, have %.1f", vol, quantity, itemID, h.AvailableSpace())
	}
	h.counts[itemID] += quantity
	h.used += vol
	return nil
}

// Remove takes quantity units out of the hold.
func (h *CargoHold) Remove(itemID string, quantity int) error {
	if quantity <= 0 {
		return errf(protocol.ErrInvalidQuantity, "quantity must be positive, got %d", quantity)
	}
	have := h.counts[itemID]
	if have < quantity {
		return errf(protocol.ErrInsufficientCargo, "have %d x %s, need %d", have, itemID, quantity)
	}
	def := h.items.Defs[itemID]
	if have == quantity {
		delete(h.counts, itemID)
	} else {
		h.counts[itemID] = have - quantity
	}
	h.used -= def.TotalVolume(quantity)
	if h.used < 0 {
		h.used = 0
	}
	return nil
}

func (h *CargoHold) Clear() {
	h.counts = map[string]int{}
	h.used = 0
}

// Stacks returns the hold contents sorted by item id.
func (h *CargoHold) Stacks() []protocol.ItemStack {
	out := make([]protocol.ItemStack, 0, len(h.counts))
	for id, n := range h.counts {
		out = append(out, protocol.ItemStack{Item: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}
