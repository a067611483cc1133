package economy

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Transaction direction, from the non-market party's point of view.
const (
	TxnBuy  = "BUY"  // trader bought from the market
	TxnSell = "SELL" // trader sold to the market
)

// Transaction is one settled trade. Immutable once recorded.
type Transaction struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Item      string  `json:"item"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     int64   `json:"total"` // credits, tax included
	Tax       int64   `json:"tax"`   // credits

	BuyerID  string `json:"buyer_id"`
	SellerID string `json:"seller_id"`
	MarketID string `json:"market_id"`

	GameHours float64 `json:"game_hours"`

	// Market state at settlement time, for later analysis.
	SupplyLevel float64  `json:"supply_level"`
	DemandLevel float64  `json:"demand_level"`
	Events      []string `json:"events,omitempty"`

	Contraband bool `json:"contraband,omitempty"`
	Suspicious bool `json:"suspicious,omitempty"`
}

// TraderOf returns the non-market party of the transaction.
func (t Transaction) TraderOf() string {
	if t.Type == TxnBuy {
		return t.BuyerID
	}
	return t.SellerID
}

// Ledger keeps the rolling transaction history and answers the analytics
// queries. Bounded: once maxHistory is exceeded the oldest entries drop.
type Ledger struct {
	history    []Transaction
	maxHistory int
}

func NewLedger(maxHistory int) *Ledger {
	if maxHistory <= 0 {
		maxHistory = 10000
	}
	return &Ledger{maxHistory: maxHistory}
}

func (l *Ledger) Len() int { return len(l.history) }

// Record appends a transaction, pruning the oldest entries past the cap.
func (l *Ledger) Record(t Transaction) {
	l.history = append(l.history, t)
	if over := len(l.history) - l.maxHistory; over > 0 {
		l.history = append(l.history[:0], l.history[over:]...)
	}
}

// window returns the transactions for itemID (empty = all items) whose
// timestamp is within windowHours before nowHours. windowHours <= 0 means
// the whole history.
func (l *Ledger) window(itemID string, windowHours, nowHours float64) []Transaction {
	var out []Transaction
	cutoff := nowHours - windowHours
	for _, t := range l.history {
		if itemID != "" && t.Item != itemID {
			continue
		}
		if windowHours > 0 && t.GameHours < cutoff {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TotalVolume sums traded units of the item inside the window.
func (l *Ledger) TotalVolume(itemID string, windowHours, nowHours float64) int {
	total := 0
	for _, t := range l.window(itemID, windowHours, nowHours) {
		total += t.Quantity
	}
	return total
}

// AveragePrice is the volume-weighted mean unit price inside the window.
// Returns 0 with ok=false when nothing traded.
func (l *Ledger) AveragePrice(itemID string, windowHours, nowHours float64) (float64, bool) {
	var value float64
	units := 0
	for _, t := range l.window(itemID, windowHours, nowHours) {
		value += t.UnitPrice * float64(t.Quantity)
		units += t.Quantity
	}
	if units == 0 {
		return 0, false
	}
	return value / float64(units), true
}

// PriceTrend compares the second half of the window against the first and
// returns the relative change: +0.10 means prices rose ten percent. The
// window is anchored at the item's most recent transaction. Returns ok=false
// when either half is empty or the early average is zero.
func (l *Ledger) PriceTrend(itemID string, windowHours float64) (float64, bool) {
	all := l.window(itemID, 0, 0)
	if len(all) < 2 {
		return 0, false
	}
	latest := all[len(all)-1].GameHours
	txns := all
	if windowHours > 0 {
		cutoff := latest - windowHours
		txns = txns[:0:0]
		for _, t := range all {
			if t.GameHours >= cutoff {
				txns = append(txns, t)
			}
		}
	}
	if len(txns) < 2 {
		return 0, false
	}
	half := 0.5 * span(txns)
	if windowHours > 0 {
		half = 0.5 * windowHours
	}
	mid := latest - half
	var earlySum, lateSum float64
	var earlyN, lateN int
	for _, t := range txns {
		if t.GameHours < mid {
			earlySum += t.UnitPrice
			earlyN++
		} else {
			lateSum += t.UnitPrice
			lateN++
		}
	}
	if earlyN == 0 || lateN == 0 {
		return 0, false
	}
	earlyAvg := earlySum / float64(earlyN)
	if earlyAvg == 0 {
		return 0, false
	}
	lateAvg := lateSum / float64(lateN)
	return (lateAvg - earlyAvg) / earlyAvg, true
}

func span(txns []Transaction) float64 {
	return txns[len(txns)-1].GameHours - txns[0].GameHours
}

// ItemVolume pairs an item with its traded units for TopTradedItems.
type ItemVolume struct {
	Item   string `json:"item"`
	Units  int    `json:"units"`
	Trades int    `json:"trades"`
}

// TopTradedItems returns the n most traded items by unit volume inside the
// window, ties broken by item id.
func (l *Ledger) TopTradedItems(n int, windowHours, nowHours float64) []ItemVolume {
	byItem := map[string]*ItemVolume{}
	for _, t := range l.window("", windowHours, nowHours) {
		iv := byItem[t.Item]
		if iv == nil {
			iv = &ItemVolume{Item: t.Item}
			byItem[t.Item] = iv
		}
		iv.Units += t.Quantity
		iv.Trades++
	}
	out := make([]ItemVolume, 0, len(byItem))
	for _, iv := range byItem {
		out = append(out, *iv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Units != out[j].Units {
			return out[i].Units > out[j].Units
		}
		return out[i].Item < out[j].Item
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ProfitLoss nets a trader's flows inside the window: credits received from
// sells minus credits spent on buys.
func (l *Ledger) ProfitLoss(traderID string, windowHours, nowHours float64) int64 {
	var net int64
	for _, t := range l.window("", windowHours, nowHours) {
		switch traderID {
		case t.SellerID:
			net += t.Total
		case t.BuyerID:
			net -= t.Total
		}
	}
	return net
}

// History returns the ledger contents, oldest first. The slice is shared;
// callers must not mutate it.
func (l *Ledger) History() []Transaction { return l.history }

var csvHeader = []string{
	"id", "type", "item", "quantity", "unit_price", "total", "tax",
	"buyer_id", "seller_id", "market_id", "game_hours",
	"supply_level", "demand_level", "events", "contraband", "suspicious",
}

// ExportCSV writes the full history as CSV, header first.
func (l *Ledger) ExportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range l.history {
		rec := []string{
			t.ID, t.Type, t.Item,
			strconv.Itoa(t.Quantity),
			strconv.FormatFloat(t.UnitPrice, 'f', -1, 64),
			strconv.FormatInt(t.Total, 10),
			strconv.FormatInt(t.Tax, 10),
			t.BuyerID, t.SellerID, t.MarketID,
			strconv.FormatFloat(t.GameHours, 'f', -1, 64),
			strconv.FormatFloat(t.SupplyLevel, 'f', -1, 64),
			strconv.FormatFloat(t.DemandLevel, 'f', -1, 64),
			strings.Join(t.Events, ";"),
			strconv.FormatBool(t.Contraband),
			strconv.FormatBool(t.Suspicious),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportCSV replaces the history with the rows from r, expecting the
// ExportCSV layout.
func (l *Ledger) ImportCSV(r io.Reader) error {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("ledger csv: %w", err)
	}
	if len(header) != len(csvHeader) {
		return fmt.Errorf("ledger csv: expected %d columns, got %d", len(csvHeader), len(header))
	}
	var history []Transaction
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("ledger csv: %w", err)
		}
		t, err := txnFromCSV(rec)
		if err != nil {
			return fmt.Errorf("ledger csv line %d: %w", line, err)
		}
		history = append(history, t)
	}
	l.history = history
	if over := len(l.history) - l.maxHistory; over > 0 {
		l.history = l.history[over:]
	}
	return nil
}

func txnFromCSV(rec []string) (Transaction, error) {
	var t Transaction
	if len(rec) != len(csvHeader) {
		return t, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(rec))
	}
	t.ID, t.Type, t.Item = rec[0], rec[1], rec[2]
	var err error
	if t.Quantity, err = strconv.Atoi(rec[3]); err != nil {
		return t, err
	}
	if t.UnitPrice, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return t, err
	}
	if t.Total, err = strconv.ParseInt(rec[5], 10, 64); err != nil {
		return t, err
	}
	if t.Tax, err = strconv.ParseInt(rec[6], 10, 64); err != nil {
		return t, err
	}
	t.BuyerID, t.SellerID, t.MarketID = rec[7], rec[8], rec[9]
	if t.GameHours, err = strconv.ParseFloat(rec[10], 64); err != nil {
		return t, err
	}
	if t.SupplyLevel, err = strconv.ParseFloat(rec[11], 64); err != nil {
		return t, err
	}
	if t.DemandLevel, err = strconv.ParseFloat(rec[12], 64); err != nil {
		return t, err
	}
	if rec[13] != "" {
		t.Events = strings.Split(rec[13], ";")
	}
	if t.Contraband, err = strconv.ParseBool(rec[14]); err != nil {
		return t, err
	}
	if t.Suspicious, err = strconv.ParseBool(rec[15]); err != nil {
		return t, err
	}
	return t, nil
}
