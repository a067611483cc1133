package economy

// Trader kinds.
const (
	TraderPlayer = "PLAYER"
	TraderAI     = "AI"
)

// Trader is one trading party: wallet, cargo hold, and the markets it has
// discovered so far. Owned by the economy goroutine.
type Trader struct {
	ID   string
	Name string
	Kind string

	Wallet Wallet
	Cargo  *CargoHold

	// Location is the market the trader is currently docked at; empty for
	// traders that quote remotely.
	Location string

	// KnownMarkets keeps discovery order; route scans visit markets in this
	// order so earlier discoveries win score ties.
	KnownMarkets []string
	knownSet     map[string]bool

	startingCredits int64
	lastMilestone   int64

	TotalBought int64 // credits spent on buys
	TotalSold   int64 // credits received from sells
	TradeCount  int

	ActiveContracts []string
}

func newTrader(id, name, kind string, wallet Wallet, cargo *CargoHold) *Trader {
	return &Trader{
		ID:              id,
		Name:            name,
		Kind:            kind,
		Wallet:          wallet,
		Cargo:           cargo,
		knownSet:        map[string]bool{},
		startingCredits: wallet.Credits(),
	}
}

// Knows reports whether the trader has discovered the market.
func (tr *Trader) Knows(marketID string) bool { return tr.knownSet[marketID] }

// Discover adds a market to the trader's known list. Idempotent.
func (tr *Trader) Discover(marketID string) bool {
	if tr.knownSet[marketID] {
		return false
	}
	tr.knownSet[marketID] = true
	tr.KnownMarkets = append(tr.KnownMarkets, marketID)
	return true
}

// SessionProfit is credits gained since the trader joined (or since the
// last finance reset). Negative while underwater.
func (tr *Trader) SessionProfit() int64 {
	return tr.Wallet.Credits() - tr.startingCredits
}

// crossedMilestones returns the profit milestones newly passed, in order.
// Each fires once; a later dip below a milestone does not re-arm it.
func (tr *Trader) crossedMilestones(milestones []int64) []int64 {
	profit := tr.SessionProfit()
	var crossed []int64
	for _, m := range milestones {
		if m > tr.lastMilestone && profit >= m {
			crossed = append(crossed, m)
			tr.lastMilestone = m
		}
	}
	return crossed
}

// ResetFinances rebaselines the trader: profit tracking, milestones and
// trade counters start over from the current balance plus delta.
func (tr *Trader) ResetFinances(setCredits int64) {
	if setCredits >= 0 {
		tr.Wallet.ModifyCredits(setCredits - tr.Wallet.Credits())
	}
	tr.startingCredits = tr.Wallet.Credits()
	tr.lastMilestone = 0
	tr.TotalBought = 0
	tr.TotalSold = 0
	tr.TradeCount = 0
}

func (tr *Trader) dropContract(contractID string) {
	for i, id := range tr.ActiveContracts {
		if id == contractID {
			tr.ActiveContracts = append(tr.ActiveContracts[:i], tr.ActiveContracts[i+1:]...)
			return
		}
	}
}
