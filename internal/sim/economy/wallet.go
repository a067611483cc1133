package economy

import "math"

// Wallet is the credit store a trader trades out of. The economy never
// assumes where credits live; player wallets may be backed by an external
// progression system while AI traders use the in-memory account below.
type Wallet interface {
	Credits() int64
	// ModifyCredits applies a signed delta and returns the new balance.
	// Implementations must clamp at zero rather than go negative.
	ModifyCredits(delta int64) int64
}

// CreditAccount is the default in-memory Wallet. Not goroutine-safe; all
// access happens on the economy goroutine.
type CreditAccount struct {
	balance int64
}

func NewCreditAccount(initial int64) *CreditAccount {
	if initial < 0 {
		initial = 0
	}
	return &CreditAccount{balance: initial}
}

func (a *CreditAccount) Credits() int64 { return a.balance }

func (a *CreditAccount) ModifyCredits(delta int64) int64 {
	a.balance += delta
	if a.balance < 0 {
		a.balance = 0
	}
	return a.balance
}

// ReputationSource answers faction standing queries for market access gates.
type ReputationSource interface {
	// Reputation returns the trader's standing with a faction in -100..100.
	Reputation(traderID, factionID string) int
}

// staticReputation is the default source: everyone is neutral.
type staticReputation struct{}

func (staticReputation) Reputation(string, string) int { return 0 }

// PositionService resolves travel distances between markets. Route scoring
// divides profit by travel time, so the unit only has to be consistent.
type PositionService interface {
	Distance(fromMarketID, toMarketID string) float64
}

// mapPositions is the default PositionService: straight-line distance
// between the catalog positions of the two markets.
type mapPositions struct {
	pos map[string][3]float64
}

func (p *mapPositions) Distance(from, to string) float64 {
	a, okA := p.pos[from]
	b, okB := p.pos[to]
	if !okA || !okB {
		return 0
	}
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
