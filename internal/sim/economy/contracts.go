package economy

import (
	"starhaul.sim/internal/protocol"
)

// Contract lifecycle states.
const (
	ContractAvailable = "AVAILABLE"
	ContractActive    = "ACTIVE"
	ContractCompleted = "COMPLETED"
	ContractFailed    = "FAILED"
	ContractExpired   = "EXPIRED"
)

// ContractCargo is one line of a contract's required delivery.
type ContractCargo struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// Contract is a delivery job: haul the required cargo from origin to
// destination before the time limit runs out.
type Contract struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	IssuerID    string `json:"issuer_id,omitempty"` // faction or market

	RequiredCargo []ContractCargo `json:"required_cargo"`
	OriginMarket  string          `json:"origin_market"`
	DestMarket    string          `json:"dest_market"`

	TimeLimitHours float64 `json:"time_limit_hours"`

	RewardCredits     int64 `json:"reward_credits"`
	ReputationGain    int   `json:"reputation_gain,omitempty"`
	CreditPenalty     int64 `json:"credit_penalty,omitempty"`
	ReputationPenalty int   `json:"reputation_penalty,omitempty"`

	MinReputation int  `json:"min_reputation,omitempty"`
	Repeatable    bool `json:"repeatable,omitempty"`

	Status       string  `json:"status"`
	AcceptedBy   string  `json:"accepted_by,omitempty"`
	AcceptedAt   float64 `json:"accepted_at,omitempty"`   // game hours
	ExpiresAt    float64 `json:"expires_at,omitempty"`    // game hours
	ResolvedAt   float64 `json:"resolved_at,omitempty"`   // game hours
	FailedReason string  `json:"failed_reason,omitempty"`
}

// CanAccept reports whether a trader with the given standing may take the
// contract right now.
func (c *Contract) CanAccept(reputation int) bool {
	return c.Status == ContractAvailable && reputation >= c.MinReputation
}

func (c *Contract) IsExpired(nowHours float64) bool {
	return c.Status == ContractActive && c.ExpiresAt > 0 && nowHours >= c.ExpiresAt
}

// RemainingHours returns the game hours left before expiry, zero once the
// contract is no longer active.
func (c *Contract) RemainingHours(nowHours float64) float64 {
	if c.Status != ContractActive || c.ExpiresAt <= 0 {
		return 0
	}
	left := c.ExpiresAt - nowHours
	if left < 0 {
		return 0
	}
	return left
}

// TotalCargoVolume is the hold space the contract's cargo needs.
func (c *Contract) TotalCargoVolume(items map[string]float64) float64 {
	var total float64
	for _, line := range c.RequiredCargo {
		total += items[line.Item] * float64(line.Quantity)
	}
	return total
}

// accept moves AVAILABLE -> ACTIVE. Only valid from AVAILABLE; a completed,
// failed or expired contract never goes back without an explicit reset.
func (c *Contract) accept(traderID string, nowHours float64) error {
	if c.Status != ContractAvailable {
		return errf(protocol.ErrContractNotAvailable, "contract %s is %s", c.ID, c.Status)
	}
	c.Status = ContractActive
	c.AcceptedBy = traderID
	c.AcceptedAt = nowHours
	if c.TimeLimitHours > 0 {
		c.ExpiresAt = nowHours + c.TimeLimitHours
	} else {
		c.ExpiresAt = 0
	}
	return nil
}

// complete moves ACTIVE -> COMPLETED. Completing past the deadline instead
// expires the contract and reports failure.
func (c *Contract) complete(nowHours float64) error {
	if c.Status != ContractActive {
		return errf(protocol.ErrContractNotActive, "contract %s is %s", c.ID, c.Status)
	}
	if c.IsExpired(nowHours) {
		c.expire(nowHours)
		return errf(protocol.ErrContractExpired, "contract %s deadline passed", c.ID)
	}
	c.Status = ContractCompleted
	c.ResolvedAt = nowHours
	return nil
}

// fail moves ACTIVE -> FAILED (voluntary abandon or delivery loss).
func (c *Contract) fail(nowHours float64, reason string) error {
	if c.Status != ContractActive {
		return errf(protocol.ErrContractNotActive, "contract %s is %s", c.ID, c.Status)
	}
	c.Status = ContractFailed
	c.ResolvedAt = nowHours
	c.FailedReason = reason
	return nil
}

func (c *Contract) expire(nowHours float64) {
	c.Status = ContractExpired
	c.ResolvedAt = nowHours
	c.FailedReason = "deadline passed"
}

// reset returns a repeatable contract to the board.
func (c *Contract) reset() {
	c.Status = ContractAvailable
	c.AcceptedBy = ""
	c.AcceptedAt = 0
	c.ExpiresAt = 0
	c.ResolvedAt = 0
	c.FailedReason = ""
}
