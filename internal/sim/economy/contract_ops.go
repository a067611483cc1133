package economy

import (
	"starhaul.sim/internal/protocol"
)

// AcceptContract moves an AVAILABLE contract to ACTIVE for the trader. The
// deadline clock starts now.
func (e *Economy) AcceptContract(traderID, contractID string) (*Contract, error) {
	tr := e.traders[traderID]
	if tr == nil {
		return nil, errf(protocol.ErrUnknownTrader, "unknown trader %q", traderID)
	}
	c := e.contracts[contractID]
	if c == nil {
		return nil, errf(protocol.ErrContractNotAvailable, "unknown contract %q", contractID)
	}
	rep := e.reputation.Reputation(traderID, c.IssuerID)
	if c.Status == ContractAvailable && rep < c.MinReputation {
		return nil, errf(protocol.ErrMarketAccessDenied,
			"contract %s requires reputation %d, have %d", contractID, c.MinReputation, rep)
	}
	if err := c.accept(traderID, e.gameHours); err != nil {
		return nil, err
	}
	tr.ActiveContracts = append(tr.ActiveContracts, c.ID)
	e.publishContractEvent(c, "CONTRACT_ACCEPTED")
	return c, nil
}

// CompleteContract delivers an ACTIVE contract: the required cargo leaves
// the trader's hold and the reward pays out. Completing after the deadline
// expires the contract instead and the penalty applies.
func (e *Economy) CompleteContract(traderID, contractID string) (*Contract, error) {
	tr := e.traders[traderID]
	if tr == nil {
		return nil, errf(protocol.ErrUnknownTrader, "unknown trader %q", traderID)
	}
	c := e.contracts[contractID]
	if c == nil || c.AcceptedBy != traderID {
		return nil, errf(protocol.ErrContractNotActive, "no active contract %q for %s", contractID, traderID)
	}
	if c.IsExpired(e.gameHours) {
		e.expireContract(c)
		return nil, errf(protocol.ErrContractExpired, "contract %s deadline passed", c.ID)
	}
	for _, line := range c.RequiredCargo {
		if tr.Cargo.Quantity(line.Item) < line.Quantity {
			return nil, errf(protocol.ErrInsufficientCargo,
				"contract %s needs %d x %s, holding %d", c.ID, line.Quantity, line.Item, tr.Cargo.Quantity(line.Item))
		}
	}
	if err := c.complete(e.gameHours); err != nil {
		return nil, err
	}
	for _, line := range c.RequiredCargo {
		tr.Cargo.Remove(line.Item, line.Quantity)
	}
	tr.Wallet.ModifyCredits(c.RewardCredits)
	tr.dropContract(c.ID)
	e.stats.observeContract(true)
	e.publishContractEvent(c, "CONTRACT_COMPLETED")

	for _, milestone := range tr.crossedMilestones(e.cfg.ProfitMilestones) {
		e.publishEvent(protocol.Event{
			"type":      "MILESTONE",
			"trader_id": tr.ID,
			"milestone": milestone,
			"profit":    tr.SessionProfit(),
		})
	}
	return c, nil
}

// FailContract abandons an ACTIVE contract. The credit penalty is charged
// immediately.
func (e *Economy) FailContract(traderID, contractID, reason string) (*Contract, error) {
	tr := e.traders[traderID]
	if tr == nil {
		return nil, errf(protocol.ErrUnknownTrader, "unknown trader %q", traderID)
	}
	c := e.contracts[contractID]
	if c == nil || c.AcceptedBy != traderID {
		return nil, errf(protocol.ErrContractNotActive, "no active contract %q for %s", contractID, traderID)
	}
	if reason == "" {
		reason = "abandoned"
	}
	if err := c.fail(e.gameHours, reason); err != nil {
		return nil, err
	}
	e.applyContractPenalty(tr, c)
	tr.dropContract(c.ID)
	e.stats.observeContract(false)
	e.publishContractEvent(c, "CONTRACT_FAILED")
	return c, nil
}

func (e *Economy) expireContract(c *Contract) {
	c.expire(e.gameHours)
	if tr := e.traders[c.AcceptedBy]; tr != nil {
		e.applyContractPenalty(tr, c)
		tr.dropContract(c.ID)
	}
	e.stats.observeContract(false)
	e.publishContractEvent(c, "CONTRACT_EXPIRED")
}

func (e *Economy) applyContractPenalty(tr *Trader, c *Contract) {
	if c.CreditPenalty > 0 {
		tr.Wallet.ModifyCredits(-c.CreditPenalty)
	}
}

// tickContracts expires overdue contracts and puts resolved repeatable ones
// back on the board.
func (e *Economy) tickContracts() {
	for _, id := range e.contractOrder {
		c := e.contracts[id]
		if c == nil {
			continue
		}
		if c.IsExpired(e.gameHours) {
			e.expireContract(c)
			continue
		}
		if c.Repeatable && c.ResolvedAt > 0 {
			c.reset()
			e.publishContractEvent(c, "CONTRACT_POSTED")
		}
	}
}

func (e *Economy) publishContractEvent(c *Contract, kind string) {
	ev := protocol.Event{
		"type":        kind,
		"contract_id": c.ID,
		"status":      c.Status,
		"origin":      c.OriginMarket,
		"dest":        c.DestMarket,
		"reward":      c.RewardCredits,
	}
	if c.AcceptedBy != "" {
		ev["trader_id"] = c.AcceptedBy
	}
	if c.FailedReason != "" {
		ev["reason"] = c.FailedReason
	}
	if c.Status == ContractFailed || c.Status == ContractExpired {
		if c.ReputationPenalty > 0 {
			ev["reputation_penalty"] = c.ReputationPenalty
		}
	}
	if c.Status == ContractCompleted && c.ReputationGain > 0 {
		ev["reputation_gain"] = c.ReputationGain
	}
	e.publishEvent(ev)
}
