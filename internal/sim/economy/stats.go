package economy

// Stats accumulates per-window counters the loop publishes as Metrics.
type Stats struct {
	trades       uint64
	unitsTraded  uint64
	creditsMoved uint64
	contractsOK  uint64
	contractsBad uint64
}

func newStats() *Stats { return &Stats{} }

func (s *Stats) observeTrade(t Transaction) {
	s.trades++
	s.unitsTraded += uint64(t.Quantity)
	if t.Total > 0 {
		s.creditsMoved += uint64(t.Total)
	}
}

func (s *Stats) observeContract(completed bool) {
	if completed {
		s.contractsOK++
	} else {
		s.contractsBad++
	}
}

// Metrics is a point-in-time snapshot of loop health, readable from any
// goroutine via Economy.Metrics.
type Metrics struct {
	Tick      uint64  `json:"tick"`
	GameHours float64 `json:"game_hours"`

	Traders   int `json:"traders"`
	AITraders int `json:"ai_traders"`
	Sessions  int `json:"sessions"`

	Trades       uint64 `json:"trades"`
	UnitsTraded  uint64 `json:"units_traded"`
	CreditsMoved uint64 `json:"credits_moved"`

	ContractsCompleted uint64 `json:"contracts_completed"`
	ContractsFailed    uint64 `json:"contracts_failed"`

	LedgerSize int `json:"ledger_size"`
}

// Metrics returns the latest published snapshot. Safe from any goroutine.
func (e *Economy) Metrics() Metrics {
	m, _ := e.metrics.Load().(Metrics)
	return m
}

func (e *Economy) publishMetrics() {
	e.metrics.Store(Metrics{
		Tick:      e.tick,
		GameHours: e.gameHours,

		Traders:   len(e.traders),
		AITraders: len(e.ais),
		Sessions:  len(e.sessions),

		Trades:       e.stats.trades,
		UnitsTraded:  e.stats.unitsTraded,
		CreditsMoved: e.stats.creditsMoved,

		ContractsCompleted: e.stats.contractsOK,
		ContractsFailed:    e.stats.contractsBad,

		LedgerSize: e.ledger.Len(),
	})
}
