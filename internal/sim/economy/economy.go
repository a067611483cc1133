package economy

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"starhaul.sim/internal/protocol"
	"starhaul.sim/internal/sim/catalogs"
)

// TransactionSink receives every settled transaction, in order. Sinks must
// not block; slow consumers buffer internally.
type TransactionSink interface {
	AppendTransaction(Transaction)
}

// Economy is one simulated trading economy: markets, traders, contracts and
// the transaction ledger. All mutable state is owned by the single goroutine
// running Run; transports talk to it over channels.
type Economy struct {
	cfg  Config
	cats *catalogs.Catalogs

	tick      uint64
	gameHours float64

	markets     map[string]*Market
	marketOrder []string

	traders map[string]*Trader
	ais     map[string]*AITrader
	aiOrder []string

	contracts     map[string]*Contract
	contractOrder []string

	ledger *Ledger

	reputation ReputationSource
	positions  PositionService

	rng *rand.Rand

	nextTraderNum   uint64
	nextContractNum uint64
	nextTxnNum      uint64

	inbox   chan CommandEnvelope
	joinCh  chan joinRequest
	leaveCh chan string
	snapCh  chan snapshotRequest
	stopCh  chan struct{}
	stopOnce sync.Once

	sessions map[string]*Session // by trader id

	listeners []chan<- protocol.Event
	txnSinks  []TransactionSink

	// Events produced during the current step, flushed at the end of it.
	pendingEvents []protocol.Event

	stats   *Stats
	metrics atomic.Value // Metrics
}

// New builds an economy from the loaded catalogs. Markets start at their
// catalog stock levels and the clock at zero game hours.
func New(cfg Config, cats *catalogs.Catalogs) *Economy {
	cfg.applyDefaults()

	e := &Economy{
		cfg:       cfg,
		cats:      cats,
		markets:   map[string]*Market{},
		traders:   map[string]*Trader{},
		ais:       map[string]*AITrader{},
		contracts: map[string]*Contract{},
		ledger:    NewLedger(cfg.LedgerMaxHistory),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		inbox:     make(chan CommandEnvelope, 256),
		joinCh:    make(chan joinRequest),
		leaveCh:   make(chan string, 16),
		snapCh:    make(chan snapshotRequest),
		stopCh:    make(chan struct{}),
		sessions:  map[string]*Session{},
	}
	e.reputation = staticReputation{}

	pos := map[string][3]float64{}
	for _, id := range cats.Markets.Palette {
		def := cats.Markets.Defs[id]
		e.markets[id] = newMarket(def, &cats.Items, &e.cfg)
		e.marketOrder = append(e.marketOrder, id)
		pos[id] = def.Position
	}
	e.positions = &mapPositions{pos: pos}

	e.stats = newStats()
	e.metrics.Store(Metrics{})
	return e
}

// SetReputationSource replaces the default neutral-standing source. Call
// before Run.
func (e *Economy) SetReputationSource(src ReputationSource) {
	if src != nil {
		e.reputation = src
	}
}

// SetPositionService replaces the catalog-position distance model. Call
// before Run.
func (e *Economy) SetPositionService(svc PositionService) {
	if svc != nil {
		e.positions = svc
	}
}

// AddTransactionSink registers a persistence sink. Call before Run.
func (e *Economy) AddTransactionSink(s TransactionSink) {
	if s != nil {
		e.txnSinks = append(e.txnSinks, s)
	}
}

// AddListener registers an observer channel for economy events. The send is
// non-blocking; a full listener misses events. Call before Run.
func (e *Economy) AddListener(ch chan<- protocol.Event) {
	if ch != nil {
		e.listeners = append(e.listeners, ch)
	}
}

func (e *Economy) Config() Config             { return e.cfg }
func (e *Economy) Catalogs() *catalogs.Catalogs { return e.cats }
func (e *Economy) Ledger() *Ledger            { return e.ledger }

// GameHours is the current simulation clock. Loop-thread only.
func (e *Economy) GameHours() float64 { return e.gameHours }

// Tick is the number of update steps taken. Loop-thread only.
func (e *Economy) Tick() uint64 { return e.tick }

// Market returns the live market, or nil. Loop-thread only.
func (e *Economy) Market(id string) *Market { return e.markets[id] }

// MarketIDs lists every market id in stable order.
func (e *Economy) MarketIDs() []string { return e.marketOrder }

// Trader returns any trader (player or AI) by id. Loop-thread only.
func (e *Economy) Trader(id string) *Trader { return e.traders[id] }

// Validate returns configuration warnings that are legal but probably
// indicate a mis-tuned catalog, one string per finding.
func (e *Economy) Validate() []string {
	var warnings []string
	for _, id := range e.marketOrder {
		def := e.markets[id].def
		if def.BuyMarkdown > def.SellMarkup {
			warnings = append(warnings,
				fmt.Sprintf("market %s: buy_markdown %.2f above sell_markup %.2f, instant round-trip profit",
					id, def.BuyMarkdown, def.SellMarkup))
		}
		if def.TaxRate < 0 || def.TaxRate > 1 {
			warnings = append(warnings, fmt.Sprintf("market %s: tax_rate %.2f outside [0,1]", id, def.TaxRate))
		}
	}
	return warnings
}

// CreateTrader registers a new player trader with a default wallet and hold.
// Loop-thread only; transports go through Join instead.
func (e *Economy) CreateTrader(name string) *Trader {
	e.nextTraderNum++
	id := fmt.Sprintf("TR%04d", e.nextTraderNum)
	wallet := NewCreditAccount(e.cfg.StartingCredits)
	cargo := NewCargoHold(e.cfg.AI.DefaultCargoCapacity, &e.cats.Items)
	tr := newTrader(id, name, TraderPlayer, wallet, cargo)
	e.traders[id] = tr
	return tr
}

// RemoveTrader drops a trader, abandoning its active contracts.
func (e *Economy) RemoveTrader(id string) {
	tr := e.traders[id]
	if tr == nil {
		return
	}
	for _, cid := range append([]string(nil), tr.ActiveContracts...) {
		if c := e.contracts[cid]; c != nil && c.Status == ContractActive {
			c.fail(e.gameHours, "trader left")
			e.publishContractEvent(c, "CONTRACT_FAILED")
		}
	}
	delete(e.traders, id)
	if _, isAI := e.ais[id]; isAI {
		delete(e.ais, id)
		for i, aid := range e.aiOrder {
			if aid == id {
				e.aiOrder = append(e.aiOrder[:i], e.aiOrder[i+1:]...)
				break
			}
		}
	}
}

// PostContract puts a contract on the board, assigning its id and setting it
// AVAILABLE. Loop-thread only.
func (e *Economy) PostContract(c Contract) *Contract {
	e.nextContractNum++
	c.ID = fmt.Sprintf("C%06d", e.nextContractNum)
	c.Status = ContractAvailable
	stored := c
	e.contracts[stored.ID] = &stored
	e.contractOrder = append(e.contractOrder, stored.ID)
	return &stored
}

// Contract returns a contract by id, or nil. Loop-thread only.
func (e *Economy) Contract(id string) *Contract { return e.contracts[id] }

// AvailableContracts lists contracts a trader with the given standing could
// accept, in posting order.
func (e *Economy) AvailableContracts(reputation int) []*Contract {
	var out []*Contract
	for _, id := range e.contractOrder {
		if c := e.contracts[id]; c != nil && c.CanAccept(reputation) {
			out = append(out, c)
		}
	}
	return out
}

func (e *Economy) nextTransactionID() string {
	e.nextTxnNum++
	return fmt.Sprintf("TX%08d", e.nextTxnNum)
}

// sortedTraderIDs is for deterministic iteration in snapshots and status.
func (e *Economy) sortedTraderIDs() []string {
	ids := make([]string, 0, len(e.traders))
	for id := range e.traders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
