package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	TraderName      string     `json:"trader_name"`
	MaxQueue        int        `json:"max_queue,omitempty"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	TraderID        string         `json:"trader_id"`
	EconomyParams   EconomyParams  `json:"economy_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type EconomyParams struct {
	UpdateIntervalMs int     `json:"update_interval_ms"`
	TimeScale        float64 `json:"time_scale"`
	Markets          int     `json:"markets"`
	Seed             int64   `json:"seed"`
}

type CatalogDigests struct {
	ItemsDigest   string `json:"items_digest"`
	MarketsDigest string `json:"markets_digest"`
	EventsDigest  string `json:"events_digest"`
	ItemCount     int    `json:"item_count"`
	MarketCount   int    `json:"market_count"`
}

// COMMAND (client -> server): one trade/query operation.
// Op selects the fields that matter; the server rejects unknown ops.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"` // client-chosen, echoed in RESULT
	Op              string `json:"op"`

	MarketID string `json:"market_id,omitempty"`
	ItemID   string `json:"item_id,omitempty"`
	Quantity int    `json:"quantity,omitempty"`

	// Ledger queries.
	WindowHours float64 `json:"window_hours,omitempty"`
	TopN        int     `json:"top_n,omitempty"`

	// Route queries.
	MaxRoutes int `json:"max_routes,omitempty"`

	// Contract operations.
	ContractID string `json:"contract_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Command ops.
const (
	OpQuote            = "QUOTE"
	OpBuy              = "BUY"
	OpSell             = "SELL"
	OpMarkets          = "MARKETS"
	OpDiscoverMarket   = "DISCOVER_MARKET"
	OpRoutes           = "ROUTES"
	OpArbitrage        = "ARBITRAGE"
	OpLedgerVolume     = "LEDGER_VOLUME"
	OpLedgerAvgPrice   = "LEDGER_AVG_PRICE"
	OpLedgerTrend      = "LEDGER_TREND"
	OpLedgerTopItems   = "LEDGER_TOP_ITEMS"
	OpLedgerProfitLoss = "LEDGER_PROFIT_LOSS"
	OpContracts        = "CONTRACTS"
	OpContractAccept   = "CONTRACT_ACCEPT"
	OpContractComplete = "CONTRACT_COMPLETE"
	OpContractFail     = "CONTRACT_FAIL"
	OpStatus           = "STATUS"
)

// RESULT (server -> client)
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	GameHours       float64 `json:"game_hours"`

	Data any `json:"data,omitempty"`
}

// Event is a loosely-typed notification pushed to sessions and observers.
type Event map[string]interface{}

// EVENT (server -> client) wrapper for one Event.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Event           Event  `json:"event"`
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}
