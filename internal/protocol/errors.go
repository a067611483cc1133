package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Trade execution.
	ErrInvalidQuantity       = "E_INVALID_QUANTITY"
	ErrInsufficientStock     = "E_INSUFFICIENT_STOCK"
	ErrInsufficientFunds     = "E_INSUFFICIENT_FUNDS"
	ErrInsufficientCargoSpace = "E_INSUFFICIENT_CARGO_SPACE"
	ErrInsufficientCargo     = "E_INSUFFICIENT_CARGO"
	ErrMarketAccessDenied    = "E_MARKET_ACCESS_DENIED"
	ErrItemRestricted        = "E_ITEM_RESTRICTED"
	ErrTradeNotAllowed       = "E_TRADE_NOT_ALLOWED"

	// Contract lifecycle.
	ErrContractNotAvailable = "E_CONTRACT_NOT_AVAILABLE"
	ErrContractNotActive    = "E_CONTRACT_NOT_ACTIVE"
	ErrContractExpired      = "E_CONTRACT_EXPIRED"

	// Lookup/state.
	ErrUnknownMarket = "E_UNKNOWN_MARKET"
	ErrUnknownItem   = "E_UNKNOWN_ITEM"
	ErrUnknownTrader = "E_UNKNOWN_TRADER"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:        {},
	ErrInvalidQuantity:        {},
	ErrInsufficientStock:      {},
	ErrInsufficientFunds:      {},
	ErrInsufficientCargoSpace: {},
	ErrInsufficientCargo:      {},
	ErrMarketAccessDenied:     {},
	ErrItemRestricted:         {},
	ErrTradeNotAllowed:        {},
	ErrContractNotAvailable:   {},
	ErrContractNotActive:      {},
	ErrContractExpired:        {},
	ErrUnknownMarket:          {},
	ErrUnknownItem:            {},
	ErrUnknownTrader:          {},
	ErrInternal:               {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
