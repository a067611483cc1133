// Package observerproto defines the read-only observer wire protocol: a
// loopback-only stream of economy events plus a bootstrap summary, separate
// from the trader protocol so dashboards never gain trade capability.
package observerproto

import "starhaul.sim/internal/protocol"

const Version = "1.0"

// SUBSCRIBE (client -> server): start or update an event subscription.
type SubscribeMsg struct {
	Type            string `json:"type"` // "SUBSCRIBE"
	ProtocolVersion string `json:"protocol_version"`

	// Kinds filters event types ("TRADE", "MILESTONE", ...). Empty = all.
	Kinds []string `json:"kinds,omitempty"`

	// Markets filters by market id. Empty = all.
	Markets []string `json:"markets,omitempty"`
}

// EVENT (server -> client): one economy event.
type EventMsg struct {
	Type            string         `json:"type"` // "EVENT"
	ProtocolVersion string         `json:"protocol_version"`
	Event           protocol.Event `json:"event"`
}

// BootstrapResponse is the GET /observer/bootstrap payload.
type BootstrapResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	EconomyID       string `json:"economy_id"`

	EconomyParams EconomyParams   `json:"economy_params"`
	Markets       []MarketSummary `json:"markets"`

	Metrics any `json:"metrics"`
}

type EconomyParams struct {
	UpdateIntervalMs int     `json:"update_interval_ms"`
	TimeScale        float64 `json:"time_scale"`
	Seed             int64   `json:"seed"`
}

type MarketSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MarketType string `json:"market_type"`
	FactionID  string `json:"faction_id,omitempty"`
	Items      int    `json:"items"`
}
