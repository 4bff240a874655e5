// Package observerproto defines the read-only observer stream: an HTTP
// bootstrap document followed by one websocket message per tick.
package observerproto

// Version is the observer protocol version.
const Version = "1.0"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTick      = "TICK"
)

// SubscribeMsg is the first client message on the websocket and may be
// re-sent to change the filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Event types to forward. Empty forwards every tick, quiet ones included.
	EventTypes []string `json:"event_types,omitempty"`
}

// BootstrapResponse is served on GET .../observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	MaterialPalette []string    `json:"material_palette"`
	Agents          []Agent     `json:"agents"`
	TaintCells      int         `json:"taint_cells"`
}

type WorldParams struct {
	TickRateHz        int     `json:"tick_rate_hz"`
	ChunkSize         [3]int  `json:"chunk_size"`
	FloorY            int     `json:"floor_y"`
	Seed              int64   `json:"seed"`
	SimDistanceChunks int     `json:"sim_distance_chunks"`
	AuraBase          float32 `json:"aura_base"`
}

type Agent struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Pos    [3]int `json:"pos"`
	Status string `json:"status,omitempty"`
}

// TickMsg wraps one tick of the world event stream.
type TickMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	WorldID         string  `json:"world_id"`
	Tick            uint64  `json:"tick"`
	Digest          string  `json:"digest"`
	TaintCells      int     `json:"taint_cells"`
	Agents          int     `json:"agents"`
	Events          []Event `json:"events,omitempty"`
}

type Event struct {
	Type  string `json:"type"`
	Pos   [3]int `json:"pos"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Agent string `json:"agent,omitempty"`
}
