package protocol

// HELLO (client -> server). The session joins as a player at Spawn.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentName       string `json:"agent_name"`
	Spawn           [3]int `json:"spawn"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	AgentID         string      `json:"agent_id"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	PaletteDigest   string      `json:"palette_digest"`
}

type WorldParams struct {
	TickRateHz        int   `json:"tick_rate_hz"`
	FloorY            int   `json:"floor_y"`
	Seed              int64 `json:"seed"`
	SimDistanceChunks int   `json:"sim_distance_chunks"`
}

// Command kinds a session may send.
const (
	CmdMove       = "MOVE"
	CmdPlantSeed  = "PLANT_SEED"
	CmdUprootSeed = "UPROOT_SEED"
	CmdHarvest    = "HARVEST"
	CmdSpread     = "SPREAD"
	CmdPlace      = "PLACE"
	CmdBreak      = "BREAK"
)

// CMD (client -> server)
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	Pos             [3]int `json:"pos"`
	// PLACE: material id from the palette.
	Material string `json:"material,omitempty"`
	// UPROOT_SEED: seed agent planted by this session.
	AgentID string `json:"agent_id,omitempty"`
}

// RESULT (server -> client), one per CMD.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Tick            uint64 `json:"tick"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`

	AgentID string        `json:"agent_id,omitempty"`
	Spread  *SpreadResult `json:"spread,omitempty"`
	Drops   []Drop        `json:"drops,omitempty"`
}

type SpreadResult struct {
	Converted bool   `json:"converted"`
	Target    [3]int `json:"target"`
	Path      string `json:"path,omitempty"`
	Cell      string `json:"cell,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type Drop struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}
