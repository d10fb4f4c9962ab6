// Package framedto holds the JSON messages exchanged with the presentation
// bridge.
package framedto

// Message types carried in the "type" field.
const (
	TypeSpawn    = "spawn"
	TypeDespawn  = "despawn"
	TypeFrame    = "frame"
	TypeStatus   = "status"
	TypeSnapshot = "snapshot"
	TypeInput    = "input"
)

// Piece is a newly created visual.
type Piece struct {
	ID    int     `json:"id"`
	Kind  string  `json:"kind"`
	Asset string  `json:"asset"`
	Cell  string  `json:"cell"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

type Spawn struct {
	Type   string `json:"type"`
	GameID string `json:"game_id"`
	Piece  Piece  `json:"piece"`
}

type Despawn struct {
	Type   string `json:"type"`
	GameID string `json:"game_id"`
	ID     int    `json:"id"`
}

// FramePiece is the drawn position of one visual on one tick.
type FramePiece struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

type Frame struct {
	Type   string       `json:"type"`
	GameID string       `json:"game_id"`
	Tick   uint64       `json:"tick"`
	Pieces []FramePiece `json:"pieces"`
}

type Status struct {
	Type   string `json:"type"`
	GameID string `json:"game_id"`
	State  string `json:"state"`
	UI     string `json:"ui"`
	Turn   string `json:"turn"`
	Time   string `json:"time"`
	Next   string `json:"next"`
}

// Snapshot carries a rendered board after a commit. PNG is base64.
type Snapshot struct {
	Type   string `json:"type"`
	GameID string `json:"game_id"`
	Ply    int    `json:"ply"`
	Move   string `json:"move"`
	FEN    string `json:"fen,omitempty"`
	PNG    string `json:"png"`
}

// Input is an inbound control event. Kind uses the names click, new_game,
// toggle_side, time_up, time_down, set_time and dump_moves; Side is 1 for
// White and 2 for Black.
type Input struct {
	Type    string  `json:"type"`
	Kind    string  `json:"kind"`
	Cell    string  `json:"cell,omitempty"`
	Side    int     `json:"side,omitempty"`
	Seconds float64 `json:"seconds,omitempty"`
}

// Health is the bridge's GET /health answer.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
