package protocol

import "encoding/json"

// WELCOME (server -> client), sent once after the upgrade.
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	Palette         []string    `json:"palette"`
	PaletteDigest   string      `json:"palette_digest"`
}

type WorldParams struct {
	TickRateHz int     `json:"tick_rate_hz"`
	SizeX      int     `json:"size_x"`
	SizeZ      int     `json:"size_z"`
	Seed       int64   `json:"seed"`
	CurveMode  string  `json:"curve_mode"`
	SagRatio   float64 `json:"sag_ratio"`
}

// CMD (client -> server). Which fields matter depends on Kind.
type CmdMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	Pos             *[3]int         `json:"pos,omitempty"`
	Hit             *[3]float64     `json:"hit,omitempty"`
	Normal          *[3]float64     `json:"normal,omitempty"`
	Block           string          `json:"block,omitempty"`
	From            *[3]int         `json:"from,omitempty"`
	To              *[3]int         `json:"to,omitempty"`
	Conductor       uint64          `json:"conductor,omitempty"`
	Player          *[3]float64     `json:"player,omitempty"`
	Scene           json.RawMessage `json:"scene,omitempty"`
}

// Client-only command kinds handled by the transport rather than the world.
const (
	KindExportScene = "export_scene"
)

// ACK (server -> client): outcome of one CMD.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}

// STATE (server -> client), at most one per tick.
type StateMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Tick            uint64           `json:"tick"`
	Blocks          int              `json:"blocks"`
	Poles           int              `json:"poles"`
	Conductors      []ConductorState `json:"conductors"`
	Challenge       ChallengeState   `json:"challenge"`
	History         HistoryState     `json:"history"`
}

type ConductorState struct {
	ID        uint64     `json:"id"`
	From      [3]float64 `json:"from"`
	To        [3]float64 `json:"to"`
	Powered   bool       `json:"powered"`
	Faulted   bool       `json:"faulted"`
	Colliding [][3]int   `json:"colliding,omitempty"`
	Phase     float64    `json:"phase"`
}

type ChallengeState struct {
	State     string `json:"state"`
	Budget    int    `json:"budget,omitempty"`
	Spent     int    `json:"spent,omitempty"`
	Remaining int    `json:"remaining,omitempty"`
	Stars     int    `json:"stars,omitempty"`
	Powered   bool   `json:"powered,omitempty"`
}

type HistoryState struct {
	Undo  int `json:"undo"`
	Redo  int `json:"redo"`
	Total int `json:"total"`
}

// SCENE (server -> client): reply to export_scene.
type SceneMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	AckFor          string          `json:"ack_for"`
	Scene           json.RawMessage `json:"scene"`
}

// ERROR (server -> client) for messages that could not be routed at all.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
