package ws

import (
	"encoding/json"

	"voxelsim/internal/meshing"
)

const (
	TypeHello   = "HELLO"
	TypeObserve = "OBSERVE"
	TypePlace   = "PLACE"
	TypeFluid   = "FLUID"

	TypeWelcome = "WELCOME"
	TypeChunk   = "CHUNK"
	TypeRelease = "RELEASE"
	TypeError   = "ERROR"
)

// Error codes sent in ERROR messages.
const (
	CodeBadMessage   = "bad_message"
	CodeUnknownBlock = "unknown_block"
	CodeRateLimited  = "rate_limited"
	CodeRejected     = "rejected"
)

type BaseMsg struct {
	Type string `json:"type"`
}

func decodeBase(b []byte) (BaseMsg, error) {
	var m BaseMsg
	err := json.Unmarshal(b, &m)
	return m, err
}

type HelloMsg struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type ObserveMsg struct {
	Type string     `json:"type"`
	Pos  [3]float32 `json:"pos"`
}

// Ray aims a placement from an eye position, like a player click.
type Ray struct {
	Origin [3]float32 `json:"origin"`
	Dir    [3]float32 `json:"dir"`
}

// PlaceMsg writes Block at Pos, or against the face hit by Ray when Pos is
// absent. Block "air" removes.
type PlaceMsg struct {
	Type  string  `json:"type"`
	Pos   *[3]int `json:"pos,omitempty"`
	Ray   *Ray    `json:"ray,omitempty"`
	Block string  `json:"block"`
}

type FluidMsg struct {
	Type  string `json:"type"`
	Pos   [3]int `json:"pos"`
	Block string `json:"block"`
	Axis  string `json:"axis,omitempty"`
}

type WelcomeMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	ChunkSize int    `json:"chunk_size"`
	MaxHeight int    `json:"max_height"`
	Seed      int64  `json:"seed"`
	Dimension string `json:"dimension"`
}

type GroupMsg struct {
	Block     uint16   `json:"block"`
	Name      string   `json:"name"`
	Positions [][3]int `json:"positions"`
}

type ChunkMsg struct {
	Type   string     `json:"type"`
	CX     int        `json:"cx"`
	CZ     int        `json:"cz"`
	Biome  string     `json:"biome"`
	Groups []GroupMsg `json:"groups"`
}

type ReleaseMsg struct {
	Type string `json:"type"`
	CX   int    `json:"cx"`
	CZ   int    `json:"cz"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func chunkMsg(m meshing.ChunkMesh) ChunkMsg {
	out := ChunkMsg{Type: TypeChunk, CX: m.Key.CX, CZ: m.Key.CZ, Biome: m.Biome, Groups: make([]GroupMsg, 0, len(m.Groups))}
	for _, g := range m.Groups {
		gm := GroupMsg{Block: uint16(g.Block), Name: g.Name, Positions: make([][3]int, len(g.Positions))}
		for i, p := range g.Positions {
			gm.Positions[i] = [3]int{p.X, p.Y, p.Z}
		}
		out.Groups = append(out.Groups, gm)
	}
	return out
}
