package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldParams     WorldParams `json:"world_params"`
}

// WorldParams tells a renderer how to size bodies and build launch gestures.
type WorldParams struct {
	TickRateHz       int     `json:"tick_rate_hz"`
	Dt               float64 `json:"dt"`
	Gravity          float64 `json:"gravity"`
	RadiusOffset     float64 `json:"radius_offset"`
	LaunchScale      float64 `json:"launch_scale"`
	StarTag          int     `json:"star_tag"`
	PaletteSize      int     `json:"palette_size"`
	ProjectionSteps  int     `json:"projection_steps"`
	ProjectionStride int     `json:"projection_stride"`
}

// STATE (server -> client), one per simulated tick.
type StateMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	Paused          bool          `json:"paused"`
	TotalMass       float64       `json:"total_mass"`
	Bodies          []BodyState   `json:"bodies"`
	Merges          []MergeNotice `json:"merges,omitempty"`
}

type BodyState struct {
	Pos    [2]float64 `json:"pos"`
	Vel    [2]float64 `json:"vel"`
	Mass   float64    `json:"mass"`
	Radius float64    `json:"radius"`
	Fixed  bool       `json:"fixed,omitempty"`
	Tag    int        `json:"tag"`
}

// MergeNotice indices refer to the previous STATE's body order.
type MergeNotice struct {
	Survivor int     `json:"survivor"`
	Absorbed []int   `json:"absorbed"`
	Mass     float64 `json:"mass"`
}

// INSERT (client -> server). Prev defaults to Pos (body at rest).
type InsertMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ReqID           string      `json:"req_id,omitempty"`
	Pos             [2]float64  `json:"pos"`
	Prev            *[2]float64 `json:"prev,omitempty"`
	Mass            float64     `json:"mass"`
	Fixed           bool        `json:"fixed,omitempty"`
	Tag             int         `json:"tag"`
}

// LAUNCH (client -> server): place a body with a pull-back gesture.
type LaunchMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ReqID           string     `json:"req_id,omitempty"`
	Anchor          [2]float64 `json:"anchor"`
	Drag            [2]float64 `json:"drag"`
	Mass            float64    `json:"mass"`
	Tag             int        `json:"tag"`
}

// REMOVE (client -> server): by index or by hit-testing a point.
type RemoveMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ReqID           string      `json:"req_id,omitempty"`
	Index           *int        `json:"index,omitempty"`
	At              *[2]float64 `json:"at,omitempty"`
}

// PROJECT (client -> server): predicted path of a body that would be launched.
type ProjectMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ReqID           string     `json:"req_id,omitempty"`
	Anchor          [2]float64 `json:"anchor"`
	Drag            [2]float64 `json:"drag"`
	Mass            float64    `json:"mass"`
	Tag             int        `json:"tag"`
	Steps           int        `json:"steps,omitempty"`
	Stride          int        `json:"stride,omitempty"`
}

// TRAJECTORY (server -> client)
type TrajectoryMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	ReqID           string       `json:"req_id,omitempty"`
	Tick            uint64       `json:"tick"`
	Points          [][2]float64 `json:"points"`
}

// CONTROL (client -> server)
type ControlMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Op              string `json:"op"`
}

// ACK (server -> client). Index is set for inserts and launches.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Index           *int   `json:"index,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(reqID, code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, ReqID: reqID, Code: code, Message: message}
}

func NewAck(reqID string, index *int) AckMsg {
	return AckMsg{Type: TypeAck, ProtocolVersion: Version, ReqID: reqID, Index: index}
}
