package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello      = "HELLO"
	TypeWelcome    = "WELCOME"
	TypeState      = "STATE"
	TypeInsert     = "INSERT"
	TypeLaunch     = "LAUNCH"
	TypeRemove     = "REMOVE"
	TypeProject    = "PROJECT"
	TypeTrajectory = "TRAJECTORY"
	TypeControl    = "CONTROL"
	TypeAck        = "ACK"
	TypeError      = "ERROR"
)

// Control operations.
const (
	OpPause  = "PAUSE"
	OpResume = "RESUME"
	OpStep   = "STEP"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
