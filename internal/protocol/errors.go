package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// World routing/state.
	ErrWorldBusy = "E_WORLD_BUSY"
	ErrWorldFull = "E_WORLD_FULL"
	ErrRateLimit = "E_RATE_LIMITED"

	// Command layer.
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrInvalidBody = "E_INVALID_BODY"
	ErrNoSuchBody  = "E_NO_SUCH_BODY"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrWorldBusy:       {},
	ErrWorldFull:       {},
	ErrRateLimit:       {},
	ErrBadRequest:      {},
	ErrInvalidBody:     {},
	ErrNoSuchBody:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
