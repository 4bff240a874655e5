package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// World routing/state.
	ErrWorldBusy     = "E_WORLD_BUSY"
	ErrWorldNotFound = "E_WORLD_NOT_FOUND"

	// Command layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrWorldBusy:       {},
	ErrWorldNotFound:   {},
	ErrBadRequest:      {},
	ErrNoPermission:    {},
	ErrInvalidTarget:   {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
