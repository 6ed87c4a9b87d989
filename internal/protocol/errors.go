package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBusy            = "E_BUSY"
	ErrRateLimit       = "E_RATE_LIMIT"

	// Edit layer.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrUnknownCommand = "E_UNKNOWN_COMMAND"
	ErrOverBudget     = "E_OVER_BUDGET"
	ErrOccupied       = "E_OCCUPIED"
	ErrBlocked        = "E_BLOCKED"
	ErrInvalidTarget  = "E_INVALID_TARGET"
	ErrNoPermission   = "E_NO_PERMISSION"
	ErrNotFound       = "E_NOT_FOUND"
	ErrConflict       = "E_CONFLICT"
	ErrStale          = "E_STALE"
	ErrInvalidScene   = "E_INVALID_SCENE"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBusy:            {},
	ErrRateLimit:       {},
	ErrBadRequest:      {},
	ErrUnknownCommand:  {},
	ErrOverBudget:      {},
	ErrOccupied:        {},
	ErrBlocked:         {},
	ErrInvalidTarget:   {},
	ErrNoPermission:    {},
	ErrNotFound:        {},
	ErrConflict:        {},
	ErrStale:           {},
	ErrInvalidScene:    {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
