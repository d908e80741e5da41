package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Schedule handling on the simulator side.
	ErrStaleSequence = "E_STALE_SEQUENCE"
	ErrInvalidMove   = "E_INVALID_MOVE"
	ErrCraneBusy     = "E_CRANE_BUSY"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrStaleSequence:   {},
	ErrInvalidMove:     {},
	ErrCraneBusy:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
