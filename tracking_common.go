package olc

// lockMode names the access mode being requested or held, purely for the
// same-thread tracker's panic messages and the build-tag-selected
// trackCheck/trackSet functions below (see tracking_on.go / tracking_off.go).
type lockMode int

const (
	modeNone lockMode = iota
	modeShared
	modeExclusive
)

func (m lockMode) String() string {
	switch m {
	case modeShared:
		return "shared"
	case modeExclusive:
		return "exclusive"
	default:
		return "optimistic"
	}
}
