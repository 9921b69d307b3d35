package license

// State is the license lifecycle state derived from the stored record and
// the wall clock.
type State string

const (
	// StateUnlicensed: no record, or a record with an empty payload.
	StateUnlicensed State = "unlicensed"
	// StatePendingActivation: the UI is collecting a key and expiry date.
	// Never persisted; surfaced to the UI while no payload exists.
	StatePendingActivation State = "pending_activation"
	// StateActive: payload decrypts, key matches, expiry not passed,
	// is_active set.
	StateActive State = "active"
	// StateDeactivated: payload intact but logged out; Login restores it.
	StateDeactivated State = "deactivated"
	// StateExpired: payload decrypts and matches but the clock is past the
	// 10:00 cutover on the expiry date.
	StateExpired State = "expired"
	// StateInvalid: decryption or parsing failed — foreign device or
	// corrupted store.
	StateInvalid State = "invalid"
)

func (s State) String() string { return string(s) }

// Licensed reports whether the state allows the main application window.
func (s State) Licensed() bool { return s == StateActive }

// stateFor maps an internal check error to the lifecycle state.
func stateFor(err error) State {
	switch err {
	case nil:
		return StateActive
	case ErrNotActivated:
		return StateUnlicensed
	case ErrInactive:
		return StateDeactivated
	case ErrExpired:
		return StateExpired
	case ErrCrypto, ErrFormat, ErrKeyMismatch:
		return StateInvalid
	default:
		// Storage failures: state cannot be determined, fail closed.
		return StateInvalid
	}
}
