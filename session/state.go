package session

import (
	"time"

	"github.com/shenlehan/fashion-recommendation/store"
)

// State is the derived lifecycle state of a conversation session. It is
// computed from timestamps on access, never stored.
type State string

const (
	// StateCreated means the session has no turns yet.
	StateCreated State = "created"
	// StateActive means the session has turns and was touched recently.
	StateActive State = "active"
	// StateStale means the session has not been touched for a while but
	// is still within the retention window. Stale sessions remain fully
	// usable; the state only informs presentation.
	StateStale State = "stale"
	// StateExpired means the session passed the retention cutoff. Any
	// access removes it and reports expiry.
	StateExpired State = "expired"
)

// staleAfter is the idle duration after which an active session is
// presented as stale.
const staleAfter = 24 * time.Hour

// StateOf derives the lifecycle state of a session at the given instant.
// retention is the hard cutoff measured from the last update.
func StateOf(s *store.ConversationSession, now time.Time, retention time.Duration) State {
	idle := now.Unix() - s.UpdatedTs
	if idle >= int64(retention.Seconds()) {
		return StateExpired
	}
	if len(s.Turns) == 0 {
		return StateCreated
	}
	if idle >= int64(staleAfter.Seconds()) {
		return StateStale
	}
	return StateActive
}
