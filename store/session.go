package store

// TurnRole identifies the author of a conversation turn.
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// Turn is one message in a conversation session's bounded history.
type Turn struct {
	Role      TurnRole `json:"role"`
	Content   string   `json:"content"`
	ItemIDs   []int64  `json:"item_ids,omitempty"`
	CreatedTs int64    `json:"created_ts"`
}

// Preferences is the per-session preference snapshot, immutable after
// session creation.
type Preferences struct {
	Occasion string `json:"occasion,omitempty"`
	Style    string `json:"style,omitempty"`
	Color    string `json:"color,omitempty"`
}

// ConversationSession is one multi-turn outfit negotiation. Turns is
// capped at MaxSessionTurns; the cap is enforced by the session service
// before every write. Version is the optimistic concurrency stamp bumped
// on every update.
type ConversationSession struct {
	UID           string
	Turns         []Turn
	CurrentOutfit []int64
	Preferences   Preferences
	CreatedTs     int64
	UpdatedTs     int64
	ID            int64
	Version       int32
	OwnerID       int32
}

// MaxSessionTurns is the bound on session history length. Oldest turns
// are dropped first, never newest.
const MaxSessionTurns = 20

type FindConversationSession struct {
	UID          *string
	OwnerID      *int32
	UpdatedAfter *int64
	Limit        *int
	Offset       *int
}

// UpdateConversationSession replaces the mutable parts of a session.
// The update only applies when the stored Version matches; the driver
// returns ErrSessionConflict otherwise.
type UpdateConversationSession struct {
	Turns         *[]Turn
	CurrentOutfit *[]int64
	UID           string
	UpdatedTs     int64
	Version       int32
}

type DeleteConversationSession struct {
	UID           *string
	OwnerID       *int32
	UpdatedBefore *int64
}
