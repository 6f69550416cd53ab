package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shenlehan/fashion-recommendation/store"
)

func TestStateOf(t *testing.T) {
	now := time.Now()
	retention := DefaultRetention

	sessionAged := func(age time.Duration, turns int) *store.ConversationSession {
		s := &store.ConversationSession{UpdatedTs: now.Add(-age).Unix()}
		for i := 0; i < turns; i++ {
			s.Turns = append(s.Turns, store.Turn{Role: store.TurnRoleUser})
		}
		return s
	}

	testCases := []struct {
		name    string
		session *store.ConversationSession
		expect  State
	}{
		{"fresh without turns", sessionAged(time.Minute, 0), StateCreated},
		{"fresh with turns", sessionAged(time.Minute, 2), StateActive},
		{"idle past a day", sessionAged(25*time.Hour, 2), StateStale},
		{"idle past a day without turns", sessionAged(25*time.Hour, 0), StateCreated},
		{"past retention cutoff", sessionAged(3*24*time.Hour, 2), StateExpired},
		{"past cutoff without turns", sessionAged(4*24*time.Hour, 0), StateExpired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, StateOf(tc.session, now, retention))
		})
	}
}
