package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// State is the session-scoped conversation text: the finalized transcript
// plus the in-progress reveal buffer of the current speech turn.
type State struct {
	Final string `json:"final"`
	Live  string `json:"live"`
}

// Store keeps per-session conversation state in memory for the lifetime of
// a browsing session. At most one live buffer is active per speech turn;
// finishing a turn merges live into final and clears live. Mutation goes
// through this single-writer API only.
type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewStore creates a store whose entries expire one hour after last write,
// purged every 10 minutes.
func NewStore() *Store {
	return &Store{cache: cache.New(1*time.Hour, 10*time.Minute)}
}

func (s *Store) state(sessionID string) *State {
	if x, found := s.cache.Get(sessionID); found {
		return x.(*State)
	}
	st := &State{}
	s.cache.Set(sessionID, st, cache.DefaultExpiration)
	return st
}

// touch refreshes the TTL after a mutation.
func (s *Store) touch(sessionID string, st *State) {
	s.cache.Set(sessionID, st, cache.DefaultExpiration)
}

// AppendLive adds one revealed token to the live buffer.
func (s *Store) AppendLive(sessionID, token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(sessionID)
	if st.Live == "" {
		st.Live = token
	} else {
		st.Live += " " + token
	}
	s.touch(sessionID, st)
}

// SetLive replaces the live buffer wholesale (partial transcript updates).
func (s *Store) SetLive(sessionID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(sessionID)
	st.Live = text
	s.touch(sessionID, st)
}

// AppendFinal commits a full line straight to the finalized transcript,
// bypassing the live buffer (used for the user's own utterances).
func (s *Store) AppendFinal(sessionID, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(sessionID)
	st.Final = joinTurns(st.Final, line)
	s.touch(sessionID, st)
}

// Finalize merges the live buffer into the finalized transcript and clears
// the live buffer, ending the current speech turn.
func (s *Store) Finalize(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(sessionID)
	if live := strings.TrimSpace(st.Live); live != "" {
		st.Final = joinTurns(st.Final, live)
	}
	st.Live = ""
	s.touch(sessionID, st)
}

// Snapshot returns a copy of the session's conversation state.
func (s *Store) Snapshot(sessionID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if x, found := s.cache.Get(sessionID); found {
		return *(x.(*State)), true
	}
	return State{}, false
}

// Reset drops all text for a session.
func (s *Store) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(sessionID)
}

func joinTurns(final, turn string) string {
	if final == "" {
		return turn
	}
	return final + "\n" + turn
}
