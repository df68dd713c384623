// Package session holds everything the engine needs to keep in memory per
// running process: per-thread state, the dedupe cache for inbound events,
// and the allow-list check. All of it is ephemeral — nothing is written to
// disk, per the engine's explicit Non-goal of durable conversation storage.
// Grounded on the teacher's pkg/llm/session_manager.go map+mutex shape, with
// its disk persistence dropped (see DESIGN.md).
package session

import (
	"sync"
	"time"

	"github.com/livia-chatops/livia/internal/model"
)

// Store is the per-thread state table, keyed by "channelID/threadID".
type Store struct {
	mu     sync.RWMutex
	states map[string]*model.ThreadState
}

func NewStore() *Store {
	return &Store{states: make(map[string]*model.ThreadState)}
}

func key(channelID, threadID string) string {
	return channelID + "/" + threadID
}

// Get returns the existing thread state, creating an empty one if absent.
func (s *Store) Get(channelID, threadID string) *model.ThreadState {
	k := key(channelID, threadID)

	s.mu.RLock()
	st, ok := s.states[k]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[k]; ok {
		return st
	}
	st = &model.ThreadState{ThreadID: threadID}
	s.states[k] = st
	return st
}

// Delete drops a thread's state entirely, e.g. once its document index TTL
// has expired and there is nothing else worth keeping.
func (s *Store) Delete(channelID, threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key(channelID, threadID))
}

// SweepExpiredIndices clears VectorIndexID on any thread whose document
// index has outlived ttl, without discarding the rest of the thread state.
func (s *Store) SweepExpiredIndices(ttl time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	now := time.Now()
	for k, st := range s.states {
		if st.VectorIndexID != "" && now.Sub(st.VectorIndexAt) > ttl {
			expired = append(expired, st.VectorIndexID)
			st.VectorIndexID = ""
			st.VectorIndexAt = time.Time{}
		}
	}
	return expired
}
