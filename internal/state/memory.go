package state

import (
	"context"
	"sync"
	"time"
)

// #region memory-store

type userRecord struct {
	stage       int
	hasStage    bool
	assessments map[Key]Assessment
	history     map[Key][]Turn
}

// MemoryStore keeps all state in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*userRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*userRecord)}
}

func (m *MemoryStore) user(userID string) *userRecord {
	u, ok := m.users[userID]
	if !ok {
		u = &userRecord{
			assessments: make(map[Key]Assessment),
			history:     make(map[Key][]Turn),
		}
		m.users[userID] = u
	}
	return u
}

// #endregion memory-store

// #region stage

func (m *MemoryStore) Stage(_ context.Context, userID string) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok || !u.hasStage {
		return 0, false, nil
	}
	return u.stage, true, nil
}

func (m *MemoryStore) SetStage(_ context.Context, userID string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(userID)
	u.stage = index
	u.hasStage = true
	return nil
}

// #endregion stage

// #region assessment

func (m *MemoryStore) Assessment(_ context.Context, key Key) (Assessment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[key.UserID]
	if !ok {
		return Assessment{}, false, nil
	}
	a, ok := u.assessments[key]
	if !ok {
		return Assessment{}, false, nil
	}
	return a.Clone(), true, nil
}

// #endregion assessment

// #region history

func (m *MemoryStore) History(_ context.Context, key Key) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[key.UserID]
	if !ok {
		return []Turn{}, nil
	}
	turns := u.history[key]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (m *MemoryStore) AppendTurn(_ context.Context, key Key, turn Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	u := m.user(key.UserID)
	u.history[key] = append(u.history[key], turn)
	return nil
}

// #endregion history

// #region commit

func (m *MemoryStore) CommitTurn(_ context.Context, c Commit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(c.Key.UserID)
	now := time.Now().UTC()
	for _, t := range c.Turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		u.history[c.Key] = append(u.history[c.Key], t)
	}
	u.assessments[c.Key] = c.Assessment.Clone()
	return nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// #endregion commit

var _ Store = (*MemoryStore)(nil)
