package credentials

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps credentials for the life of the process only.
type MemoryStore struct {
	snap Snapshot
	lock sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) error {
	return nil
}

func (s *MemoryStore) Save(_ context.Context, access, refresh string, identity *Identity) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.snap = Snapshot{Access: access, Refresh: refresh, Identity: CloneIdentity(identity)}
	return nil
}

func (s *MemoryStore) SetAccess(_ context.Context, access string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.snap.Access = access
	return nil
}

func (s *MemoryStore) Access(context.Context) string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snap.Access
}

func (s *MemoryStore) Refresh(context.Context) string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snap.Refresh
}

func (s *MemoryStore) Identity(context.Context) *Identity {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return CloneIdentity(s.snap.Identity)
}

func (s *MemoryStore) Clear(context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.snap = Snapshot{}
	return nil
}
