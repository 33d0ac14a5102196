package credentialsfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-analytics-client/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore keeps credentials in memory only. Nothing survives the process.
type FakeStore struct {
	snap credentials.Snapshot
	lock sync.RWMutex

	// Counters so tests can assert how the pipeline touched the store.
	saves, accessWrites, clears int
}

func New() *FakeStore {
	return &FakeStore{}
}

// NewWith returns a store seeded with the given credentials.
func NewWith(access, refresh string, identity *credentials.Identity) *FakeStore {
	return &FakeStore{snap: credentials.Snapshot{
		Access:   access,
		Refresh:  refresh,
		Identity: credentials.CloneIdentity(identity),
	}}
}

func (s *FakeStore) Load(context.Context) error {
	return nil
}

func (s *FakeStore) Save(_ context.Context, access, refresh string, identity *credentials.Identity) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.snap = credentials.Snapshot{Access: access, Refresh: refresh, Identity: credentials.CloneIdentity(identity)}
	s.saves++
	return nil
}

func (s *FakeStore) SetAccess(_ context.Context, access string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.snap.Access = access
	s.accessWrites++
	return nil
}

func (s *FakeStore) Access(context.Context) string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snap.Access
}

func (s *FakeStore) Refresh(context.Context) string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snap.Refresh
}

func (s *FakeStore) Identity(context.Context) *credentials.Identity {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return credentials.CloneIdentity(s.snap.Identity)
}

func (s *FakeStore) Clear(context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.snap = credentials.Snapshot{}
	s.clears++
	return nil
}

// Saves returns how many times Save was called.
func (s *FakeStore) Saves() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.saves
}

// AccessWrites returns how many times SetAccess was called.
func (s *FakeStore) AccessWrites() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.accessWrites
}

// Clears returns how many times Clear was called.
func (s *FakeStore) Clears() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.clears
}
