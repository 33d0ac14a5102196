package credentials

import "context"

// Identity is the cached summary of the signed-in user.
type Identity struct {
	ID        int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Username  string `json:"username,omitempty" yaml:"username,omitempty"`
	Email     string `json:"email,omitempty" yaml:"email,omitempty"`
	FirstName string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
}

// Snapshot is the complete persisted state of a Store. Backends serialise it
// as a single document so a save is never observed half-written.
type Snapshot struct {
	Access   string    `json:"access,omitempty" yaml:"access,omitempty"`
	Refresh  string    `json:"refresh,omitempty" yaml:"refresh,omitempty"`
	Identity *Identity `json:"identity,omitempty" yaml:"identity,omitempty"`
}

// Empty reports whether the snapshot holds nothing at all.
func (s Snapshot) Empty() bool {
	return s.Access == "" && s.Refresh == "" && s.Identity == nil
}

// Store holds the access credential, the refresh credential and the cached
// identity. Credential values are opaque; a Store never validates them.
//
// Implementations must be safe for concurrent use. Getters return the zero
// value when a field is absent or the backend cannot be read.
type Store interface {
	// Load reads previously persisted values into the store.
	Load(ctx context.Context) error

	// Save overwrites all three fields at once.
	Save(ctx context.Context, access, refresh string, identity *Identity) error

	// SetAccess replaces the access credential, leaving the rest untouched.
	SetAccess(ctx context.Context, access string) error

	Access(ctx context.Context) string
	Refresh(ctx context.Context) string
	Identity(ctx context.Context) *Identity

	// Clear removes every field. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// CloneIdentity returns a copy so callers cannot mutate stored state.
func CloneIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
