package filestore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-analytics-client/credentials"
	apperrors "github.com/jrsteele09/go-analytics-client/internal/errors"
	"gopkg.in/yaml.v3"
)

const (
	dirMode  = 0o700
	fileMode = 0o600
)

var _ credentials.Store = (*FileStore)(nil)

// FileStore persists credentials as a YAML document so a session survives
// process restarts. Values are cached in memory; every mutation rewrites the
// whole file through a temp file and rename.
type FileStore struct {
	path string
	snap credentials.Snapshot
	mu   sync.RWMutex
}

func New(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing file is an empty store.
func (s *FileStore) Load(context.Context) error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.snap = credentials.Snapshot{}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return apperrors.Wrapf(err, "[filestore Load] read %s", s.path)
	}

	var snap credentials.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return apperrors.Wrapf(err, "[filestore Load] decode %s", s.path)
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Save(_ context.Context, access, refresh string, identity *credentials.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(credentials.Snapshot{
		Access:   access,
		Refresh:  refresh,
		Identity: credentials.CloneIdentity(identity),
	})
}

func (s *FileStore) SetAccess(_ context.Context, access string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snap
	next.Access = access
	return s.persist(next)
}

func (s *FileStore) Access(context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Access
}

func (s *FileStore) Refresh(context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Refresh
}

func (s *FileStore) Identity(context.Context) *credentials.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return credentials.CloneIdentity(s.snap.Identity)
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = credentials.Snapshot{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrapf(err, "[filestore Clear] remove %s", s.path)
	}
	return nil
}

// persist must be called with mu held. The in-memory snapshot only changes
// once the file is on disk.
func (s *FileStore) persist(next credentials.Snapshot) error {
	data, err := yaml.Marshal(&next)
	if err != nil {
		return apperrors.Wrapf(err, "[filestore persist] encode")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return apperrors.Wrapf(err, "[filestore persist] create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.yaml")
	if err != nil {
		return apperrors.Wrapf(err, "[filestore persist] temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Wrapf(err, "[filestore persist] write")
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return apperrors.Wrapf(err, "[filestore persist] chmod")
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrapf(err, "[filestore persist] close")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return apperrors.Wrapf(err, "[filestore persist] rename")
	}

	s.snap = next
	return nil
}
