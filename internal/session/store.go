package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrNoBlob is returned by Load when no session is stored for the user.
var ErrNoBlob = eris.New("session: no stored session")

// BlobStore persists the opaque session blob of each user.
type BlobStore interface {
	Exists(ctx context.Context, user string) (bool, error)
	Load(ctx context.Context, user string) ([]byte, error)
	Save(ctx context.Context, user string, blob []byte) error
	Delete(ctx context.Context, user string) error
}

// FileStore keeps one JSON file per user under a directory. File names are
// derived from a hash of the user name. Writes are atomic and serialised
// per file within the process.
type FileStore struct {
	dir   string
	locks sync.Map // path -> *sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir. The directory is created
// on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the blob file of user.
func (s *FileStore) Path(user string) string {
	sum := sha256.Sum256([]byte(user))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])[:16]+".json")
}

func (s *FileStore) lock(path string) func() {
	m, _ := s.locks.LoadOrStore(path, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *FileStore) Exists(_ context.Context, user string) (bool, error) {
	_, err := os.Stat(s.Path(user))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, eris.Wrap(err, "session: stat blob")
}

func (s *FileStore) Load(_ context.Context, user string) ([]byte, error) {
	path := s.Path(user)
	defer s.lock(path)()

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoBlob
	}
	if err != nil {
		return nil, eris.Wrap(err, "session: read blob")
	}
	return b, nil
}

// Save writes blob to a temporary file in the same directory and renames
// it into place.
func (s *FileStore) Save(_ context.Context, user string, blob []byte) error {
	path := s.Path(user)
	defer s.lock(path)()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return eris.Wrap(err, "session: create dir")
	}

	tmp, err := os.CreateTemp(s.dir, ".session-*.tmp")
	if err != nil {
		return eris.Wrap(err, "session: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "session: write blob")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "session: sync blob")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "session: close blob")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrap(err, "session: rename blob")
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, user string) error {
	path := s.Path(user)
	defer s.lock(path)()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrap(err, "session: delete blob")
	}
	return nil
}
