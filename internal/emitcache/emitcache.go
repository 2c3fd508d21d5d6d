// Package emitcache stores emitted programs on disk, keyed by a SHA-256
// digest of the encoded model. Concurrent CLI invocations coordinate through
// a file lock so entries are never torn.
package emitcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/vmihailenco/msgpack/v5"

	"tensorvm/internal/program"
)

// Current schema version - increment when the cached payload format changes
const cacheSchemaVersion uint16 = 1

// Digest identifies a model by content.
type Digest [sha256.Size]byte

// DigestOf hashes an encoded model.
func DigestOf(encodedModel []byte) Digest {
	return sha256.Sum256(encodedModel)
}

// Cache is a content-addressed program store rooted at a directory.
type Cache struct {
	dir string
}

type cachePayload struct {
	Schema  uint16
	Program []byte
}

// Open initializes the cache at dir, creating it if needed.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(dir, "programs"), 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// OpenDefault opens the cache at the standard user cache location.
func OpenDefault(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return Open(filepath.Join(base, app))
}

func (c *Cache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "programs", hex.EncodeToString(key[:])+".mp")
}

func (c *Cache) lockPath() string {
	return filepath.Join(c.dir, ".lock")
}

// Put stores an emitted program under key. The write happens into a temp
// file and is renamed into place under the cache lock.
func (c *Cache) Put(key Digest, prog *program.Program) error {
	if c == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := prog.Encode(&buf); err != nil {
		return err
	}
	payload := cachePayload{Schema: cacheSchemaVersion, Program: buf.Bytes()}

	lock := flock.New(c.lockPath())
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("emitcache: acquire lock: %w", err)
	}
	defer lock.Unlock()

	p := c.pathFor(key)
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get loads a cached program, reporting (nil, false, nil) on a miss. Entries
// with a stale schema are treated as misses.
func (c *Cache) Get(key Digest) (*program.Program, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	lock := flock.New(c.lockPath())
	if err := lock.RLock(); err != nil {
		return nil, false, fmt.Errorf("emitcache: acquire lock: %w", err)
	}
	defer lock.Unlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload cachePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, err
	}
	if payload.Schema != cacheSchemaVersion {
		return nil, false, nil
	}
	prog, err := program.Decode(bytes.NewReader(payload.Program))
	if err != nil {
		return nil, false, err
	}
	return prog, true, nil
}
