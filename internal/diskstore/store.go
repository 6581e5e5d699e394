// Package diskstore is the persistent tier: named blobs under one namespace directory of a
// billy filesystem. Blobs are replaced atomically and optionally zstd compressed.
package diskstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/Borislavv/go-ash-fetch/config"
	"github.com/Borislavv/go-ash-fetch/model"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
)

const (
	lockFileName = ".lock"
	tmpPrefix    = ".tmp-"
	nameStripes  = 64
)

var ErrLocked = errors.New("namespace is locked by another process")

// zstd frame magic, little endian 0xFD2FB528.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// syncer is implemented by OS-backed billy files; in-memory files have nothing to flush.
type syncer interface {
	Sync() error
}

// Storer is the persistent tier as seen by the resolver.
type Storer interface {
	Read(ctx context.Context, name string) []byte
	Write(ctx context.Context, data []byte, name string) error
	Remove(ctx context.Context, name string) error
	Purge(ctx context.Context) error
}

type Store struct {
	fs        billy.Filesystem
	namespace string
	logger    zerolog.Logger
	lock      *flock.Flock
	stripes   [nameStripes]sync.Mutex

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New opens (creating if needed) the namespace directory on fs.
func New(fs billy.Filesystem, namespace string, compression *config.CompressionCfg, logger zerolog.Logger) (*Store, error) {
	if namespace == "" || namespace != path.Base(namespace) || namespace[0] == '.' {
		return nil, fmt.Errorf("%w: bad namespace %q", model.ErrInvalidInput, namespace)
	}
	if err := fs.MkdirAll(namespace, 0o755); err != nil {
		return nil, fmt.Errorf("create namespace dir %s: %w", namespace, err)
	}

	s := &Store{
		fs:        fs,
		namespace: namespace,
		logger:    logger.With().Str("namespace", namespace).Logger(),
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	s.dec = dec

	if compression.Enabled() {
		level := zstd.EncoderLevel(compression.Level)
		if level < zstd.SpeedFastest || level > zstd.SpeedBestCompression {
			level = zstd.SpeedDefault
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			dec.Close()
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		s.enc = enc
	}

	return s, nil
}

// Lock takes an advisory lock on <root>/<namespace>/.lock, where root is the OS directory fs is
// rooted at. It fails with ErrLocked when another process holds it.
func (s *Store) Lock(root string) error {
	s.lock = flock.New(filepath.Join(root, s.namespace, lockFileName))
	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock namespace %s: %w", s.namespace, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLocked, s.lock.Path())
	}
	return nil
}

// Read returns the blob or nil; a miss and an unreadable blob look the same to callers.
func (s *Store) Read(ctx context.Context, name string) []byte {
	if ctx.Err() != nil || !validName(name) {
		return nil
	}

	mu := s.stripe(name)
	mu.Lock()
	data, err := util.ReadFile(s.fs, s.path(name))
	mu.Unlock()

	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("name", name).Msg("[diskstore] read failed")
		}
		return nil
	}

	if bytes.HasPrefix(data, zstdMagic) {
		plain, err := s.dec.DecodeAll(data, nil)
		if err != nil {
			s.logger.Warn().Err(err).Str("name", name).Msg("[diskstore] undecodable compressed blob")
			return nil
		}
		return plain
	}
	return data
}

// Write replaces the blob atomically: the bytes go to a temp file, are synced, and are
// renamed into place.
func (s *Store) Write(ctx context.Context, data []byte, name string) error {
	if err := ctx.Err(); err != nil {
		return model.Cancelled(err)
	}
	if !validName(name) {
		return fmt.Errorf("%w: bad blob name %q", model.ErrInvalidInput, name)
	}

	if s.enc != nil {
		data = s.enc.EncodeAll(data, make([]byte, 0, len(data)/2))
	}

	mu := s.stripe(name)
	mu.Lock()
	defer mu.Unlock()

	tmp, err := s.fs.TempFile(s.namespace, tmpPrefix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err = io.Copy(tmp, bytes.NewReader(data)); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if f, ok := tmp.(syncer); ok {
		if err = f.Sync(); err != nil {
			_ = tmp.Close()
			_ = s.fs.Remove(tmpName)
			return fmt.Errorf("sync %s: %w", name, err)
		}
	}
	if err = tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err = s.fs.Rename(tmpName, s.path(name)); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}

	s.logger.Debug().Str("name", name).Int("bytes", len(data)).Msg("[diskstore] stored")
	return nil
}

// Remove deletes the blob; a missing blob is not an error.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return model.Cancelled(err)
	}
	if !validName(name) {
		return nil
	}

	mu := s.stripe(name)
	mu.Lock()
	defer mu.Unlock()

	if err := s.fs.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Purge removes every blob of the namespace, keeping the lock file.
func (s *Store) Purge(ctx context.Context) error {
	infos, err := s.fs.ReadDir(s.namespace)
	if err != nil {
		return fmt.Errorf("list namespace %s: %w", s.namespace, err)
	}

	var removed int
	for _, info := range infos {
		if err = ctx.Err(); err != nil {
			return model.Cancelled(err)
		}
		if info.Name() == lockFileName {
			continue
		}
		if err = util.RemoveAll(s.fs, s.path(info.Name())); err != nil {
			return fmt.Errorf("purge %s: %w", info.Name(), err)
		}
		removed++
	}

	s.logger.Info().Int("removed", removed).Msg("[diskstore] purged")
	return nil
}

// Close releases the namespace lock and the codecs.
func (s *Store) Close() error {
	if s.enc != nil {
		_ = s.enc.Close()
	}
	s.dec.Close()
	if s.lock != nil {
		return s.lock.Unlock()
	}
	return nil
}

func (s *Store) path(name string) string {
	return s.fs.Join(s.namespace, name)
}

func (s *Store) stripe(name string) *sync.Mutex {
	return &s.stripes[xxh3.HashString(name)%nameStripes]
}

// validName rejects names that could escape the namespace or collide with bookkeeping files.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." || name == lockFileName {
		return false
	}
	if len(name) >= len(tmpPrefix) && name[:len(tmpPrefix)] == tmpPrefix {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == '\\' || name[i] == 0 {
			return false
		}
	}
	return true
}
