package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"

	"github.com/maxg/didit-sub000/internal/upload"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/store")

var (
	ErrNotFound  = errors.New("not found")
	ErrMalformed = errors.New("malformed record")
)

// Results addressed by identity under one root: builds per semester, sweeps and milestones
// per project
type Store struct {
	fs       afero.Fs
	archive  upload.Uploader
	semester string
}

type Option func(*Store)

// Mirrors every saved build's artifacts to `u`
func WithArchive(u upload.Uploader) Option {
	return func(s *Store) {
		s.archive = u
	}
}

func New(fs afero.Fs, semester string, opts ...Option) *Store {
	s := &Store{fs: fs, semester: semester}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store rooted at `root` on the local disk
func NewOnDisk(root, semester string, opts ...Option) (*Store, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return New(afero.NewBasePathFs(osFs, root), semester, opts...), nil
}

// Replaces `path` with `data` through a temp file and rename, so readers never see a
// partial write
func (s *Store) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+"-")
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(f.Name())
		return err
	}

	if err := s.fs.Rename(f.Name(), path); err != nil {
		s.fs.Remove(f.Name())
		return err
	}
	return nil
}

func (s *Store) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return s.writeFile(path, data)
}

func (s *Store) readFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, err
}

func (s *Store) readJSON(path string, v any) error {
	data, err := s.readFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}
	return nil
}
