package store

import (
	"context"
	"os"
	"path/filepath"
)

// FileSnapshots persists each key as one JSON file under Dir. Writes go to
// a temp file first and are renamed into place, so a crash mid-write leaves
// the previous snapshot intact.
type FileSnapshots struct {
	Dir string
}

func NewFileSnapshots(dir string) (*FileSnapshots, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileSnapshots{Dir: dir}, nil
}

func (s *FileSnapshots) path(key string) string {
	return filepath.Join(s.Dir, key+".json")
}

func (s *FileSnapshots) Read(ctx context.Context, key string) ([]byte, error) {
	payload, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *FileSnapshots) Write(ctx context.Context, key string, data []byte) error {
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}
