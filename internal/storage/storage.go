package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/proxy-batch-checker/internal/source"
	"github.com/proxy-batch-checker/internal/types"
)

type Storage interface {
	Save(snapshot *types.Snapshot) error
	Load() (*types.Snapshot, error)
	Close() error
}

func NewStorage(storageType string, path string) (Storage, error) {
	switch storageType {
	case "file":
		return NewFileStorage(path)
	case "sqlite":
		return NewSQLiteStorage(path)
	case "redis":
		return NewRedisStorage(path)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageType)
	}
}

// FileStorage keeps the known-good list as plain text, one proxy per line.
// Stats are not kept; Load reports the file modification time as Updated.
type FileStorage struct {
	path string
}

func NewFileStorage(path string) (*FileStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	return &FileStorage{path: path}, nil
}

func (f *FileStorage) Save(snapshot *types.Snapshot) error {
	return WriteLines(f.path, snapshot.Working)
}

func (f *FileStorage) Load() (*types.Snapshot, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // File doesn't exist yet
		}
		return nil, fmt.Errorf("stat file: %w", err)
	}

	working, err := source.LoadFile(f.path)
	if err != nil {
		return nil, err
	}

	return &types.Snapshot{
		Working: working,
		Stats:   types.Stats{Success: len(working), LastCheckTime: info.ModTime()},
		Updated: info.ModTime(),
	}, nil
}

func (f *FileStorage) Close() error {
	return nil
}
