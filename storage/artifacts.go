package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactStore persists crawl artifacts (raw pages, script candidates,
// extracted result JSON) for later debugging of extraction misses.
type ArtifactStore interface {
	Put(ctx context.Context, name string, data []byte) error
}

// DirArtifactStore writes artifacts under a local directory, one
// subdirectory per watchdog or crawl.
type DirArtifactStore struct {
	root string
}

func NewDirArtifactStore(root string) *DirArtifactStore {
	return &DirArtifactStore{root: root}
}

func (s *DirArtifactStore) Put(ctx context.Context, name string, data []byte) error {
	path := filepath.Join(s.root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	return nil
}
