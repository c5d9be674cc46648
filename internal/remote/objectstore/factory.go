package objectstore

import (
	"context"
	"fmt"

	"github.com/bassista/snapgram/internal/config"
	"github.com/bassista/snapgram/internal/remote"
)

// NewFromConfig creates the ObjectStore selected by cfg.Type. publicURL prefixes
// the preview URLs of the stores served by this process.
func NewFromConfig(ctx context.Context, cfg config.ObjectStoreConfig, publicURL string, ids remote.IDGenerator, clock remote.Clock) (remote.ObjectStore, error) {
	switch cfg.Type {
	case config.ObjectStoreMemory:
		return NewMemoryStore(publicURL, cfg.MaxSize, ids, clock), nil
	case config.ObjectStoreFileSystem:
		s, err := NewFileSystemStore(cfg.Root, publicURL, cfg.MaxSize, ids, clock)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.ObjectStoreS3:
		s, err := NewS3Store(ctx, cfg, ids, clock)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown object store type: %s", cfg.Type)
	}
}
