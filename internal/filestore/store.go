package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Store archives one fetched revision under a key shaped like
// "<bookID>/<path>@<mtime>". Implementations must tolerate repeated saves of
// the same key.
type Store interface {
	Archive(ctx context.Context, key string, content []byte) error
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(storeType string, args interface{}) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(storeType))
	if key == "" {
		return nil, fmt.Errorf("archive type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported archive store type: %s", storeType)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
