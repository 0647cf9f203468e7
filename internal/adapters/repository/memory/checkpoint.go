// Package memory provides a thread-safe in-memory checkpoint saver,
// suitable for tests and single-process runs that do not need durability
// across restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/recipeflow/recipeflow/internal/core/checkpoint"
	"github.com/recipeflow/recipeflow/pkg/serialization"
)

// Saver implements checkpoint.Saver backed by a map of serialized
// envelopes. Checkpoints are stored serialized so Load exercises the same
// round trip as the durable savers.
type Saver struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	serializer *serialization.Serializer
	defaultTTL time.Duration
	maxEntries int

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// Config holds saver settings.
type Config struct {
	// DefaultTTL expires checkpoints; zero means 24h.
	DefaultTTL time.Duration
	// MaxEntries bounds the store; oldest checkpoints are evicted first.
	// Zero means 4096.
	MaxEntries int
	// CleanupInterval controls the expiry sweep; zero means 5m.
	CleanupInterval time.Duration
	// Serializer overrides the default msgpack+zstd envelope.
	Serializer *serialization.Serializer
}

type entry struct {
	data      []byte
	runID     string
	defID     string
	savedAt   time.Time
	expiresAt time.Time
}

// NewSaver creates an in-memory saver with the given configuration.
func NewSaver(config Config) *Saver {
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 24 * time.Hour
	}
	if config.MaxEntries == 0 {
		config.MaxEntries = 4096
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.Serializer == nil {
		config.Serializer = serialization.Default()
	}

	s := &Saver{
		entries:     make(map[string]*entry),
		serializer:  config.Serializer,
		defaultTTL:  config.DefaultTTL,
		maxEntries:  config.MaxEntries,
		stopCleanup: make(chan struct{}),
	}
	s.startCleanup(config.CleanupInterval)
	return s
}

// DefaultSaver creates a saver with default configuration.
func DefaultSaver() *Saver {
	return NewSaver(Config{})
}

// Save stores a checkpoint, overwriting any previous entry with the same ID.
func (s *Saver) Save(_ context.Context, cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return checkpoint.ErrInvalidCheckpointID
	}
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := s.serializer.Marshal(cp)
	if err != nil {
		return err
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[cp.ID] = &entry{
		data:      data,
		runID:     cp.RunID,
		defID:     cp.DefinitionID,
		savedAt:   now,
		expiresAt: now.Add(s.defaultTTL),
	}
	s.evictLocked()
	return nil
}

// Load retrieves a checkpoint by ID.
func (s *Saver) Load(_ context.Context, id string) (*checkpoint.Checkpoint, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, checkpoint.ErrCheckpointNotFound
	}

	var cp checkpoint.Checkpoint
	if err := s.serializer.Unmarshal(e.data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// List returns checkpoints matching the filter, newest first.
func (s *Saver) List(_ context.Context, filter checkpoint.Filter) ([]*checkpoint.Checkpoint, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id, e := range s.entries {
		if filter.RunID != "" && e.runID != filter.RunID {
			continue
		}
		if filter.DefinitionID != "" && e.defID != filter.DefinitionID {
			continue
		}
		if filter.Since != nil && e.savedAt.Before(*filter.Since) {
			continue
		}
		if filter.Before != nil && e.savedAt.After(*filter.Before) {
			continue
		}
		if time.Now().After(e.expiresAt) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.entries[ids[i]].savedAt.After(s.entries[ids[j]].savedAt)
	})
	s.mu.RUnlock()

	if filter.Offset > 0 {
		if filter.Offset >= len(ids) {
			return nil, nil
		}
		ids = ids[filter.Offset:]
	}
	if filter.Limit > 0 && len(ids) > filter.Limit {
		ids = ids[:filter.Limit]
	}

	out := make([]*checkpoint.Checkpoint, 0, len(ids))
	for _, id := range ids {
		cp, err := s.Load(context.Background(), id)
		if err != nil {
			continue
		}
		out = append(out, cp)
	}
	return out, nil
}

// Delete removes a checkpoint by ID.
func (s *Saver) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return checkpoint.ErrCheckpointNotFound
	}
	delete(s.entries, id)
	return nil
}

// Close stops the cleanup goroutine.
func (s *Saver) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
		if s.cleanupTicker != nil {
			s.cleanupTicker.Stop()
		}
	})
	return nil
}

func (s *Saver) startCleanup(interval time.Duration) {
	s.cleanupTicker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				s.sweep()
			case <-s.stopCleanup:
				return
			}
		}
	}()
}

func (s *Saver) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

// evictLocked drops the oldest entries until the store fits maxEntries.
// Caller holds the write lock.
func (s *Saver) evictLocked() {
	for len(s.entries) > s.maxEntries {
		oldestID := ""
		var oldest time.Time
		for id, e := range s.entries {
			if oldestID == "" || e.savedAt.Before(oldest) {
				oldestID = id
				oldest = e.savedAt
			}
		}
		delete(s.entries, oldestID)
	}
}
