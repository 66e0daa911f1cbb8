package json

import (
	"codeberg.org/miketth/wlkeymap/pkg/keymap"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// KeymapStore keeps keymaps in memory and writes them to a JSON file from
// SaveLooper.
type KeymapStore struct {
	keymaps map[string]keymap.Keymap
	file    *os.File
	lock    sync.Mutex
	dirty   bool
}

func NewKeymapStore(filename string) (*KeymapStore, error) {
	fileExists := true
	stat, err := os.Stat(filename)
	if os.IsNotExist(err) {
		fileExists = false
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	store := &KeymapStore{
		keymaps: make(map[string]keymap.Keymap),
		file:    file,
		dirty:   true,
	}

	if fileExists && stat.Size() > 0 {
		err = store.load()
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("load: %w", err)
		}

		store.dirty = false
	}

	return store, nil
}

func (s *KeymapStore) Close() error {
	if err := s.save(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("save: %w", err)
	}
	return s.file.Close()
}

func (s *KeymapStore) load() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, err := s.file.Seek(0, 0)
	if err != nil {
		return fmt.Errorf("seek to start of file: %w", err)
	}

	dec := json.NewDecoder(s.file)
	err = dec.Decode(&s.keymaps)
	if err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}

func (s *KeymapStore) save() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.dirty {
		return nil
	}

	_, err := s.file.Seek(0, 0)
	if err != nil {
		return fmt.Errorf("seek to start of file: %w", err)
	}

	err = s.file.Truncate(0)
	if err != nil {
		return fmt.Errorf("truncate file: %w", err)
	}

	enc := json.NewEncoder(s.file)
	err = enc.Encode(s.keymaps)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	s.dirty = false

	return nil
}

// SaveLooper flushes the store every minute and once more when ctx ends.
func (s *KeymapStore) SaveLooper(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			err := s.save()
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}

			return ctx.Err()
		case <-time.After(time.Minute):
			err := s.save()
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}
		}
	}
}

func (s *KeymapStore) SaveKeymap(km keymap.Keymap) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.keymaps[km.Digest()] = km
	s.dirty = true
	return nil
}

func (s *KeymapStore) LatestKeymap() (*keymap.Keymap, error) {
	keymaps, err := s.ListKeymaps(1)
	if err != nil || len(keymaps) == 0 {
		return nil, err
	}
	return &keymaps[0], nil
}

func (s *KeymapStore) ListKeymaps(limit int) ([]keymap.Keymap, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := make([]keymap.Keymap, 0, len(s.keymaps))
	for _, km := range s.keymaps {
		out = append(out, km)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}
