package memory

import (
	"codeberg.org/miketth/wlkeymap/pkg/keymap"
	"sort"
	"sync"
)

type KeymapStore struct {
	keymaps map[string]keymap.Keymap
	lock    sync.Mutex
}

func NewKeymapStore() *KeymapStore {
	return &KeymapStore{
		keymaps: make(map[string]keymap.Keymap),
	}
}

func (s *KeymapStore) SaveKeymap(km keymap.Keymap) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.keymaps[km.Digest()] = km
	return nil
}

func (s *KeymapStore) LatestKeymap() (*keymap.Keymap, error) {
	keymaps, err := s.ListKeymaps(1)
	if err != nil || len(keymaps) == 0 {
		return nil, err
	}
	return &keymaps[0], nil
}

// ListKeymaps returns the most recently seen keymaps first. A limit of zero
// or less returns all of them.
func (s *KeymapStore) ListKeymaps(limit int) ([]keymap.Keymap, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return newestFirst(s.keymaps, limit), nil
}

func newestFirst(keymaps map[string]keymap.Keymap, limit int) []keymap.Keymap {
	out := make([]keymap.Keymap, 0, len(keymaps))
	for _, km := range keymaps {
		out = append(out, km)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
