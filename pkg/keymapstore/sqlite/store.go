package sqlite

import (
	"codeberg.org/miketth/wlkeymap/pkg/keymap"
	"codeberg.org/miketth/wlkeymap/pkg/keymapstore/sqlite/migrations"
	"codeberg.org/miketth/wlkeymap/pkg/wayland"
	"context"
	"database/sql"
	"errors"
	"fmt"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"time"
)

// KeymapStore keeps one row per distinct keymap text and counts how often it
// was seen.
type KeymapStore struct {
	db      *sql.DB
	querier *Queries
	version uint
}

func NewKeymapStore(filename string, log *zap.SugaredLogger) (*KeymapStore, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	version, err := migrations.Migrate(db, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	querier := New(db)

	return &KeymapStore{
		db:      db,
		querier: querier,
		version: version,
	}, nil
}

// SchemaVersion is the migration the database was at after opening.
func (s *KeymapStore) SchemaVersion() uint {
	return s.version
}

func (s *KeymapStore) Close() error {
	return s.db.Close()
}

func (s *KeymapStore) SaveKeymap(km keymap.Keymap) error {
	seen := km.ReceivedAt.UnixMilli()
	if err := s.querier.UpsertKeymap(context.Background(), UpsertKeymapParams{
		Digest:    km.Digest(),
		Format:    int64(km.Format),
		Size:      int64(km.Size),
		Text:      km.Text,
		Seat:      int64(km.Seat),
		Keyboard:  int64(km.Keyboard),
		FirstSeen: seen,
		LastSeen:  seen,
	}); err != nil {
		return fmt.Errorf("sqlite upsert: %w", err)
	}

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
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.querier.ListKeymaps(context.Background(), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite select: %w", err)
	}

	ret := make([]keymap.Keymap, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, keymap.Keymap{
			Text:       row.Text,
			Format:     wayland.KeymapFormat(row.Format),
			Size:       uint32(row.Size),
			Seat:       uint32(row.Seat),
			Keyboard:   wayland.ObjectID(row.Keyboard),
			ReceivedAt: time.UnixMilli(row.LastSeen),
		})
	}

	return ret, nil
}

// SeenCount reports how many times the keymap with the given digest was
// saved.
func (s *KeymapStore) SeenCount(digest string) (int64, error) {
	count, err := s.querier.SeenCount(context.Background(), digest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("sqlite select: %w", err)
	}
	return count, nil
}
