package keymapwatch

import "codeberg.org/miketth/wlkeymap/pkg/keymap"

// Sink receives the keymaps the compositor sends. KeymapReceived returning an
// error stops the watcher; ErrStop stops it cleanly.
type Sink interface {
	KeymapReceived(km keymap.Keymap) error
	KeymapFailed(err error)
}

type KeymapStore interface {
	SaveKeymap(km keymap.Keymap) error
	LatestKeymap() (*keymap.Keymap, error)
	ListKeymaps(limit int) ([]keymap.Keymap, error)
}
