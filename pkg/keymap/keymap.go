package keymap

import (
	"codeberg.org/miketth/wlkeymap/pkg/wayland"
	"encoding/hex"
	"errors"
	"github.com/zeebo/blake3"
	"time"
)

var (
	ErrDecode            = errors.New("keymap could not be decoded")
	ErrUnsupportedFormat = errors.New("unsupported keymap format")
)

// Keymap is the raw keymap text together with the objects that delivered it.
type Keymap struct {
	Text       string               `json:"text"`
	Format     wayland.KeymapFormat `json:"format"`
	Size       uint32               `json:"size"`
	Seat       uint32               `json:"seat"`
	Keyboard   wayland.ObjectID     `json:"keyboard"`
	ReceivedAt time.Time            `json:"received_at"`
}

// Digest is the hex BLAKE3 hash of the keymap text.
func (k Keymap) Digest() string {
	sum := blake3.Sum256([]byte(k.Text))
	return hex.EncodeToString(sum[:])
}
