package wayland

import (
	"fmt"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

// KeymapFormat tells how the keymap behind a descriptor is encoded.
type KeymapFormat uint32

const (
	KeymapFormatNoKeymap KeymapFormat = 0
	KeymapFormatXkbV1    KeymapFormat = 1
)

func (f KeymapFormat) String() string {
	switch f {
	case KeymapFormatNoKeymap:
		return "no_keymap"
	case KeymapFormatXkbV1:
		return "xkb_v1"
	}
	return fmt.Sprintf("format(%d)", uint32(f))
}

const KeyboardInterface = "wl_keyboard"

// Keymap is a wl_keyboard.keymap event whose descriptor is owned by the
// receiver.
type Keymap struct {
	Format KeymapFormat
	FD     *FD
	Size   uint32
}

// TakeKeymap wraps the raw descriptor of ev. The caller has to close the
// returned FD.
func TakeKeymap(ev client.KeyboardKeymapEvent) Keymap {
	return Keymap{
		Format: KeymapFormat(ev.Format),
		FD:     NewFD(ev.Fd),
		Size:   ev.Size,
	}
}
