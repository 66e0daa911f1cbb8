package keymapwatch

import (
	"codeberg.org/miketth/wlkeymap/pkg/keymap"
	"codeberg.org/miketth/wlkeymap/pkg/wayland"
	"errors"
	"fmt"
)

// processKeymap reads one keymap and hands it to the sink. Every event is
// read afresh since the layout can change at any time.
func (w *Watcher) processKeymap(s *seat, kb *keyboard, event wayland.Keymap) {
	if kb.released {
		if err := event.FD.Close(); err != nil {
			w.log.Warnf("close keymap of released keyboard %d: %v", kb.id(), err)
		}
		return
	}

	text, err := keymap.Read(event.FD, event.Format, event.Size)
	switch {
	case errors.Is(err, keymap.ErrUnsupportedFormat):
		w.log.Debugf("keyboard %d sent a keymap in format %s, ignoring", kb.id(), event.Format)
		return
	case err != nil:
		err = fmt.Errorf("keyboard %d on %s: %w", kb.id(), s.label, err)
		w.log.Warnf("read keymap: %v", err)
		w.sink.KeymapFailed(err)
		return
	}

	km := keymap.Keymap{
		Text:       text,
		Format:     event.Format,
		Size:       event.Size,
		Seat:       s.name,
		Keyboard:   kb.id(),
		ReceivedAt: w.now(),
	}

	w.log.Infof("received keymap %.12s (%d bytes) from keyboard %d on %s", km.Digest(), len(text), kb.id(), s.label)

	if err := w.sink.KeymapReceived(km); err != nil {
		w.queue.Fail(fmt.Errorf("deliver keymap: %w", err))
	}
}
