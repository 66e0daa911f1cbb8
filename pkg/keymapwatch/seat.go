package keymapwatch

import (
	"codeberg.org/miketth/wlkeymap/pkg/wayland"
	"fmt"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

func (w *Watcher) processCapabilities(s *seat, caps wayland.SeatCapability) {
	s.caps = caps
	w.log.Debugf("%s capabilities: %s", s.label, caps)

	if !caps.Has(wayland.SeatCapabilityKeyboard) {
		w.releaseKeyboards(s)
		return
	}

	if w.opts.DedupeKeyboards && len(s.keyboards) > 0 {
		w.log.Debugf("%s already has keyboard %d", s.label, s.keyboards[0].id())
		return
	}

	proxy, err := s.proxy.GetKeyboard()
	if err != nil {
		w.queue.Fail(fmt.Errorf("get keyboard for %s: %w", s.label, err))
		return
	}

	kb := &keyboard{proxy: proxy}
	proxy.SetKeymapHandler(func(ev client.KeyboardKeymapEvent) {
		w.processKeymap(s, kb, wayland.TakeKeymap(ev))
	})
	s.keyboards = append(s.keyboards, kb)

	w.log.Debugf("requested keyboard %d for %s", kb.id(), s.label)
}

// releaseKeyboards forgets the keyboards of s. The bound version has no
// wl_keyboard.release, so the objects stay alive and their keymaps are
// dropped.
func (w *Watcher) releaseKeyboards(s *seat) {
	for _, kb := range s.keyboards {
		kb.released = true
		w.log.Debugf("released keyboard %d of %s", kb.id(), s.label)
	}
	s.keyboards = nil
}
