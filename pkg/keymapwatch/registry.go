package keymapwatch

import (
	"codeberg.org/miketth/wlkeymap/pkg/wayland"
	"fmt"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

func (w *Watcher) processGlobal(global client.RegistryGlobalEvent) {
	if global.Interface != wayland.SeatInterface {
		w.log.Debugf("ignoring global %s (name %d, version %d)", global.Interface, global.Name, global.Version)
		return
	}

	proxy := client.NewSeat(w.conn.Context())
	if err := w.registry.Bind(global.Name, wayland.SeatInterface, seatVersion, proxy); err != nil {
		w.queue.Fail(fmt.Errorf("bind seat %d: %w", global.Name, err))
		return
	}

	s := &seat{
		name:  global.Name,
		label: fmt.Sprintf("seat-%d", global.Name),
		proxy: proxy,
	}
	proxy.SetCapabilitiesHandler(func(ev client.SeatCapabilitiesEvent) {
		w.processCapabilities(s, wayland.SeatCapability(ev.Capabilities))
	})
	proxy.SetNameHandler(func(ev client.SeatNameEvent) {
		w.log.Debugf("%s is called %q", s.label, ev.Name)
		s.label = ev.Name
	})
	w.seats[global.Name] = s

	w.log.Debugf("bound %s as object %d", s.label, proxy.ID())
}

func (w *Watcher) processGlobalRemove(remove client.RegistryGlobalRemoveEvent) {
	s, ok := w.seats[remove.Name]
	if !ok {
		return
	}

	w.log.Infof("seat %s was removed", s.label)
	w.releaseKeyboards(s)
	// wl_seat.release needs version 5
	s.proxy.SetCapabilitiesHandler(nil)
	s.proxy.SetNameHandler(nil)
	delete(w.seats, remove.Name)
}
