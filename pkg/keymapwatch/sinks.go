package keymapwatch

import (
	"codeberg.org/miketth/wlkeymap/pkg/keymap"
	"fmt"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"io"
	"strings"
)

// Printer writes the raw keymap text to W.
type Printer struct {
	W io.Writer
}

func (p Printer) KeymapReceived(km keymap.Keymap) error {
	text := km.Text
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if _, err := io.WriteString(p.W, text); err != nil {
		return fmt.Errorf("print keymap: %w", err)
	}
	return nil
}

func (p Printer) KeymapFailed(error) {}

// StoreSink records every keymap in a KeymapStore.
type StoreSink struct {
	Store KeymapStore
	Log   *zap.SugaredLogger
}

func (s StoreSink) KeymapReceived(km keymap.Keymap) error {
	if err := s.Store.SaveKeymap(km); err != nil {
		return fmt.Errorf("save keymap: %w", err)
	}
	return nil
}

func (s StoreSink) KeymapFailed(err error) {
	s.Log.Warnf("no keymap stored: %v", err)
}

// Once forwards the first keymap and then stops the watcher.
type Once struct {
	Sink Sink
}

func (o Once) KeymapReceived(km keymap.Keymap) error {
	if err := o.Sink.KeymapReceived(km); err != nil {
		return err
	}
	return ErrStop
}

func (o Once) KeymapFailed(err error) {
	o.Sink.KeymapFailed(err)
}

// Sinks fans out to every sink in order. All sinks see the keymap even when
// one of them fails.
type Sinks []Sink

func (s Sinks) KeymapReceived(km keymap.Keymap) error {
	var err error
	for _, sink := range s {
		err = multierr.Append(err, sink.KeymapReceived(km))
	}
	return err
}

func (s Sinks) KeymapFailed(err error) {
	for _, sink := range s {
		sink.KeymapFailed(err)
	}
}
