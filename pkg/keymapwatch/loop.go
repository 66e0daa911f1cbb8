package keymapwatch

import (
	"codeberg.org/miketth/wlkeymap/pkg/wayland"
	"context"
	"errors"
	"fmt"
)

type phase int

const (
	// phaseSetup does one roundtrip so every global that existed at connect
	// time is seen.
	phaseSetup phase = iota
	// phaseSteady dispatches events until the connection breaks.
	phaseSteady
)

func (p phase) String() string {
	switch p {
	case phaseSetup:
		return "setup"
	case phaseSteady:
		return "steady"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Run drives the watcher until the connection fails, the sink asks to stop,
// or ctx is cancelled. Cancelling ctx closes the connection to interrupt
// the blocking read.
func (w *Watcher) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		if err := w.conn.Interrupt(); err != nil {
			w.log.Warnf("interrupt connection: %v", err)
		}
	})
	defer stop()

	for {
		err := w.step()
		switch {
		case err == nil:
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrStop):
			return nil
		default:
			return fmt.Errorf("%s phase: %w", w.phase, err)
		}
	}
}

func (w *Watcher) step() error {
	switch w.phase {
	case phaseSetup:
		if err := w.setup(); err != nil {
			return err
		}
		w.phase = phaseSteady
		w.log.Debugf("setup done, %d seat(s) bound", len(w.seats))
		return nil

	case phaseSteady:
		return w.queue.Dispatch()
	}

	return fmt.Errorf("unknown phase %d", int(w.phase))
}

func (w *Watcher) setup() error {
	registry, err := w.conn.Display().GetRegistry()
	if err != nil {
		return fmt.Errorf("%w: get registry: %w", wayland.ErrTransport, err)
	}
	registry.SetGlobalHandler(w.processGlobal)
	registry.SetGlobalRemoveHandler(w.processGlobalRemove)
	w.registry = registry

	if err := w.queue.Roundtrip(); err != nil {
		return fmt.Errorf("roundtrip: %w", err)
	}

	return nil
}
