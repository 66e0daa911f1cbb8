package wayland

import (
	"fmt"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

// Queue dispatches events and collects handler failures. Handlers have no
// return value, so they report through Fail; the first failure ends every
// later Dispatch.
type Queue struct {
	conn *Conn
	err  error
}

// Fail records err as the result of the running handler.
func (q *Queue) Fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

// Dispatch blocks until one event arrives and runs its handler.
func (q *Queue) Dispatch() error {
	if q.err != nil {
		return q.err
	}
	if err := q.conn.dispatch(); err != nil {
		return err
	}
	return q.err
}

// Roundtrip blocks until the compositor has processed every request sent so
// far, dispatching all events that arrive in the meantime.
func (q *Queue) Roundtrip() error {
	callback, err := q.conn.display.Sync()
	if err != nil {
		return q.conn.fail(fmt.Errorf("%w: wl_display.sync: %w", ErrTransport, err))
	}
	defer func() {
		if err := callback.Destroy(); err != nil {
			q.conn.log.Warnf("destroy sync callback: %v", err)
		}
	}()

	done := false
	callback.SetDoneHandler(func(client.CallbackDoneEvent) {
		done = true
	})

	for !done {
		if err := q.Dispatch(); err != nil {
			if q.err != nil {
				return q.err
			}
			return fmt.Errorf("%w: roundtrip interrupted: %w", ErrProtocol, err)
		}
	}

	return nil
}
