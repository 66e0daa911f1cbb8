package wayland

import (
	"fmt"
	"github.com/rajveermalviya/go-wayland/wayland/client"
	"go.uber.org/zap"
	"sync"
)

// ObjectID is the protocol id of a proxy.
type ObjectID uint32

// Conn is a client connection to a Wayland compositor. Only Interrupt and
// Close may be called from another goroutine than the one dispatching.
type Conn struct {
	display *client.Display
	log     *zap.SugaredLogger

	closeOnce sync.Once
	closeErr  error

	// err is sticky: once set, every dispatch returns it.
	err error
}

// Connect dials the compositor named by the environment.
func Connect(log *zap.SugaredLogger) (*Conn, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	path, err := GetSocketPath()
	if err != nil {
		return nil, fmt.Errorf("%w: get socket path: %w", ErrTransport, err)
	}

	display, err := client.Connect(path)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrTransport, path, err)
	}

	c := &Conn{display: display, log: log}
	display.SetErrorHandler(c.handleError)

	log.Debugf("connected to %s", path)
	return c, nil
}

func (c *Conn) Display() *client.Display {
	return c.display
}

func (c *Conn) Context() *client.Context {
	return c.display.Context()
}

// Close closes the socket. Descriptors of events that were never read are
// released by the kernel with it.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.display.Context().Close()
	})
	return c.closeErr
}

// Interrupt makes a blocked dispatch return by closing the connection.
func (c *Conn) Interrupt() error {
	return c.Close()
}

// Err returns the error that broke the connection, if any.
func (c *Conn) Err() error {
	return c.err
}

func (c *Conn) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return c.err
}

// NewQueue creates the dispatch context the watcher runs on. Every queue of
// a connection reads from the same socket.
func (c *Conn) NewQueue() *Queue {
	return &Queue{conn: c}
}

// dispatch reads one event and runs its handler.
func (c *Conn) dispatch() error {
	if c.err != nil {
		return c.err
	}

	if err := c.display.Context().Dispatch(); err != nil {
		return c.fail(fmt.Errorf("%w: %w", ErrTransport, err))
	}

	// set by handleError
	return c.err
}

func (c *Conn) handleError(ev client.DisplayErrorEvent) {
	perr := &ProtocolError{
		Interface: "unknown",
		Code:      ev.Code,
		Message:   ev.Message,
	}
	if ev.ObjectId != nil {
		perr.ObjectID = ObjectID(ev.ObjectId.ID())
		perr.Interface = interfaceName(ev.ObjectId)
	}

	c.log.Errorf("compositor reported an error: %v", perr)
	c.fail(perr)
}

func interfaceName(p client.Proxy) string {
	switch p.(type) {
	case *client.Display:
		return "wl_display"
	case *client.Registry:
		return "wl_registry"
	case *client.Callback:
		return "wl_callback"
	case *client.Seat:
		return SeatInterface
	case *client.Keyboard:
		return KeyboardInterface
	}
	return fmt.Sprintf("%T", p)
}
