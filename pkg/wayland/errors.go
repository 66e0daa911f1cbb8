package wayland

import (
	"errors"
	"fmt"
)

var (
	ErrNotRunning = errors.New("wayland compositor might not be running")
	ErrTransport  = errors.New("wayland transport error")
	ErrProtocol   = errors.New("wayland protocol error")
)

// ProtocolError is a fatal error reported by the compositor through
// wl_display.error. The connection is unusable afterwards.
type ProtocolError struct {
	ObjectID  ObjectID
	Interface string
	Code      uint32
	Message   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s@%d: error %d: %s", e.Interface, e.ObjectID, e.Code, e.Message)
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}
