// Package wltest provides a scripted fake compositor for tests. It listens
// on a socket in its own runtime directory, so clients connect to it the
// same way they connect to a real compositor.
package wltest

import (
	"fmt"
	"github.com/adrg/xdg"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
)

// SocketName is the WAYLAND_DISPLAY of every Server.
const SocketName = "wayland-wltest"

// Wire numbers from wayland.xml.
const (
	DisplayID uint32 = 1

	DisplaySync        = 0
	DisplayGetRegistry = 1
	DisplayError       = 0
	DisplayDeleteID    = 1

	RegistryBind         = 0
	RegistryGlobal       = 0
	RegistryGlobalRemove = 1

	CallbackDone = 0

	SeatGetKeyboard  = 1
	SeatCapabilities = 0
	SeatName         = 1

	KeyboardKeymap     = 0
	KeyboardRepeatInfo = 5
)

type Server struct {
	dir      string
	listener *net.UnixListener
	conn     *net.UnixConn

	in  []byte
	buf []byte
}

// Listen creates a runtime directory holding the compositor socket.
func Listen() (*Server, error) {
	// t.TempDir paths can exceed the unix socket path limit
	dir, err := os.MkdirTemp("", "wltest")
	if err != nil {
		return nil, fmt.Errorf("create runtime dir: %w", err)
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: filepath.Join(dir, SocketName), Net: "unix"})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("listen: %w", err)
	}

	return &Server{dir: dir, listener: listener, buf: make([]byte, 4096)}, nil
}

// Start is Listen for tests: it points XDG_RUNTIME_DIR and WAYLAND_DISPLAY
// at the server and closes it when the test ends.
func Start(t testing.TB) *Server {
	t.Helper()

	srv, err := Listen()
	if err != nil {
		t.Fatalf("start fake compositor: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	t.Setenv("XDG_RUNTIME_DIR", srv.RuntimeDir())
	t.Setenv("WAYLAND_DISPLAY", SocketName)
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	return srv
}

func (s *Server) RuntimeDir() string {
	return s.dir
}

// Accept takes the next client connection.
func (s *Server) Accept() error {
	conn, err := s.listener.AcceptUnix()
	if err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	s.conn = conn
	s.in = nil
	return nil
}

// Disconnect drops the client connection, as a crashing compositor would.
func (s *Server) Disconnect() error {
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	return conn.Close()
}

func (s *Server) Close() error {
	return multierr.Combine(
		s.Disconnect(),
		s.listener.Close(),
		os.RemoveAll(s.dir),
	)
}

// Next reads the next request the client sent.
func (s *Server) Next() (*Request, error) {
	for {
		req, n, err := splitRequest(s.in)
		if err != nil {
			return nil, err
		}
		if req != nil {
			s.in = s.in[n:]
			return req, nil
		}

		n, err = s.conn.Read(s.buf)
		if n == 0 && err == nil {
			err = io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		s.in = append(s.in, s.buf[:n]...)
	}
}

// Expect reads the next request and checks where it was sent.
func (s *Server) Expect(object uint32, opcode uint16) (*Request, error) {
	req, err := s.Next()
	if err != nil {
		return nil, err
	}
	if req.Object != object || req.Opcode != opcode {
		return nil, fmt.Errorf("expected request %d on object %d, got request %d on object %d",
			opcode, object, req.Opcode, req.Object)
	}
	return req, nil
}

// ExpectNewID reads a request whose only argument is a new object id, like
// wl_display.sync or wl_seat.get_keyboard, and returns that id.
func (s *Server) ExpectNewID(object uint32, opcode uint16) (uint32, error) {
	req, err := s.Expect(object, opcode)
	if err != nil {
		return 0, err
	}
	return req.ReadUint()
}

// Bind is a decoded wl_registry.bind request.
type Bind struct {
	Name      uint32
	Interface string
	Version   uint32
	ID        uint32
}

func (s *Server) ExpectBind(registry uint32) (Bind, error) {
	req, err := s.Expect(registry, RegistryBind)
	if err != nil {
		return Bind{}, err
	}

	var bind Bind
	if bind.Name, err = req.ReadUint(); err != nil {
		return Bind{}, err
	}
	if bind.Interface, err = req.ReadString(); err != nil {
		return Bind{}, err
	}
	if bind.Version, err = req.ReadUint(); err != nil {
		return Bind{}, err
	}
	if bind.ID, err = req.ReadUint(); err != nil {
		return Bind{}, err
	}
	return bind, nil
}

// ExpectSetup reads the get_registry and sync requests every client starts
// with.
func (s *Server) ExpectSetup() (registry, callback uint32, err error) {
	if registry, err = s.ExpectNewID(DisplayID, DisplayGetRegistry); err != nil {
		return 0, 0, err
	}
	if callback, err = s.ExpectNewID(DisplayID, DisplaySync); err != nil {
		return 0, 0, err
	}
	return registry, callback, nil
}

// Send writes one event per sendmsg call, with its descriptors attached.
func (s *Server) Send(ev *Event) error {
	var oob []byte
	if len(ev.fds) > 0 {
		oob = unix.UnixRights(ev.fds...)
	}

	if _, _, err := s.conn.WriteMsgUnix(ev.bytes(), oob, nil); err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	return nil
}

func (s *Server) Global(registry, name uint32, iface string, version uint32) error {
	return s.Send(NewEvent(registry, RegistryGlobal).PutUint(name).PutString(iface).PutUint(version))
}

func (s *Server) GlobalRemove(registry, name uint32) error {
	return s.Send(NewEvent(registry, RegistryGlobalRemove).PutUint(name))
}

// Done completes a callback and deletes it, as compositors do.
func (s *Server) Done(callback, data uint32) error {
	return multierr.Combine(
		s.Send(NewEvent(callback, CallbackDone).PutUint(data)),
		s.DeleteID(callback),
	)
}

func (s *Server) DeleteID(id uint32) error {
	return s.Send(NewEvent(DisplayID, DisplayDeleteID).PutUint(id))
}

func (s *Server) Error(object, code uint32, message string) error {
	return s.Send(NewEvent(DisplayID, DisplayError).PutUint(object).PutUint(code).PutString(message))
}

func (s *Server) Capabilities(seat, caps uint32) error {
	return s.Send(NewEvent(seat, SeatCapabilities).PutUint(caps))
}

func (s *Server) SeatName(seat uint32, name string) error {
	return s.Send(NewEvent(seat, SeatName).PutString(name))
}

// Keymap sends fd to the keyboard. The caller keeps its own copy of fd.
func (s *Server) Keymap(keyboard, format uint32, fd int, size uint32) error {
	return s.Send(NewEvent(keyboard, KeyboardKeymap).PutUint(format).PutFD(fd).PutUint(size))
}

func (s *Server) RepeatInfo(keyboard uint32, rate, delay int32) error {
	return s.Send(NewEvent(keyboard, KeyboardRepeatInfo).PutInt(rate).PutInt(delay))
}

// KeymapFile returns a memfd holding contents. Its offset is
// left at the end of the data, like a compositor that just wrote it.
func KeymapFile(contents string) (*os.File, error) {
	fd, err := unix.MemfdCreate("wltest-keymap", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}

	file := os.NewFile(uintptr(fd), "wltest-keymap")
	if _, err := file.WriteString(contents); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write keymap: %w", err)
	}

	return file, nil
}
