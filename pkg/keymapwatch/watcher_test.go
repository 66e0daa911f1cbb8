package keymapwatch

import (
	"codeberg.org/miketth/wlkeymap/pkg/keymap"
	"codeberg.org/miketth/wlkeymap/pkg/wayland"
	"codeberg.org/miketth/wlkeymap/pkg/wayland/wltest"
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"
	"os"
	"testing"
	"time"
)

const testKeymap = `xkb_keymap {
	xkb_keycodes { include "evdev+aliases(qwerty)" };
	xkb_symbols  { include "pc+us+inet(evdev)" };
};
`

// Object ids the client hands out in the order the watcher creates objects.
const (
	registryID uint32 = 2
	callbackID uint32 = 3
	seatID     uint32 = 4
	keyboardID uint32 = 5

	seatName = 7
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	received []keymap.Keymap
	failed   []error
	err      error
}

func (r *recordingSink) KeymapReceived(km keymap.Keymap) error {
	r.received = append(r.received, km)
	return r.err
}

func (r *recordingSink) KeymapFailed(err error) {
	r.failed = append(r.failed, err)
}

type fixture struct {
	srv     *wltest.Server
	conn    *wayland.Conn
	watcher *Watcher
	sink    *recordingSink
}

func newFixture(t *testing.T, sink Sink, opts Options) (*fixture, *recordingSink) {
	t.Helper()

	srv := wltest.Start(t)
	conn, err := wayland.Connect(zaptest.NewLogger(t).Sugar().Named("wayland"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, srv.Accept())

	recorder := &recordingSink{}
	if sink == nil {
		sink = recorder
	}

	watcher := NewWatcher(conn, sink, zaptest.NewLogger(t).Sugar(), opts)
	watcher.now = func() time.Time { return testTime }

	return &fixture{srv: srv, conn: conn, watcher: watcher, sink: recorder}, recorder
}

// setup answers the initial roundtrip with the given globals.
func (f *fixture) setup(t *testing.T, globals map[uint32]string) {
	t.Helper()

	for name, iface := range globals {
		require.NoError(t, f.srv.Global(registryID, name, iface, 7))
	}
	require.NoError(t, f.srv.Done(callbackID, 0))

	require.NoError(t, f.watcher.step())
	assert.Equal(t, phaseSteady, f.watcher.phase)

	// delete_id of the sync callback
	require.NoError(t, f.watcher.step())

	registry, callback, err := f.srv.ExpectSetup()
	require.NoError(t, err)
	assert.Equal(t, registryID, registry)
	assert.Equal(t, callbackID, callback)
}

func (f *fixture) setupSeat(t *testing.T) {
	t.Helper()

	f.setup(t, map[uint32]string{
		1:        "wl_compositor",
		seatName: wayland.SeatInterface,
		9:        "wl_output",
	})

	bind, err := f.srv.ExpectBind(registryID)
	require.NoError(t, err)
	assert.Equal(t, wltest.Bind{Name: seatName, Interface: wayland.SeatInterface, Version: 1, ID: seatID}, bind)
}

// capabilities sends a capabilities event and dispatches it.
func (f *fixture) capabilities(t *testing.T, caps wayland.SeatCapability) {
	t.Helper()

	require.NoError(t, f.srv.Capabilities(seatID, uint32(caps)))
	require.NoError(t, f.watcher.step())
}

// sendKeymap sends contents as a keymap on keyboard and dispatches it.
func (f *fixture) sendKeymap(t *testing.T, keyboard uint32, format wayland.KeymapFormat, contents string) {
	t.Helper()

	file, err := wltest.KeymapFile(contents)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, f.srv.Keymap(keyboard, uint32(format), int(file.Fd()), uint32(len(contents))))
	require.NoError(t, f.watcher.step())
}

// keymapPipe returns a descriptor to send as a keymap. Writing to w fails
// with EPIPE once every copy of r is closed. The caller closes r.
func keymapPipe(t *testing.T) (r, w int) {
	t.Helper()

	var p [2]int
	require.NoError(t, unix.Pipe2(p[:], unix.O_CLOEXEC))
	t.Cleanup(func() { _ = unix.Close(p[1]) })
	return p[0], p[1]
}

func assertReadEndClosed(t *testing.T, w int) {
	t.Helper()

	_, err := unix.Write(w, []byte("x"))
	assert.ErrorIs(t, err, unix.EPIPE, "a copy of the keymap descriptor is still open")
}

func TestWatcherDeliversKeymap(t *testing.T) {
	f, sink := newFixture(t, nil, Options{})
	f.setupSeat(t)

	f.capabilities(t, wayland.SeatCapabilityPointer|wayland.SeatCapabilityKeyboard)

	// the first request after the bind is get_keyboard, so no other global
	// was bound
	id, err := f.srv.ExpectNewID(seatID, wltest.SeatGetKeyboard)
	require.NoError(t, err)
	assert.Equal(t, keyboardID, id)

	f.sendKeymap(t, keyboardID, wayland.KeymapFormatXkbV1, testKeymap)

	require.Len(t, sink.received, 1)
	assert.Equal(t, keymap.Keymap{
		Text:       testKeymap,
		Format:     wayland.KeymapFormatXkbV1,
		Size:       uint32(len(testKeymap)),
		Seat:       seatName,
		Keyboard:   wayland.ObjectID(keyboardID),
		ReceivedAt: testTime,
	}, sink.received[0])
	assert.Empty(t, sink.failed)
}

func TestWatcherWithoutSeat(t *testing.T) {
	f, _ := newFixture(t, nil, Options{})
	f.setup(t, map[uint32]string{1: "wl_compositor", 2: "wl_shm"})

	assert.Empty(t, f.watcher.seats)
}

func TestWatcherDeliversEveryKeymap(t *testing.T) {
	f, sink := newFixture(t, nil, Options{})
	f.setupSeat(t)
	f.capabilities(t, wayland.SeatCapabilityKeyboard)

	f.sendKeymap(t, keyboardID, wayland.KeymapFormatXkbV1, testKeymap)
	f.sendKeymap(t, keyboardID, wayland.KeymapFormatXkbV1, "xkb_keymap { de };")

	require.Len(t, sink.received, 2)
	assert.Equal(t, testKeymap, sink.received[0].Text)
	assert.Equal(t, "xkb_keymap { de };", sink.received[1].Text)
}

func TestWatcherRequestsKeyboardPerCapabilitiesEvent(t *testing.T) {
	f, sink := newFixture(t, nil, Options{})
	f.setupSeat(t)

	f.capabilities(t, wayland.SeatCapabilityKeyboard)
	f.capabilities(t, wayland.SeatCapabilityKeyboard|wayland.SeatCapabilityPointer)

	first, err := f.srv.ExpectNewID(seatID, wltest.SeatGetKeyboard)
	require.NoError(t, err)
	second, err := f.srv.ExpectNewID(seatID, wltest.SeatGetKeyboard)
	require.NoError(t, err)
	assert.Equal(t, keyboardID, first)
	assert.Equal(t, keyboardID+1, second)

	// both keyboards report keymaps
	f.sendKeymap(t, first, wayland.KeymapFormatXkbV1, testKeymap)
	f.sendKeymap(t, second, wayland.KeymapFormatXkbV1, testKeymap)
	require.Len(t, sink.received, 2)
	assert.Equal(t, wayland.ObjectID(first), sink.received[0].Keyboard)
	assert.Equal(t, wayland.ObjectID(second), sink.received[1].Keyboard)
}

func TestWatcherDedupeKeyboards(t *testing.T) {
	f, _ := newFixture(t, nil, Options{DedupeKeyboards: true})
	f.setupSeat(t)

	f.capabilities(t, wayland.SeatCapabilityKeyboard)
	f.capabilities(t, wayland.SeatCapabilityKeyboard|wayland.SeatCapabilityPointer)

	require.Len(t, f.watcher.seats[seatName].keyboards, 1)
	assert.Equal(t, wayland.ObjectID(keyboardID), f.watcher.seats[seatName].keyboards[0].id())
}

func TestWatcherIgnoresSeatWithoutKeyboard(t *testing.T) {
	f, _ := newFixture(t, nil, Options{})
	f.setupSeat(t)

	f.capabilities(t, wayland.SeatCapabilityPointer|wayland.SeatCapabilityTouch)

	assert.Empty(t, f.watcher.seats[seatName].keyboards)
	assert.Equal(t, wayland.SeatCapabilityPointer|wayland.SeatCapabilityTouch, f.watcher.seats[seatName].caps)
}

func TestWatcherReleasesKeyboardOnCapabilityLoss(t *testing.T) {
	f, sink := newFixture(t, nil, Options{})
	f.setupSeat(t)

	f.capabilities(t, wayland.SeatCapabilityKeyboard)
	f.capabilities(t, wayland.SeatCapabilityPointer)
	assert.Empty(t, f.watcher.seats[seatName].keyboards)

	// a keymap racing with the release is dropped and its descriptor closed
	r, w := keymapPipe(t)
	require.NoError(t, f.srv.Keymap(keyboardID, uint32(wayland.KeymapFormatXkbV1), r, 4096))
	require.NoError(t, unix.Close(r))
	require.NoError(t, f.watcher.step())

	assert.Empty(t, sink.received)
	assert.Empty(t, sink.failed)
	assertReadEndClosed(t, w)
}

func TestWatcherSkipsUnsupportedFormat(t *testing.T) {
	f, sink := newFixture(t, nil, Options{})
	f.setupSeat(t)
	f.capabilities(t, wayland.SeatCapabilityKeyboard)

	r, w := keymapPipe(t)
	require.NoError(t, f.srv.Keymap(keyboardID, uint32(wayland.KeymapFormatNoKeymap), r, 0))
	require.NoError(t, unix.Close(r))
	require.NoError(t, f.watcher.step())

	assert.Empty(t, sink.received)
	assert.Empty(t, sink.failed)
	assertReadEndClosed(t, w)
}

func TestWatcherReportsUnreadableKeymap(t *testing.T) {
	f, sink := newFixture(t, nil, Options{})
	f.setupSeat(t)
	f.capabilities(t, wayland.SeatCapabilityKeyboard)

	f.sendKeymap(t, keyboardID, wayland.KeymapFormatXkbV1, "")

	assert.Empty(t, sink.received)
	require.Len(t, sink.failed, 1)
	assert.ErrorIs(t, sink.failed[0], keymap.ErrDecode)
}

func TestWatcherSeatName(t *testing.T) {
	f, _ := newFixture(t, nil, Options{})
	f.setupSeat(t)

	require.NoError(t, f.srv.SeatName(seatID, "seat0"))
	require.NoError(t, f.watcher.step())

	assert.Equal(t, "seat0", f.watcher.seats[seatName].label)
}

func TestWatcherGlobalRemove(t *testing.T) {
	f, _ := newFixture(t, nil, Options{})
	f.setupSeat(t)
	f.capabilities(t, wayland.SeatCapabilityKeyboard)
	kb := f.watcher.seats[seatName].keyboards[0]

	require.NoError(t, f.srv.GlobalRemove(registryID, 9))
	require.NoError(t, f.watcher.step())
	assert.Contains(t, f.watcher.seats, uint32(seatName), "removing other globals keeps the seat")

	require.NoError(t, f.srv.GlobalRemove(registryID, seatName))
	require.NoError(t, f.watcher.step())
	assert.Empty(t, f.watcher.seats)
	assert.True(t, kb.released)
}

func TestWatcherSinkErrorStops(t *testing.T) {
	f, sink := newFixture(t, nil, Options{})
	sink.err = errors.New("disk full")
	f.setupSeat(t)
	f.capabilities(t, wayland.SeatCapabilityKeyboard)

	file, err := wltest.KeymapFile(testKeymap)
	require.NoError(t, err)
	defer file.Close()
	require.NoError(t, f.srv.Keymap(keyboardID, uint32(wayland.KeymapFormatXkbV1), int(file.Fd()), uint32(len(testKeymap))))

	err = f.watcher.step()
	assert.ErrorContains(t, err, "disk full")
	assert.ErrorContains(t, f.watcher.step(), "disk full", "the failure is kept")
}

// serve plays a compositor with one seat that has a keyboard, and sends
// every keymap in keymaps.
func serve(srv *wltest.Server, keymaps ...func(keyboard uint32) error) error {
	registry, callback, err := srv.ExpectSetup()
	if err != nil {
		return err
	}
	if err := srv.Global(registry, 1, "wl_compositor", 5); err != nil {
		return err
	}
	if err := srv.Global(registry, seatName, wayland.SeatInterface, 8); err != nil {
		return err
	}
	if err := srv.Done(callback, 0); err != nil {
		return err
	}

	bind, err := srv.ExpectBind(registry)
	if err != nil {
		return err
	}
	if err := srv.Capabilities(bind.ID, uint32(wayland.SeatCapabilityKeyboard)); err != nil {
		return err
	}

	keyboard, err := srv.ExpectNewID(bind.ID, wltest.SeatGetKeyboard)
	if err != nil {
		return err
	}
	for _, send := range keymaps {
		if err := send(keyboard); err != nil {
			return err
		}
	}
	return nil
}

func sendFile(srv *wltest.Server, file *os.File, size int) func(uint32) error {
	return func(keyboard uint32) error {
		return srv.Keymap(keyboard, uint32(wayland.KeymapFormatXkbV1), int(file.Fd()), uint32(size))
	}
}

func TestRunOnce(t *testing.T) {
	sink := &recordingSink{}
	f, _ := newFixture(t, Once{Sink: sink}, Options{})

	file, err := wltest.KeymapFile(testKeymap)
	require.NoError(t, err)
	defer file.Close()

	served := make(chan error, 1)
	go func() {
		served <- serve(f.srv, sendFile(f.srv, file, len(testKeymap)))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, f.watcher.Run(ctx))
	require.NoError(t, <-served)

	require.Len(t, sink.received, 1)
	assert.Equal(t, testKeymap, sink.received[0].Text)
	assert.Equal(t, uint32(seatName), sink.received[0].Seat)
}

func TestRunOnceReleasesUnreadKeymaps(t *testing.T) {
	sink := &recordingSink{}
	f, _ := newFixture(t, Once{Sink: sink}, Options{})

	file, err := wltest.KeymapFile(testKeymap)
	require.NoError(t, err)
	defer file.Close()

	// the second keymap is still queued when the first one stops the watcher
	r, w := keymapPipe(t)
	served := make(chan error, 1)
	go func() {
		served <- serve(f.srv,
			sendFile(f.srv, file, len(testKeymap)),
			func(keyboard uint32) error {
				return f.srv.Keymap(keyboard, uint32(wayland.KeymapFormatXkbV1), r, 4096)
			},
		)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, f.watcher.Run(ctx))
	require.NoError(t, <-served)
	require.Len(t, sink.received, 1)

	require.NoError(t, unix.Close(r))
	require.NoError(t, f.conn.Close())
	assertReadEndClosed(t, w)
}

func TestRunCancel(t *testing.T) {
	f, _ := newFixture(t, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.watcher.Run(ctx)
	}()

	// the watcher is now blocked waiting for the roundtrip
	_, _, err := f.srv.ExpectSetup()
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunConnectionLost(t *testing.T) {
	f, _ := newFixture(t, nil, Options{})

	done := make(chan error, 1)
	go func() {
		_, _, err := f.srv.ExpectSetup()
		if err == nil {
			err = f.srv.Disconnect()
		}
		done <- err
	}()

	err := f.watcher.Run(context.Background())
	require.NoError(t, <-done)
	assert.ErrorIs(t, err, wayland.ErrTransport)
	assert.ErrorContains(t, err, "setup phase")
}
