package keymapwatch

import (
	"codeberg.org/miketth/wlkeymap/pkg/wayland"
	"errors"
	"github.com/rajveermalviya/go-wayland/wayland/client"
	"go.uber.org/zap"
	"time"
)

var ErrStop = errors.New("stop requested")

// seatVersion is the wl_seat version the watcher binds.
const seatVersion = 1

type Options struct {
	// DedupeKeyboards requests a keyboard only when the seat gains the
	// keyboard capability, not on every capabilities event.
	DedupeKeyboards bool
}

// Watcher follows the keymaps of every seat on a connection.
type Watcher struct {
	conn     *wayland.Conn
	queue    *wayland.Queue
	registry *client.Registry
	seats    map[uint32]*seat
	phase    phase

	sink Sink
	opts Options
	log  *zap.SugaredLogger
	now  func() time.Time
}

type seat struct {
	name      uint32
	label     string
	proxy     *client.Seat
	caps      wayland.SeatCapability
	keyboards []*keyboard
}

// keyboard stays registered after release; a wl_keyboard below version 3
// cannot be destroyed, so its events keep arriving.
type keyboard struct {
	proxy    *client.Keyboard
	released bool
}

func (k *keyboard) id() wayland.ObjectID {
	return wayland.ObjectID(k.proxy.ID())
}

func NewWatcher(conn *wayland.Conn, sink Sink, log *zap.SugaredLogger, opts Options) *Watcher {
	return &Watcher{
		conn:  conn,
		queue: conn.NewQueue(),
		seats: make(map[uint32]*seat),
		phase: phaseSetup,
		sink:  sink,
		opts:  opts,
		log:   log,
		now:   time.Now,
	}
}
