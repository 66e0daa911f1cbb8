package wltest

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const headerSize = 8

var byteOrder = binary.NativeEndian

// Request is one message a client sent.
type Request struct {
	Object uint32
	Opcode uint16
	args   []byte
}

func (r *Request) ReadUint() (uint32, error) {
	if len(r.args) < 4 {
		return 0, fmt.Errorf("object %d opcode %d: message too short", r.Object, r.Opcode)
	}
	v := byteOrder.Uint32(r.args)
	r.args = r.args[4:]
	return v, nil
}

func (r *Request) ReadString() (string, error) {
	n, err := r.ReadUint()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}

	padded := pad(int(n))
	if len(r.args) < padded || r.args[n-1] != 0 {
		return "", fmt.Errorf("object %d opcode %d: bad string argument", r.Object, r.Opcode)
	}
	s := string(r.args[:n-1])
	r.args = r.args[padded:]
	return s, nil
}

// Event is a message to send to the client.
type Event struct {
	object uint32
	opcode uint16
	args   []byte
	fds    []int
}

func NewEvent(object uint32, opcode uint16) *Event {
	return &Event{object: object, opcode: opcode}
}

func (e *Event) PutUint(v uint32) *Event {
	e.args = byteOrder.AppendUint32(e.args, v)
	return e
}

func (e *Event) PutInt(v int32) *Event {
	return e.PutUint(uint32(v))
}

func (e *Event) PutString(s string) *Event {
	e.PutUint(uint32(len(s) + 1))
	e.args = append(e.args, s...)
	e.args = append(e.args, make([]byte, pad(len(s)+1)-len(s))...)
	return e
}

// PutFD attaches fd; it travels next to the message, not inside it.
func (e *Event) PutFD(fd int) *Event {
	e.fds = append(e.fds, fd)
	return e
}

func (e *Event) bytes() []byte {
	size := headerSize + len(e.args)
	out := make([]byte, 0, size)
	out = byteOrder.AppendUint32(out, e.object)
	out = byteOrder.AppendUint32(out, uint32(size)<<16|uint32(e.opcode))
	return append(out, e.args...)
}

func splitRequest(in []byte) (*Request, int, error) {
	if len(in) < headerSize {
		return nil, 0, nil
	}

	word := byteOrder.Uint32(in[4:])
	size := int(word >> 16)
	if size < headerSize || size%4 != 0 {
		return nil, 0, errors.New("bad request size")
	}
	if len(in) < size {
		return nil, 0, nil
	}

	return &Request{
		Object: byteOrder.Uint32(in),
		Opcode: uint16(word),
		args:   append([]byte(nil), in[headerSize:size]...),
	}, size, nil
}

func pad(n int) int {
	return (n + 3) &^ 3
}
