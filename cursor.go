package shapefile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// cursor reads fixed-width values from an in-memory buffer. Every read takes
// its byte order explicitly because shapefiles mix big-endian record headers
// with little-endian payloads.
//
// A read past the end of the buffer records a sticky error; subsequent reads
// return zero values until the error is inspected with err.
type cursor struct {
	name string // file name used in error messages
	buf  []byte
	off  int
	fail error
}

func newCursor(name string, buf []byte) *cursor {
	return &cursor{name: name, buf: buf}
}

func (c *cursor) size() int { return len(c.buf) }

func (c *cursor) tell() int { return c.off }

func (c *cursor) err() error { return c.fail }

// reset clears a previous failure, used before decoding an unrelated record.
func (c *cursor) reset() { c.fail = nil }

// seek moves the cursor to an absolute offset.
func (c *cursor) seek(off int) error {
	if off < 0 || off > len(c.buf) {
		c.fail = fmt.Errorf("%w: %s seek to %d, size %d", ErrOutOfBounds, c.name, off, len(c.buf))
		return c.fail
	}
	c.off = off
	return nil
}

// take returns the next n bytes and advances past them.
func (c *cursor) take(n int) []byte {
	if c.fail != nil {
		return nil
	}
	if n < 0 || c.off+n > len(c.buf) {
		c.fail = fmt.Errorf("%w: %s read of %d bytes at %d, size %d", ErrOutOfBounds, c.name, n, c.off, len(c.buf))
		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) int16(order binary.ByteOrder) int16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return int16(order.Uint16(b))
}

func (c *cursor) int32(order binary.ByteOrder) int32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return int32(order.Uint32(b))
}

func (c *cursor) float64(order binary.ByteOrder) float64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(order.Uint64(b))
}

func (c *cursor) int32s(n int, order binary.ByteOrder) []int32 {
	b := c.take(n * 4)
	if b == nil {
		return nil
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(order.Uint32(b[i*4:]))
	}
	return out
}

func (c *cursor) float64s(n int, order binary.ByteOrder) []float64 {
	b := c.take(n * 8)
	if b == nil {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(order.Uint64(b[i*8:]))
	}
	return out
}

// skip advances n bytes without decoding them.
func (c *cursor) skip(n int) {
	c.take(n)
}

// peekByte returns the byte at the cursor without advancing.
func (c *cursor) peekByte() byte {
	if c.fail != nil {
		return 0
	}
	if c.off >= len(c.buf) {
		c.fail = fmt.Errorf("%w: %s peek at %d, size %d", ErrOutOfBounds, c.name, c.off, len(c.buf))
		return 0
	}
	return c.buf[c.off]
}

func (c *cursor) byte() byte {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}
