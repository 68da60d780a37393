// Package frame reads and writes length-prefixed messages over a
// non-blocking socket: a 4-byte big-endian length followed by exactly that
// many bytes of UTF-8 JSON payload.
//
// Both directions are resumable. The decoder and encoder track how many
// bytes of the prefix and of the payload have been transferred so far, so a
// partial read or write simply picks up at the next readiness event without
// touching bytes already consumed. A would-block condition from the
// underlying descriptor is reported as "not done yet", never as an error.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"syscall"
)

const prefixLen = 4

// ErrTooLarge reports a frame whose declared length exceeds the configured
// maximum. It is fatal for the connection.
var ErrTooLarge = errors.New("frame: declared length exceeds maximum message size")

func wouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

// Decoder accumulates one inbound frame across any number of partial reads.
type Decoder struct {
	maxSize int
	pool    *BufferPool

	prefix   [prefixLen]byte
	prefixN  int
	payload  []byte
	payloadN int
	pending  []byte
}

// NewDecoder builds a decoder rejecting frames larger than maxSize bytes.
func NewDecoder(maxSize int, pool *BufferPool) *Decoder {
	return &Decoder{maxSize: maxSize, pool: pool}
}

// Next consumes whatever bytes r currently has and reports whether a full
// message is buffered. On completion it returns the payload, which stays
// valid until Reclaim is called; the decoder is then ready for the next
// frame. A would-block read returns (nil, false, nil).
func (d *Decoder) Next(r io.Reader) ([]byte, bool, error) {
	for d.prefixN < prefixLen {
		n, err := r.Read(d.prefix[d.prefixN:])
		d.prefixN += n
		if err != nil {
			if wouldBlock(err) {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("frame: reading length prefix: %w", err)
		}
		if n == 0 {
			return nil, false, nil
		}
	}

	if d.payload == nil {
		length := int(binary.BigEndian.Uint32(d.prefix[:]))
		if length > d.maxSize {
			return nil, false, fmt.Errorf("%w: %d > %d", ErrTooLarge, length, d.maxSize)
		}
		d.payload = d.pool.Get(length)[:length]
		d.payloadN = 0
	}

	for d.payloadN < len(d.payload) {
		n, err := r.Read(d.payload[d.payloadN:])
		d.payloadN += n
		if err != nil {
			if wouldBlock(err) {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("frame: reading payload: %w", err)
		}
		if n == 0 {
			return nil, false, nil
		}
	}

	msg := d.payload
	d.pending = msg
	d.payload = nil
	d.payloadN = 0
	d.prefixN = 0
	return msg, true, nil
}

// Reclaim returns the last completed payload's buffer to the pool. Safe to
// call when nothing is pending.
func (d *Decoder) Reclaim() {
	if d.pending != nil {
		d.pool.Put(d.pending)
		d.pending = nil
	}
}

// Encoder drains one outbound frame across any number of partial writes.
type Encoder struct {
	pool *BufferPool

	prefix   [prefixLen]byte
	prefixN  int
	payload  []byte
	payloadN int
	active   bool
}

// NewEncoder builds an encoder drawing payload buffers from pool.
func NewEncoder(pool *BufferPool) *Encoder {
	return &Encoder{pool: pool}
}

// Load stages msg as the next outbound frame. The bytes are copied into a
// pooled buffer, so the caller may reuse msg immediately. Loading while a
// previous frame is still draining is a programming error.
func (e *Encoder) Load(msg []byte) {
	if e.active {
		panic("frame: Load called while a frame is still being written")
	}
	binary.BigEndian.PutUint32(e.prefix[:], uint32(len(msg)))
	e.payload = append(e.pool.Get(len(msg)), msg...)
	e.prefixN = 0
	e.payloadN = 0
	e.active = true
}

// Active reports whether a frame is staged and not yet fully written.
func (e *Encoder) Active() bool { return e.active }

// Flush writes as much of the staged frame as w accepts and reports whether
// it has been sent completely. A would-block write returns (false, nil).
func (e *Encoder) Flush(w io.Writer) (bool, error) {
	if !e.active {
		return true, nil
	}

	for e.prefixN < prefixLen {
		n, err := w.Write(e.prefix[e.prefixN:])
		e.prefixN += n
		if err != nil {
			if wouldBlock(err) {
				return false, nil
			}
			return false, fmt.Errorf("frame: writing length prefix: %w", err)
		}
		if n == 0 {
			return false, nil
		}
	}

	for e.payloadN < len(e.payload) {
		n, err := w.Write(e.payload[e.payloadN:])
		e.payloadN += n
		if err != nil {
			if wouldBlock(err) {
				return false, nil
			}
			return false, fmt.Errorf("frame: writing payload: %w", err)
		}
		if n == 0 {
			return false, nil
		}
	}

	e.pool.Put(e.payload)
	e.payload = nil
	e.active = false
	return true, nil
}
