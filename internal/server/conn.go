package server

import (
	"io"
	"sync/atomic"
	"syscall"

	"github.com/Mattia055/Hotelier2.0/internal/frame"
	"github.com/Mattia055/Hotelier2.0/internal/session"
)

// rawConn adapts a non-blocking socket descriptor to the io.Reader and
// io.Writer the frame codecs consume. A zero-byte read is the peer closing.
type rawConn struct {
	fd int
}

func (c rawConn) Read(p []byte) (int, error) {
	n, err := syscall.Read(c.fd, p)
	if n < 0 {
		n = 0
	}
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func (c rawConn) Write(p []byte) (int, error) {
	n, err := syscall.Write(c.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Conn is one client connection owned by the reactor. The session and the
// codecs are touched by exactly one goroutine at a time: the event loop
// hands the connection to a worker and does not read it again until the
// worker re-arms it.
type Conn struct {
	fd     int
	raw    rawConn
	remote string

	sess session.Session
	dec  *frame.Decoder
	enc  *frame.Encoder

	closed atomic.Bool
}

func newConn(fd int, remote string, maxMessageSize int, pool *frame.BufferPool) *Conn {
	return &Conn{
		fd:     fd,
		raw:    rawConn{fd: fd},
		remote: remote,
		dec:    frame.NewDecoder(maxMessageSize, pool),
		enc:    frame.NewEncoder(pool),
	}
}
