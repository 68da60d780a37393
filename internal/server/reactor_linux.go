//go:build linux

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Mattia055/Hotelier2.0/internal/frame"
	"github.com/Mattia055/Hotelier2.0/internal/guard"
	"github.com/Mattia055/Hotelier2.0/internal/metrics"
	"github.com/Mattia055/Hotelier2.0/internal/protocol"
	"github.com/Mattia055/Hotelier2.0/internal/store"
)

// ReactorConfig carries the event loop's tunables.
type ReactorConfig struct {
	Addr           string
	MaxConnections int
	MaxMessageSize int
	PoolThreshold  int
	PoolCapacity   int
	AcceptRate     float64
	AcceptBurst    int
}

// Reactor is the single-threaded event loop: it owns the listening socket,
// the epoll set and every client connection. Readiness events for client
// sockets are turned into worker pool tasks; while a task is in flight the
// connection's read side is disarmed, so at most one request per connection
// is processed at a time.
type Reactor struct {
	cfg        ReactorConfig
	store      *store.Store
	dispatcher *Dispatcher
	pool       *WorkerPool
	cpuGuard   *guard.CPUGuard
	limiter    *rate.Limiter
	log        zerolog.Logger

	epfd     int
	listenFd int
	wakeR    int
	wakeW    int

	bufPool *frame.BufferPool

	mu    sync.Mutex
	conns map[int]*Conn

	closeOnce sync.Once
}

// NewReactor opens the listening socket and the epoll set.
func NewReactor(cfg ReactorConfig, st *store.Store, dispatcher *Dispatcher, pool *WorkerPool, cpuGuard *guard.CPUGuard, log zerolog.Logger) (*Reactor, error) {
	listenFd, err := listenTCP(cfg.Addr)
	if err != nil {
		return nil, err
	}

	epfd, err := syscall.EpollCreate1(syscall.EPOLL_CLOEXEC)
	if err != nil {
		syscall.Close(listenFd)
		return nil, fmt.Errorf("server: epoll_create1: %w", err)
	}

	var pipeFds [2]int
	if err := syscall.Pipe2(pipeFds[:], syscall.O_NONBLOCK|syscall.O_CLOEXEC); err != nil {
		syscall.Close(listenFd)
		syscall.Close(epfd)
		return nil, fmt.Errorf("server: pipe2: %w", err)
	}

	r := &Reactor{
		cfg:        cfg,
		store:      st,
		dispatcher: dispatcher,
		pool:       pool,
		cpuGuard:   cpuGuard,
		limiter:    rate.NewLimiter(rate.Limit(cfg.AcceptRate), cfg.AcceptBurst),
		log:        log.With().Str("component", "reactor").Logger(),
		epfd:       epfd,
		listenFd:   listenFd,
		wakeR:      pipeFds[0],
		wakeW:      pipeFds[1],
		bufPool:    frame.NewBufferPool(cfg.PoolThreshold, cfg.PoolCapacity),
		conns:      make(map[int]*Conn),
	}

	if err := r.arm(syscall.EPOLL_CTL_ADD, listenFd, syscall.EPOLLIN); err != nil {
		r.closeFds()
		return nil, err
	}
	if err := r.arm(syscall.EPOLL_CTL_ADD, r.wakeR, syscall.EPOLLIN); err != nil {
		r.closeFds()
		return nil, err
	}
	return r, nil
}

func listenTCP(addr string) (int, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return 0, fmt.Errorf("server: resolving %q: %w", addr, err)
	}

	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM|syscall.SOCK_NONBLOCK|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, fmt.Errorf("server: socket: %w", err)
	}
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		syscall.Close(fd)
		return 0, fmt.Errorf("server: SO_REUSEADDR: %w", err)
	}

	sa := &syscall.SockaddrInet4{Port: tcpAddr.Port}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := syscall.Bind(fd, sa); err != nil {
		syscall.Close(fd)
		return 0, fmt.Errorf("server: binding %s: %w", addr, err)
	}
	if err := syscall.Listen(fd, 511); err != nil {
		syscall.Close(fd)
		return 0, fmt.Errorf("server: listen: %w", err)
	}
	return fd, nil
}

func (r *Reactor) arm(op, fd int, events uint32) error {
	ev := syscall.EpollEvent{Events: events, Fd: int32(fd)}
	if err := syscall.EpollCtl(r.epfd, op, fd, &ev); err != nil {
		return fmt.Errorf("server: epoll_ctl fd %d: %w", fd, err)
	}
	return nil
}

// Run drives the event loop until Close is called. It must run on its own
// goroutine.
func (r *Reactor) Run() {
	r.log.Info().Str("addr", r.cfg.Addr).Msg("accepting connections")

	events := make([]syscall.EpollEvent, 128)
	for {
		n, err := syscall.EpollWait(r.epfd, events, -1)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			r.log.Error().Err(err).Msg("epoll_wait failed, stopping loop")
			return
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)
			switch fd {
			case r.listenFd:
				r.acceptReady()
			case r.wakeR:
				r.shutdownConns()
				return
			default:
				r.connReady(fd, ev.Events)
			}
		}
	}
}

// acceptReady drains the accept backlog, applying admission control per
// connection: accept rate, CPU headroom, then the connection cap.
func (r *Reactor) acceptReady() {
	for {
		nfd, sa, err := syscall.Accept4(r.listenFd, syscall.SOCK_NONBLOCK|syscall.SOCK_CLOEXEC)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
				return
			}
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			r.log.Error().Err(err).Msg("accept failed")
			return
		}

		if !r.limiter.Allow() {
			metrics.ConnectionRejected(metrics.RejectReasonRateLimit)
			syscall.Close(nfd)
			continue
		}
		if !r.cpuGuard.Allow() {
			metrics.ConnectionRejected(metrics.RejectReasonCPU)
			r.log.Warn().Float64("cpu_percent", r.cpuGuard.Usage()).Msg("connection rejected, cpu saturated")
			syscall.Close(nfd)
			continue
		}

		r.mu.Lock()
		if len(r.conns) >= r.cfg.MaxConnections {
			r.mu.Unlock()
			metrics.ConnectionRejected(metrics.RejectReasonCapacity)
			syscall.Close(nfd)
			continue
		}
		c := newConn(nfd, sockaddrString(sa), r.cfg.MaxMessageSize, r.bufPool)
		r.conns[nfd] = c
		r.mu.Unlock()

		// Latency matters more than throughput for short request frames.
		_ = syscall.SetsockoptInt(nfd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)

		if err := r.arm(syscall.EPOLL_CTL_ADD, nfd, syscall.EPOLLIN|syscall.EPOLLRDHUP); err != nil {
			r.log.Error().Err(err).Msg("registering connection failed")
			r.drop(c)
			continue
		}
		metrics.ConnectionOpened()
		r.log.Debug().Str("remote", c.remote).Int("fd", nfd).Msg("connection accepted")
	}
}

func sockaddrString(sa syscall.Sockaddr) string {
	switch a := sa.(type) {
	case *syscall.SockaddrInet4:
		return fmt.Sprintf("%s:%d", net.IP(a.Addr[:]), a.Port)
	case *syscall.SockaddrInet6:
		return fmt.Sprintf("[%s]:%d", net.IP(a.Addr[:]), a.Port)
	default:
		return "unknown"
	}
}

func (r *Reactor) connReady(fd int, events uint32) {
	r.mu.Lock()
	c, ok := r.conns[fd]
	r.mu.Unlock()
	if !ok {
		return
	}

	if events&(syscall.EPOLLHUP|syscall.EPOLLERR|syscall.EPOLLRDHUP) != 0 {
		r.drop(c)
		return
	}
	if events&syscall.EPOLLOUT != 0 {
		r.writeReady(c)
		return
	}
	if events&syscall.EPOLLIN != 0 {
		r.readReady(c)
	}
}

// readReady pulls bytes until a frame completes or the socket drains. On a
// complete frame the read side is disarmed and the request goes to the
// worker pool; the loop will not see this connection again until the
// worker re-arms it.
func (r *Reactor) readReady(c *Conn) {
	msg, ok, err := c.dec.Next(c.raw)
	if err != nil {
		if errors.Is(err, frame.ErrTooLarge) {
			metrics.FramingError()
			r.log.Warn().Str("remote", c.remote).Err(err).Msg("oversized frame, dropping connection")
		} else if !errors.Is(err, io.EOF) {
			r.log.Debug().Str("remote", c.remote).Err(err).Msg("read failed")
		}
		r.drop(c)
		return
	}
	if !ok {
		return
	}

	if err := r.arm(syscall.EPOLL_CTL_MOD, c.fd, syscall.EPOLLRDHUP); err != nil {
		r.drop(c)
		return
	}
	if !r.pool.Submit(func() { r.process(c, msg) }) {
		// The pool is saturated; shedding the connection is cheaper than
		// queueing unbounded work.
		r.log.Warn().Str("remote", c.remote).Msg("worker pool full, dropping connection")
		r.drop(c)
	}
}

// process runs on a worker goroutine: decode, dispatch, encode, and either
// finish the write inline or hand the drained socket back to the loop.
func (r *Reactor) process(c *Conn, msg []byte) {
	var req protocol.Request
	err := json.Unmarshal(msg, &req)
	c.dec.Reclaim()
	if err != nil {
		// A client speaking broken JSON cannot be resynchronized.
		metrics.FramingError()
		r.log.Warn().Str("remote", c.remote).Err(err).Msg("malformed request, dropping connection")
		r.drop(c)
		return
	}

	resp := r.dispatcher.Handle(req, &c.sess)
	out, err := json.Marshal(resp)
	if err != nil {
		r.log.Error().Err(err).Msg("response marshal failed")
		r.drop(c)
		return
	}

	c.enc.Load(out)
	r.writeReady(c)
}

// writeReady drains the staged response. When it completes the read side
// is re-armed for the next request; when the socket blocks the loop waits
// for EPOLLOUT.
func (r *Reactor) writeReady(c *Conn) {
	done, err := c.enc.Flush(c.raw)
	if err != nil {
		r.log.Debug().Str("remote", c.remote).Err(err).Msg("write failed")
		r.drop(c)
		return
	}
	if done {
		if err := r.arm(syscall.EPOLL_CTL_MOD, c.fd, syscall.EPOLLIN|syscall.EPOLLRDHUP); err != nil {
			r.drop(c)
		}
		return
	}
	if err := r.arm(syscall.EPOLL_CTL_MOD, c.fd, syscall.EPOLLOUT|syscall.EPOLLRDHUP); err != nil {
		r.drop(c)
	}
}

// drop closes the connection and clears its server-side footprint: the
// epoll registration, the connection table entry and, crucially, the
// logged-in mark, so the account is not locked out until EXT_LOGOUT.
func (r *Reactor) drop(c *Conn) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	_ = syscall.EpollCtl(r.epfd, syscall.EPOLL_CTL_DEL, c.fd, nil)
	syscall.Close(c.fd)

	r.mu.Lock()
	delete(r.conns, c.fd)
	r.mu.Unlock()

	if c.sess.Username != "" {
		r.store.Logout(c.sess.Username)
	}
	c.sess.Reset()
	metrics.ConnectionClosed()
	r.log.Debug().Str("remote", c.remote).Int("fd", c.fd).Msg("connection closed")
}

func (r *Reactor) shutdownConns() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		r.drop(c)
	}
	r.closeFds()
	r.log.Info().Msg("event loop stopped")
}

// Close wakes the loop and makes it tear everything down. Safe to call
// more than once.
func (r *Reactor) Close() {
	r.closeOnce.Do(func() {
		var b [1]byte
		_, _ = syscall.Write(r.wakeW, b[:])
	})
}

func (r *Reactor) closeFds() {
	syscall.Close(r.listenFd)
	syscall.Close(r.wakeR)
	syscall.Close(r.wakeW)
	syscall.Close(r.epfd)
}

// ConnCount reports the number of open connections.
func (r *Reactor) ConnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
