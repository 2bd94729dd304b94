package rawloop

import (
	"bytes"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/searchktools/meridian/logctx"
	"github.com/searchktools/meridian/poller"
	"github.com/searchktools/meridian/pools"
)

const (
	stateReading = iota
	stateProcessing
	stateWriting
)

type connection struct {
	fd         int
	state      int
	readBuf    *[]byte
	readOffset int
	req        *rawRequest
	lastActive time.Time
}

// Config configures a Listener.
type Config struct {
	Addr string

	// Handler receives every parsed request as an ordinary
	// http.Handler call; *server.Server satisfies this.
	Handler http.Handler

	Workers     int
	IdleTimeout time.Duration
	Log         logctx.Logger
}

// Listener is an epoll/kqueue-driven HTTP/1.1 cleartext listener. It
// bypasses net/http's per-connection goroutine model: one goroutine
// polls every connection for readiness, and handler dispatch runs on
// a work-stealing pool so a slow handler never stalls the poll loop.
//
// Grounded on the teacher's core/engine.go. TLS and HTTP/2 are out of
// scope here; use server.Server's ListenAndServe for those.
type Listener struct {
	cfg Config
	log logctx.Logger

	poller  poller.Poller
	bufPool *pools.BufferPool
	workers *pools.WorkerPool

	connMu      sync.RWMutex
	connections map[int]*connection

	closed atomic.Bool
}

// New creates a Listener from cfg. A nil cfg.Handler is a caller bug.
func New(cfg Config) *Listener {
	if cfg.Handler == nil {
		panic("rawloop: Config.Handler must not be nil")
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = logctx.Noop{}
	}

	return &Listener{
		cfg:         cfg,
		log:         cfg.Log,
		bufPool:     pools.NewBufferPool(),
		workers:     pools.NewWorkerPool(cfg.Workers),
		connections: make(map[int]*connection, 1024),
	}
}

// ListenAndServe binds cfg.Addr and runs the poll loop until Close.
func (l *Listener) ListenAndServe() error {
	laddr, err := net.ResolveTCPAddr("tcp", l.cfg.Addr)
	if err != nil {
		return err
	}
	ln, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	lnFile, err := ln.File()
	if err != nil {
		return err
	}
	lfd := int(lnFile.Fd())
	if err := syscall.SetNonblock(lfd, true); err != nil {
		return err
	}

	l.poller, err = poller.NewPoller()
	if err != nil {
		return err
	}
	defer l.poller.Close()
	if err := l.poller.Add(lfd); err != nil {
		return err
	}

	l.log.Infof("rawloop listening on %s", l.cfg.Addr)
	go l.cleanupIdleConnections()

	for !l.closed.Load() {
		fds, err := l.poller.Wait(100)
		if err != nil {
			l.log.Warnf("rawloop: poller wait error: %v", err)
			continue
		}
		for _, fd := range fds {
			if fd == lfd {
				l.acceptConnections(lfd)
			} else {
				l.handleConnectionEvent(fd)
			}
		}
	}
	return nil
}

// Close stops the poll loop and releases the worker pool. In-flight
// connections are not drained; callers wanting a graceful stop should
// prefer server.Server.Shutdown on the net/http path instead.
func (l *Listener) Close() error {
	l.closed.Store(true)
	l.workers.Close()
	return nil
}

func (l *Listener) acceptConnections(lfd int) {
	for {
		nfd, _, err := syscall.Accept(lfd)
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				return
			}
			l.log.Warnf("rawloop: accept error: %v", err)
			return
		}

		if err := syscall.SetNonblock(nfd, true); err != nil {
			syscall.Close(nfd)
			continue
		}
		syscall.SetsockoptInt(nfd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1)
		syscall.SetsockoptInt(nfd, syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)

		buf := l.bufPool.Get(pools.MediumBufferSize)
		*buf = (*buf)[:cap(*buf)]
		conn := &connection{
			fd:         nfd,
			state:      stateReading,
			readBuf:    buf,
			lastActive: time.Now(),
		}

		if err := l.poller.Add(nfd); err != nil {
			l.bufPool.Put(conn.readBuf)
			syscall.Close(nfd)
			continue
		}

		l.connMu.Lock()
		l.connections[nfd] = conn
		l.connMu.Unlock()
	}
}

func (l *Listener) handleConnectionEvent(fd int) {
	l.connMu.RLock()
	conn, ok := l.connections[fd]
	l.connMu.RUnlock()
	if !ok {
		return
	}

	conn.lastActive = time.Now()
	if conn.state == stateReading {
		l.handleRead(conn)
	}
}

func (l *Listener) handleRead(conn *connection) {
	buf := *conn.readBuf
	if conn.readOffset >= len(buf) {
		grown := make([]byte, len(buf)*2)
		copy(grown, buf)
		buf = grown
		*conn.readBuf = buf
	}

	n, err := syscall.Read(conn.fd, buf[conn.readOffset:])
	if err != nil {
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			return
		}
		l.closeConnection(conn.fd)
		return
	}
	if n == 0 {
		l.closeConnection(conn.fd)
		return
	}
	conn.readOffset += n

	req, err := parseRequest(buf[:conn.readOffset])
	if err == ErrIncomplete {
		return
	}
	if err != nil {
		l.writeRaw(conn.fd, []byte("HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\n\r\n"))
		l.closeConnection(conn.fd)
		return
	}

	conn.req = req
	conn.state = stateProcessing
	conn.readOffset = 0

	l.workers.Submit(func() { l.processRequest(conn) })
}

func (l *Listener) processRequest(conn *connection) {
	httpReq, err := toHTTPRequest(conn.req)
	if err != nil {
		l.writeRaw(conn.fd, []byte("HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\n\r\n"))
		l.closeConnection(conn.fd)
		return
	}

	rw := newRawResponseWriter(l.bufPool)
	l.cfg.Handler.ServeHTTP(rw, httpReq)
	l.writeRaw(conn.fd, rw.frame())
	rw.release()

	keepAlive := conn.req.Proto != "HTTP/1.0" && conn.req.Connection != "close"
	releaseRawRequest(conn.req)
	conn.req = nil

	if !keepAlive {
		l.closeConnection(conn.fd)
		return
	}
	conn.state = stateReading
	conn.lastActive = time.Now()
}

func (l *Listener) writeRaw(fd int, data []byte) {
	for len(data) > 0 {
		n, err := syscall.Write(fd, data)
		if err != nil {
			return
		}
		data = data[n:]
	}
}

func (l *Listener) closeConnection(fd int) {
	l.connMu.Lock()
	conn, ok := l.connections[fd]
	if ok {
		delete(l.connections, fd)
	}
	l.connMu.Unlock()
	if !ok {
		return
	}

	l.poller.Remove(fd)
	if conn.req != nil {
		releaseRawRequest(conn.req)
	}
	if conn.readBuf != nil {
		l.bufPool.Put(conn.readBuf)
	}
	syscall.Close(fd)
}

func (l *Listener) cleanupIdleConnections() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if l.closed.Load() {
			return
		}
		now := time.Now()
		var stale []int

		l.connMu.RLock()
		for fd, conn := range l.connections {
			if conn.state != stateProcessing && now.Sub(conn.lastActive) > l.cfg.IdleTimeout {
				stale = append(stale, fd)
			}
		}
		l.connMu.RUnlock()

		for _, fd := range stale {
			l.closeConnection(fd)
		}
	}
}

func toHTTPRequest(req *rawRequest) (*http.Request, error) {
	httpReq, err := http.NewRequest(req.Method, req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	if req.Host != "" {
		httpReq.Host = req.Host
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if req.ContentLength != "" {
		httpReq.Header.Set("Content-Length", req.ContentLength)
		if n, err := strconv.ParseInt(req.ContentLength, 10, 64); err == nil {
			httpReq.ContentLength = n
		}
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	if req.Connection != "" {
		httpReq.Header.Set("Connection", req.Connection)
	}
	for k, v := range req.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}
	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}
	return httpReq, nil
}
