// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package adapter

import (
	"bufio"
	"container/list"
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var errClosed = errors.New("adapter is closed")

// A poolKey identifies the connections which may be shared. Besides
// the origin it holds the proxy and TLS policy, since connections made
// under different ones are not interchangeable.
type poolKey struct {
	scheme string
	addr   string
	proxy  string
	verify Verify
	cert   Cert
}

func (k poolKey) String() string {
	s := k.scheme + "://" + k.addr
	if k.proxy != "" {
		s += " via " + k.proxy
	}
	return s
}

// A conn is a connection owned by a connPool.
type conn struct {
	net.Conn
	br     *bufio.Reader
	pool   *connPool
	slot   bool
	idleAt time.Time
	// insecure is true if the connection is TLS and the server's
	// certificate was not verified.
	insecure bool
	// absolute is true if requests on the connection are written in
	// absolute form to an HTTP proxy.
	absolute bool
	// proxyAuth is the Proxy-Authorization derived from the proxy URL
	// of an absolute connection.
	proxyAuth string
}

func newConn(nc net.Conn, p *connPool) *conn {
	return &conn{Conn: nc, br: bufio.NewReader(nc), pool: p}
}

// alive reports whether an idle connection still looks usable: the
// server has neither closed it nor sent unsolicited bytes.
func (c *conn) alive() bool {
	if c.br.Buffered() > 0 {
		return false
	}
	_ = c.SetReadDeadline(time.Now())
	_, err := c.br.Peek(1)
	_ = c.SetReadDeadline(time.Time{})
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// A connPool holds the connections of one poolKey.
//
// At most maxSize connections are kept idle. When the pool blocks, at
// most maxSize connections may be in use at once and acquire waits for
// a free slot. Otherwise extra connections are opened as needed, and
// the least recently used idle connection is discarded when one too
// many is returned.
type connPool struct {
	key     poolKey
	maxSize int
	sem     *semaphore.Weighted
	logger  zerolog.Logger

	mu     sync.Mutex
	idle   []*conn // least recently used first
	closed bool
}

// newConnPool returns a pool for key. A blocking pool takes its slots
// from sem, or from a new semaphore if sem is nil.
func newConnPool(key poolKey, maxSize int, block bool, sem *semaphore.Weighted, logger zerolog.Logger) *connPool {
	if maxSize < 1 {
		maxSize = 1
	}
	p := &connPool{key: key, maxSize: maxSize, logger: logger}
	if block {
		if sem == nil {
			sem = semaphore.NewWeighted(int64(maxSize))
		}
		p.sem = sem
	}
	return p
}

// acquire returns an idle connection, or nil if the caller must open a
// new one. Idle connections are skipped unless reuse is true. If the
// pool blocks, acquire first waits for a slot, which the caller must
// give back through release or abandon.
func (p *connPool) acquire(ctx context.Context, reuse bool) (c *conn, slot bool, err error) {
	if p.sem != nil {
		if err = p.sem.Acquire(ctx, 1); err != nil {
			return nil, false, err
		}
		slot = true
	}
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.abandon(slot)
			return nil, false, errClosed
		}
		n := len(p.idle)
		if n == 0 || !reuse {
			p.mu.Unlock()
			return nil, slot, nil
		}
		c = p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		p.mu.Unlock()

		if c.alive() {
			c.slot = slot
			return c, slot, nil
		}
		p.logger.Debug().Str("pool", p.key.String()).Msg("Discarding stale idle connection")
		_ = c.Close()
	}
}

// abandon gives back a slot obtained from acquire when no connection
// was opened.
func (p *connPool) abandon(slot bool) {
	if slot {
		p.sem.Release(1)
	}
}

// release returns c to the pool, or closes it if keep is false or the
// pool is closed.
func (p *connPool) release(c *conn, keep bool) {
	slot := c.slot
	c.slot = false

	var evicted *conn
	p.mu.Lock()
	if keep && !p.closed {
		c.idleAt = time.Now()
		p.idle = append(p.idle, c)
		if len(p.idle) > p.maxSize {
			evicted = p.idle[0]
			p.idle[0] = nil
			p.idle = p.idle[1:]
		}
	} else {
		evicted = c
	}
	p.mu.Unlock()

	if evicted != nil {
		if evicted != c {
			p.logger.Warn().
				Str("pool", p.key.String()).
				Int("maxsize", p.maxSize).
				Msg("Connection pool is full, discarding connection")
		}
		_ = evicted.Close()
	}
	p.abandon(slot)
}

// idleCount returns the number of idle connections.
func (p *connPool) idleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// close closes the idle connections. Connections in use are closed
// when they are released.
func (p *connPool) close() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	var first error
	for _, c := range idle {
		if err := c.Close(); err != nil && first == nil && !errors.Is(err, net.ErrClosed) {
			first = err
		}
	}
	return first
}

// A poolManager caches at most maxPools connection pools, evicting the
// least recently used one when a new pool would exceed the limit.
//
// An evicted blocking pool may still have connections checked out. Its
// semaphore is kept in held until they all come back, and a new pool
// for the same key shares it, so the key never has more than maxSize
// connections in use.
type poolManager struct {
	maxPools int
	maxSize  int
	block    bool
	logger   zerolog.Logger

	mu     sync.Mutex
	pools  map[poolKey]*list.Element
	lru    *list.List // of *connPool, most recently used first
	held   map[poolKey]*semaphore.Weighted
	closed bool
}

func newPoolManager(maxPools, maxSize int, block bool, logger zerolog.Logger) *poolManager {
	if maxPools < 1 {
		maxPools = 1
	}
	return &poolManager{
		maxPools: maxPools,
		maxSize:  maxSize,
		block:    block,
		logger:   logger,
		pools:    make(map[poolKey]*list.Element),
		lru:      list.New(),
		held:     make(map[poolKey]*semaphore.Weighted),
	}
}

func (m *poolManager) get(key poolKey) (*connPool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errClosed
	}
	if el, ok := m.pools[key]; ok {
		m.lru.MoveToFront(el)
		p := el.Value.(*connPool)
		m.mu.Unlock()
		return p, nil
	}

	m.sweepLocked()
	p := newConnPool(key, m.maxSize, m.block, m.held[key], m.logger)
	delete(m.held, key)
	m.pools[key] = m.lru.PushFront(p)
	var evicted *connPool
	if m.lru.Len() > m.maxPools {
		el := m.lru.Back()
		evicted = m.lru.Remove(el).(*connPool)
		delete(m.pools, evicted.key)
		if evicted.sem != nil {
			m.held[evicted.key] = evicted.sem
		}
	}
	m.mu.Unlock()

	m.logger.Debug().Str("pool", key.String()).Msg("Starting new connection pool")
	if evicted != nil {
		m.logger.Debug().Str("pool", evicted.key.String()).Msg("Evicting connection pool")
		_ = evicted.close()
	}
	return p, nil
}

// sweepLocked forgets the held semaphores with no slot in use.
func (m *poolManager) sweepLocked() {
	n := int64(m.maxSize)
	if n < 1 {
		n = 1
	}
	for key, sem := range m.held {
		if sem.TryAcquire(n) {
			sem.Release(n)
			delete(m.held, key)
		}
	}
}

// len returns the number of cached pools.
func (m *poolManager) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// close closes every pool concurrently and refuses new pools.
func (m *poolManager) close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	pools := make([]*connPool, 0, m.lru.Len())
	for el := m.lru.Front(); el != nil; el = el.Next() {
		pools = append(pools, el.Value.(*connPool))
	}
	m.pools = nil
	m.held = nil
	m.lru.Init()
	m.mu.Unlock()

	var g errgroup.Group
	for _, p := range pools {
		g.Go(p.close)
	}
	return g.Wait()
}

// hostPort returns the host and port of u, supplying the scheme's
// default port if u has none.
func hostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "https":
			port = "443"
		case "socks5", "socks5h":
			port = "1080"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}
