// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package adapter

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gogama/requests/cookies"
	"github.com/gogama/requests/errs"
	"github.com/gogama/requests/request"
	"github.com/gogama/requests/retry"
	"github.com/gogama/requests/timeout"
	"github.com/gogama/requests/transient"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

// An Adapter sends prepared requests. A Session dispatches each request
// to the Adapter mounted at the longest matching URL prefix.
//
// Send sends one request and returns its response, making as many
// attempts as the adapter's retry policy allows. It does not follow
// redirects. A response with an error status is not an error.
//
// Close releases the adapter's resources. Sends after Close fail.
type Adapter interface {
	Send(p *request.Prepared, o SendOptions) (*request.Response, error)
	Close() error
}

// SendOptions are the per-send settings of an Adapter.
type SendOptions struct {
	// Stream, if true, leaves the response body unread so the caller
	// can read it incrementally. The caller must then close the
	// response, or read its body to the end, to release the
	// connection.
	Stream bool

	// Timeout gives the connect and read timeouts of each attempt. If
	// nil, timeout.DefaultPolicy is used, which never times out.
	Timeout timeout.Policy

	// Verify is the TLS verification policy.
	Verify Verify

	// Cert is the client certificate, if any.
	Cert Cert

	// Proxies is consulted when the prepared request has no proxy.
	Proxies Proxies
}

const (
	// DefaultPoolConnections is the default number of origin pools an
	// HTTPAdapter caches.
	DefaultPoolConnections = 10
	// DefaultPoolMaxSize is the default number of idle connections an
	// origin pool keeps.
	DefaultPoolMaxSize = 10
)

// An HTTPAdapter is a connection-pooling Adapter for HTTP/1.1 over TCP
// and TLS, with retry support. Create one with New.
//
// Connections are pooled per origin, proxy, and TLS policy. The
// adapter keeps at most DefaultPoolConnections pools (see
// WithPoolConnections), evicting the least recently used one, and each
// pool keeps at most DefaultPoolMaxSize idle connections (see
// WithPoolMaxSize and WithPoolBlock).
//
// By default no attempt is retried, except that a request which fails
// on a reused connection the server had already closed is resent once
// on a new connection when it is safe to do so. Use WithMaxRetries or
// WithRetryPolicy to retry more.
//
// HTTPAdapter is safe for concurrent use by multiple goroutines.
type HTTPAdapter struct {
	pools      *poolManager
	tls        tlsConfigs
	retry      retry.Policy
	maxRetries int
	statuses   []int
	limiter    *rate.Limiter
	dialer     proxy.ContextDialer
	logger     zerolog.Logger
	handlers   *HandlerGroup

	poolConnections int
	poolMaxSize     int
	poolBlock       bool
}

// An Option configures an HTTPAdapter.
type Option func(*HTTPAdapter)

// WithPoolConnections sets the number of origin pools to cache.
func WithPoolConnections(n int) Option {
	return func(a *HTTPAdapter) {
		a.poolConnections = n
	}
}

// WithPoolMaxSize sets the number of connections each pool keeps idle,
// and when the pool blocks, the number it allows in use.
func WithPoolMaxSize(n int) Option {
	return func(a *HTTPAdapter) {
		a.poolMaxSize = n
	}
}

// WithPoolBlock sets whether a send waits for a free connection when
// all of a pool's connections are in use. If false, the default, an
// extra connection is opened instead, and discarded when it is
// returned to a full pool.
func WithPoolBlock(block bool) Option {
	return func(a *HTTPAdapter) {
		a.poolBlock = block
	}
}

// WithMaxRetries makes the adapter retry up to n times after an error
// which is safe to retry: a connection failure before any byte was
// sent, or a connection failure or timeout of an idempotent request
// whose body can be sent again.
func WithMaxRetries(n int) Option {
	return func(a *HTTPAdapter) {
		a.retry = retry.MaxRetries(n)
		a.maxRetries = n
		a.statuses = nil
	}
}

// WithRetryStatuses is like WithMaxRetries but also retries idempotent
// requests whose response has one of the given status codes. If the
// final attempt still has one of them, Send fails with an error of
// kind errs.Retry.
func WithRetryStatuses(n int, statuses ...int) Option {
	return func(a *HTTPAdapter) {
		a.retry = retry.MaxRetries(n, statuses...)
		a.maxRetries = n
		a.statuses = slices.Clone(statuses)
	}
}

// WithRetryPolicy sets a custom retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	if p == nil {
		panic("requests/adapter: nil retry policy")
	}
	return func(a *HTTPAdapter) {
		a.retry = p
		a.maxRetries = 0
		a.statuses = nil
	}
}

// WithRateLimit limits attempts to rps per second, with bursts of up
// to burst attempts. A send waiting for its turn is bounded by the
// deadline of its request context.
func WithRateLimit(rps float64, burst int) Option {
	if rps <= 0 || burst < 1 {
		panic("requests/adapter: rate limit must be positive")
	}
	return func(a *HTTPAdapter) {
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithDialer sets the dialer which opens TCP connections, including
// connections to proxies.
func WithDialer(d proxy.ContextDialer) Option {
	if d == nil {
		panic("requests/adapter: nil dialer")
	}
	return func(a *HTTPAdapter) {
		a.dialer = d
	}
}

// WithLogger sets the logger. The default logger discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(a *HTTPAdapter) {
		a.logger = l
	}
}

// WithHandlers installs event handlers.
func WithHandlers(g *HandlerGroup) Option {
	return func(a *HTTPAdapter) {
		a.handlers = g
	}
}

// New returns an HTTPAdapter configured by opts.
func New(opts ...Option) *HTTPAdapter {
	a := &HTTPAdapter{
		retry:           retry.Never,
		dialer:          &net.Dialer{KeepAlive: 30 * time.Second},
		logger:          zerolog.Nop(),
		poolConnections: DefaultPoolConnections,
		poolMaxSize:     DefaultPoolMaxSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.pools = newPoolManager(a.poolConnections, a.poolMaxSize, a.poolBlock, a.logger)
	return a
}

// Send sends p and returns the response of the final attempt, as
// determined by the retry policy.
//
// Every error returned has type *errs.Error. Connection failures have
// kind errs.Connection or one of its children; timeouts have kind
// errs.ConnectTimeout, errs.ReadTimeout, or, when the deadline of p's
// context expires, errs.Timeout.
func (a *HTTPAdapter) Send(p *request.Prepared, o SendOptions) (*request.Response, error) {
	if p == nil {
		panic("requests/adapter: nil request")
	}
	tp := o.Timeout
	if tp == nil {
		tp = timeout.DefaultPolicy
	}
	ctx := p.Context()
	op, u := errs.Op(p.Method), p.URL.String()

	e := request.Execution{
		Prepared: p,
	}
	a.handlers.run(BeforeExecutionStart, &e)
	e.Start = time.Now()

RetryLoop:
	for {
		a.attempt(&e, &o, tp)
		if e.Timeout() {
			e.AttemptTimeouts++
			a.handlers.run(AfterAttemptTimeout, &e)
		}
		a.handlers.run(AfterAttempt, &e)
		if ctxErr := ctx.Err(); ctxErr != nil {
			if e.Err == nil {
				e.Err = contextErr(op, u, ctxErr)
			}
			if ctxErr == context.DeadlineExceeded {
				a.handlers.run(AfterExecutionTimeout, &e)
			}
			break
		} else if a.retry.Decide(&e) {
			wait := a.retry.Wait(&e)
			a.logger.Debug().
				Str("method", p.Method).
				Str("url", u).
				Int("attempt", e.Attempt).
				Int("status", e.StatusCode()).
				AnErr("error", e.Err).
				Stringer("transient", transient.Categorize(e.Err)).
				Dur("wait", wait).
				Msg("Retrying request")
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				discard(e.Response)
				e.Response = nil
				e.Err = contextErr(op, u, ctx.Err())
				if ctx.Err() == context.DeadlineExceeded {
					a.handlers.run(AfterExecutionTimeout, &e)
				}
				break RetryLoop
			}
			discard(e.Response)
			e.Response = nil
			e.Err = nil
			e.Sent = false
			e.Reused = false
			e.Attempt++
		} else {
			break
		}
	}

	e.End = time.Now()
	a.handlers.run(AfterExecutionEnd, &e)

	if e.Err != nil {
		discard(e.Response)
		return nil, e.Err
	}
	if a.exhausted(&e) {
		discard(e.Response)
		return nil, errs.New(errs.Retry, op, u,
			fmt.Errorf("too many %d error responses", e.StatusCode()))
	}
	return e.Response, nil
}

// exhausted reports whether retries on status codes were used up.
func (a *HTTPAdapter) exhausted(e *request.Execution) bool {
	return len(a.statuses) > 0 &&
		a.maxRetries > 0 &&
		e.Attempt >= a.maxRetries &&
		slices.Contains(a.statuses, e.StatusCode())
}

// Close closes the idle connections of every pool. Connections in use
// are closed when their response is released. Sends after Close fail
// with an error of kind errs.Connection.
func (a *HTTPAdapter) Close() error {
	return a.pools.close()
}

func discard(r *request.Response) {
	if r != nil {
		_ = r.Close()
	}
}

// attempt makes one attempt to send e.Prepared, setting e.Response or
// e.Err.
func (a *HTTPAdapter) attempt(e *request.Execution, o *SendOptions, tp timeout.Policy) {
	p := e.Prepared
	ctx := p.Context()
	op, u := errs.Op(p.Method), p.URL.String()
	t := tp.Timeout(e)
	start := time.Now()

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			if _, ok := ctx.Deadline(); ok {
				e.Err = errs.New(errs.Timeout, op, u, err)
			} else {
				e.Err = errs.New(errs.Request, op, u, err)
			}
			return
		}
	}

	proxyURL := p.Proxy
	if proxyURL == nil {
		var err error
		if proxyURL, err = o.Proxies.Select(p.URL); err != nil {
			e.Err = withOp(err, op, u)
			return
		}
	}

	https := strings.EqualFold(p.URL.Scheme, "https")
	if https && o.Verify.Insecure {
		a.logger.Warn().
			Str("url", u).
			Msg("Unverified HTTPS request: certificate verification is disabled")
	}

	key := poolKey{
		scheme: strings.ToLower(p.URL.Scheme),
		addr:   hostPort(p.URL),
		verify: o.Verify,
		cert:   o.Cert,
	}
	if proxyURL != nil {
		key.proxy = proxyURL.Redacted()
	}
	pool, err := a.pools.get(key)
	if err != nil {
		e.Err = errs.New(errs.Connection, op, u, err)
		return
	}

	for fresh := false; ; fresh = true {
		c, reused, err := a.connect(ctx, pool, p, proxyURL, o, t.Connect, fresh)
		if err != nil {
			e.Err = err
			return
		}
		e.Sent = false
		e.Reused = reused
		if !a.roundTrip(e, c, o, t, start) || fresh {
			return
		}
		a.logger.Debug().
			Str("method", p.Method).
			Str("url", u).
			AnErr("error", e.Err).
			Msg("Resending request on a new connection")
		e.Err = nil
	}
}

// connect obtains a connection from pool, reusing an idle one unless
// fresh is true. The connect timeout bounds waiting for a pool slot,
// dialling, the proxy handshake, and the TLS handshake.
func (a *HTTPAdapter) connect(ctx context.Context, pool *connPool, p *request.Prepared, proxyURL *url.URL, o *SendOptions, d time.Duration, fresh bool) (*conn, bool, error) {
	op, u := errs.Op(p.Method), p.URL.String()
	cctx := ctx
	if d > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	c, slot, err := pool.acquire(cctx, !fresh)
	if err != nil {
		if errors.Is(err, errClosed) {
			return nil, false, errs.New(errs.Connection, op, u, err)
		}
		return nil, false, connectErr(ctx, errs.Connection, op, u, err)
	}
	if c != nil {
		return c, true, nil
	}

	nc, insecure, err := a.dial(cctx, p, proxyURL, o)
	if err != nil {
		pool.abandon(slot)
		return nil, false, connectErrKind(ctx, err, op, u)
	}
	c = newConn(nc, pool)
	c.slot = slot
	c.insecure = insecure
	if proxyURL != nil && !isSOCKS(proxyURL) && !strings.EqualFold(p.URL.Scheme, "https") {
		c.absolute = true
		c.proxyAuth = proxyAuthorization(proxyURL)
	}
	return c, false, nil
}

// dialErr carries the kind of a failure to establish a connection.
type dialErr struct {
	kind *errs.Kind
	err  error
}

func (e *dialErr) Error() string { return e.err.Error() }
func (e *dialErr) Unwrap() error { return e.err }

func (a *HTTPAdapter) dial(ctx context.Context, p *request.Prepared, proxyURL *url.URL, o *SendOptions) (net.Conn, bool, error) {
	target := p.URL
	addr := hostPort(target)
	https := strings.EqualFold(target.Scheme, "https")

	var cfg *tls.Config
	if https || (proxyURL != nil && strings.EqualFold(proxyURL.Scheme, "https")) {
		var err error
		if cfg, err = a.tls.get(o.Verify, o.Cert); err != nil {
			return nil, false, &dialErr{errs.SSL, err}
		}
	}

	var (
		nc  net.Conn
		err error
	)
	switch {
	case proxyURL == nil:
		if nc, err = a.dialer.DialContext(ctx, "tcp", addr); err != nil {
			return nil, false, &dialErr{errs.Connection, err}
		}
	case isSOCKS(proxyURL):
		if nc, err = dialSOCKS(ctx, a.dialer, proxyURL, addr); err != nil {
			return nil, false, &dialErr{errs.Proxy, err}
		}
	default:
		if nc, err = a.dialer.DialContext(ctx, "tcp", hostPort(proxyURL)); err != nil {
			return nil, false, &dialErr{errs.Proxy, err}
		}
		if strings.EqualFold(proxyURL.Scheme, "https") {
			if nc, err = handshake(ctx, nc, cfg, proxyURL.Hostname()); err != nil {
				return nil, false, &dialErr{errs.Proxy, err}
			}
		}
		if https {
			auth := p.Header.Get("Proxy-Authorization")
			if auth == "" {
				auth = proxyAuthorization(proxyURL)
			}
			if err = connectTunnel(ctx, nc, addr, auth); err != nil {
				_ = nc.Close()
				return nil, false, &dialErr{errs.Proxy, err}
			}
		}
	}

	if !https {
		return nc, false, nil
	}
	tc, err := handshake(ctx, nc, cfg, target.Hostname())
	if err != nil {
		return nil, false, &dialErr{errs.SSL, err}
	}
	return tc, cfg.InsecureSkipVerify, nil
}

// handshake runs a TLS client handshake over nc, closing nc if it
// fails.
func handshake(ctx context.Context, nc net.Conn, cfg *tls.Config, serverName string) (net.Conn, error) {
	cfg = cfg.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}
	tc := tls.Client(nc, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return tc, nil
}

// roundTrip writes the request on c and reads the response headers,
// and unless streaming, the body. It returns true if the attempt
// failed on a reused connection which the server had already closed,
// and it is safe to resend the request on a new connection.
func (a *HTTPAdapter) roundTrip(e *request.Execution, c *conn, o *SendOptions, t timeout.Timeout, start time.Time) (stale bool) {
	p := e.Prepared
	ctx := p.Context()
	op, u := errs.Op(p.Method), p.URL.String()

	req := a.wireRequest(p, c)
	e.Request = req
	a.handlers.run(BeforeAttempt, e)
	req = e.Request

	if p.Body != nil {
		rc, err := p.Body.Open()
		if err != nil {
			c.pool.release(c, true)
			e.Err = withOp(err, op, u)
			return false
		}
		req.Body = rc
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(aLongTimeAgo)
	})
	fail := func(err error, kind *errs.Kind) bool {
		stop()
		c.pool.release(c, false)
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.Err = contextErr(op, u, ctxErr)
			return false
		}
		if e.Reused && isConnClosed(err) && e.Replayable() && (e.Idempotent() || !e.Sent) {
			e.Err = errs.New(errs.Connection, op, u, err)
			return true
		}
		if isTimeout(err) && kind == errs.ReadTimeout {
			e.Err = errs.New(errs.ReadTimeout, op, u, err)
		} else {
			e.Err = errs.New(errs.Connection, op, u, err)
		}
		return false
	}

	bw := bufio.NewWriter(sentWriter{c, &e.Sent})
	var err error
	if c.absolute {
		err = req.WriteProxy(bw)
	} else {
		err = req.Write(bw)
	}
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		return fail(err, errs.Connection)
	}

	if t.Read > 0 {
		_ = c.SetReadDeadline(time.Now().Add(t.Read))
	}
	resp, err := readResponse(c.br, req)
	if err != nil {
		return fail(err, errs.ReadTimeout)
	}

	r := &request.Response{
		StatusCode:  resp.StatusCode,
		Reason:      strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode))),
		Proto:       resp.Proto,
		Header:      resp.Header,
		URL:         p.URL,
		Elapsed:     time.Since(start),
		Request:     p,
		InsecureTLS: c.insecure,
	}
	r.Cookies = cookies.New().Extract(p.URL, resp.Header)
	b := &body{
		c:       c,
		rc:      resp.Body,
		read:    t.Read,
		keep:    !resp.Close && !req.Close,
		chunked: isChunked(resp.TransferEncoding),
		op:      op,
		url:     u,
		ctxErr:  ctx.Err,
		stop:    stop,
	}
	r.SetStream(newDecoder(b, resp.Header.Get("Content-Encoding"), op, u))
	e.Response = r

	a.handlers.run(BeforeReadBody, e)
	if !o.Stream && e.Response != nil {
		if _, err = e.Response.Content(); err != nil {
			e.Err = withOp(err, op, u)
		}
	}
	return false
}

// wireRequest builds the request written on c.
func (a *HTTPAdapter) wireRequest(p *request.Prepared, c *conn) *http.Request {
	u := *p.URL
	u.Fragment, u.RawFragment = "", ""
	req := &http.Request{
		Method:        p.Method,
		URL:           &u,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        p.Header,
		Host:          p.URL.Host,
		ContentLength: p.Body.Len(),
	}
	if h := p.Header.Get("Host"); h != "" {
		req.Host = h
	}
	if strings.EqualFold(p.Header.Get("Transfer-Encoding"), "chunked") {
		req.TransferEncoding = []string{"chunked"}
		req.ContentLength = -1
	}

	// Proxy credentials go to an HTTP proxy on each request, and
	// otherwise only on the CONNECT which opened the tunnel.
	if c.absolute {
		if c.proxyAuth != "" && p.Header.Get("Proxy-Authorization") == "" {
			req.Header = p.Header.Clone()
			req.Header.Set("Proxy-Authorization", c.proxyAuth)
		}
	} else if p.Header.Get("Proxy-Authorization") != "" {
		req.Header = p.Header.Clone()
		req.Header.Del("Proxy-Authorization")
	}
	return req.WithContext(p.Context())
}

// readResponse reads the next final response, skipping informational
// responses.
func readResponse(br *bufio.Reader, req *http.Request) (*http.Response, error) {
	for {
		resp, err := http.ReadResponse(br, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 100 && resp.StatusCode < 200 && resp.StatusCode != http.StatusSwitchingProtocols {
			continue
		}
		return resp, nil
	}
}

var aLongTimeAgo = time.Unix(1, 0)

// sentWriter records when the first byte reaches the connection.
type sentWriter struct {
	w    io.Writer
	sent *bool
}

func (s sentWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if n > 0 {
		*s.sent = true
	}
	return n, err
}

func withOp(err error, op, u string) error {
	var ee *errs.Error
	if errors.As(err, &ee) {
		if ee.Op == "" {
			ee.Op = op
		}
		if ee.URL == "" {
			ee.URL = u
		}
		return ee
	}
	return errs.New(errs.Request, op, u, err)
}

func contextErr(op, u string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.New(errs.Timeout, op, u, err)
	}
	return errs.New(errs.Request, op, u, err)
}

// connectErr maps a failure while connecting. Once the parent context
// is done its error wins; otherwise a deadline means the connect
// timeout expired.
func connectErr(ctx context.Context, kind *errs.Kind, op, u string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextErr(op, u, ctxErr)
	}
	if isTimeout(err) {
		return errs.New(errs.ConnectTimeout, op, u, err)
	}
	return errs.New(kind, op, u, err)
}

func connectErrKind(ctx context.Context, err error, op, u string) error {
	kind := errs.Connection
	var de *dialErr
	if errors.As(err, &de) {
		kind = de.kind
		err = de.err
	}
	return connectErr(ctx, kind, op, u, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isConnClosed reports whether err means the server closed or reset
// the connection.
func isConnClosed(err error) bool {
	switch transient.Categorize(err) {
	case transient.ConnClosed, transient.ConnReset:
		return true
	}
	return false
}
