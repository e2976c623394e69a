// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package requests

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/gogama/requests/adapter"
	"github.com/gogama/requests/cookies"
	"github.com/gogama/requests/errs"
	"github.com/gogama/requests/request"
	"github.com/gogama/requests/timeout"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Version is the library version sent in the default User-Agent.
const Version = "0.1.0"

// DefaultMaxRedirects is the default limit on redirects followed by
// one call.
const DefaultMaxRedirects = 30

// DefaultUserAgent is the User-Agent header of a new Session.
var DefaultUserAgent = "requests-go/" + Version

// DefaultHeader returns the headers of a new Session.
func DefaultHeader() http.Header {
	return http.Header{
		"User-Agent":      {DefaultUserAgent},
		"Accept-Encoding": {"gzip, deflate"},
		"Accept":          {"*/*"},
		"Connection":      {"keep-alive"},
	}
}

// A Session holds settings shared by many requests, persists cookies
// across them, and reuses connections through its adapters.
//
// Each call merges the Session's settings with its per-call options,
// prepares a request, and sends it, following redirects up to
// MaxRedirects. Headers and query parameters merge key by key, with
// the per-call value winning; other per-call settings replace the
// Session's wholesale.
//
// Create a Session with NewSession. Set its fields before first use;
// afterward a Session is safe for concurrent use by multiple
// goroutines. Close it to release its connections.
type Session struct {
	// Header holds the headers sent with every request.
	Header http.Header

	// Jar holds the cookies of the Session. Cookies set by every
	// response, including redirects, are stored in it.
	Jar *cookies.Jar

	// Auth is the default authentication strategy.
	Auth request.Authenticator

	// Proxies maps URL patterns to proxies. See adapter.Proxies.
	Proxies adapter.Proxies

	// Hooks run on the response of every hop, before per-call hooks.
	Hooks []request.Hook

	// Params holds query parameters added to every request.
	Params url.Values

	// Stream is the default of WithStream.
	Stream bool

	// Verify is the default TLS verification policy.
	Verify adapter.Verify

	// Cert is the default client certificate.
	Cert adapter.Cert

	// Timeout is the default timeout policy. If nil, requests never
	// time out.
	Timeout timeout.Policy

	// MaxRedirects bounds the redirects of one call: receiving that
	// many redirect responses fails the call with a
	// TooManyRedirectsError, so at most MaxRedirects-1 are followed.
	// Zero or less means no redirects are followed: the first redirect
	// fails the call, with a History of one. To receive a redirect
	// response instead of an error, use WithAllowRedirects(false).
	MaxRedirects int

	// TrustEnv enables proxies from the HTTP_PROXY, HTTPS_PROXY, and
	// NO_PROXY environment variables, and a CA bundle from the
	// REQUESTS_CA_BUNDLE or CURL_CA_BUNDLE environment variable when
	// Verify is the system default.
	TrustEnv bool

	// Logger receives debug logs of each hop and redirect.
	Logger zerolog.Logger

	mu     sync.RWMutex
	mounts []mount // longest prefix first
}

type mount struct {
	prefix string
	a      adapter.Adapter
}

// NewSession returns a Session with default headers, an empty cookie
// jar, and one HTTPAdapter mounted at both "https://" and "http://".
func NewSession() *Session {
	return NewSessionWithAdapter(adapter.New())
}

// NewSessionWithAdapter is like NewSession, but mounts a at both
// "https://" and "http://" instead of a default HTTPAdapter.
func NewSessionWithAdapter(a adapter.Adapter) *Session {
	s := &Session{
		Header:       DefaultHeader(),
		Jar:          cookies.New(),
		MaxRedirects: DefaultMaxRedirects,
		TrustEnv:     true,
		Logger:       zerolog.Nop(),
	}
	s.Mount("https://", a)
	s.Mount("http://", a)
	return s
}

// Mount registers a to send requests whose URL starts with prefix,
// replacing any adapter already mounted at prefix. Prefixes match
// case-insensitively, and the longest matching prefix wins.
func (s *Session) Mount(prefix string, a adapter.Adapter) {
	if a == nil {
		panic("requests: nil adapter")
	}
	prefix = strings.ToLower(prefix)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.mounts {
		if s.mounts[i].prefix == prefix {
			s.mounts[i].a = a
			return
		}
	}
	s.mounts = append(s.mounts, mount{prefix, a})
	sort.SliceStable(s.mounts, func(i, j int) bool {
		return len(s.mounts[i].prefix) > len(s.mounts[j].prefix)
	})
}

// Adapter returns the adapter mounted at the longest prefix of rawURL.
// If there is none, it returns an error of kind errs.InvalidSchema.
func (s *Session) Adapter(rawURL string) (adapter.Adapter, error) {
	lower := strings.ToLower(rawURL)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mounts {
		if strings.HasPrefix(lower, m.prefix) {
			return m.a, nil
		}
	}
	return nil, errs.Newf(errs.InvalidSchema, "", rawURL, "no connection adapter found")
}

// schemes returns the URL schemes of the mounted prefixes.
func (s *Session) schemes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, m := range s.mounts {
		if i := strings.Index(m.prefix, "://"); i > 0 && !contains(out, m.prefix[:i]) {
			out = append(out, m.prefix[:i])
		}
	}
	return out
}

// Close closes every mounted adapter. Idle connections close at once;
// a connection still held by a streaming response closes when the
// response is released. Requests sent after Close fail.
func (s *Session) Close() error {
	s.mu.RLock()
	seen := make(map[adapter.Adapter]bool, len(s.mounts))
	var all []adapter.Adapter
	for _, m := range s.mounts {
		if !seen[m.a] {
			seen[m.a] = true
			all = append(all, m.a)
		}
	}
	s.mu.RUnlock()

	var g errgroup.Group
	for _, a := range all {
		g.Go(a.Close)
	}
	return g.Wait()
}

// Request prepares a request with the Session's settings merged with
// opts, and sends it.
func (s *Session) Request(method, rawURL string, opts ...Option) (*request.Response, error) {
	o := collect(opts)
	p, err := s.prepare(method, rawURL, o)
	if err != nil {
		return nil, err
	}
	return s.send(p, o)
}

// Get sends a GET request, following redirects.
func (s *Session) Get(rawURL string, opts ...Option) (*request.Response, error) {
	return s.Request(http.MethodGet, rawURL, opts...)
}

// Options sends an OPTIONS request, following redirects.
func (s *Session) Options(rawURL string, opts ...Option) (*request.Response, error) {
	return s.Request(http.MethodOptions, rawURL, opts...)
}

// Head sends a HEAD request. Unlike the other methods it does not
// follow redirects unless WithAllowRedirects(true) is given.
func (s *Session) Head(rawURL string, opts ...Option) (*request.Response, error) {
	return s.Request(http.MethodHead, rawURL, append([]Option{WithAllowRedirects(false)}, opts...)...)
}

// Post sends a POST request, following redirects.
func (s *Session) Post(rawURL string, opts ...Option) (*request.Response, error) {
	return s.Request(http.MethodPost, rawURL, opts...)
}

// Put sends a PUT request, following redirects.
func (s *Session) Put(rawURL string, opts ...Option) (*request.Response, error) {
	return s.Request(http.MethodPut, rawURL, opts...)
}

// Patch sends a PATCH request, following redirects.
func (s *Session) Patch(rawURL string, opts ...Option) (*request.Response, error) {
	return s.Request(http.MethodPatch, rawURL, opts...)
}

// Delete sends a DELETE request, following redirects.
func (s *Session) Delete(rawURL string, opts ...Option) (*request.Response, error) {
	return s.Request(http.MethodDelete, rawURL, opts...)
}

// Prepare builds a request with the Session's settings merged with
// opts, without sending it. Send it with Send.
func (s *Session) Prepare(method, rawURL string, opts ...Option) (*request.Prepared, error) {
	return s.prepare(method, rawURL, collect(opts))
}

func (s *Session) prepare(method, rawURL string, o *options) (*request.Prepared, error) {
	jar := cookies.New()
	if s.Jar != nil {
		jar = s.Jar.Copy()
	}
	for name := range o.cookies {
		jar.Delete(name, "", "")
	}
	jar.Update(o.cookies)

	a := o.auth
	if a == nil {
		a = s.Auth
	}

	params := request.Params{
		Header:  request.MergeHeaders(s.Header, o.header),
		Params:  mergeValues(s.Params, o.params),
		Data:    o.data,
		Files:   o.files,
		JSON:    o.json,
		Auth:    a,
		Cookies: jar,
		Hooks:   append(append([]request.Hook(nil), s.Hooks...), o.hooks...),
		Schemes: s.schemes(),
		Context: o.ctx,
	}
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil && u.Host != "" {
		proxy, err := s.selectProxy(u, s.Proxies.Merge(o.proxies))
		if err != nil {
			return nil, withOp(err, errs.Op(method), rawURL)
		}
		params.Proxy = proxy
	}
	return request.Prepare(method, rawURL, params)
}

// settings are the send settings of one call.
type settings struct {
	stream         bool
	verify         adapter.Verify
	cert           adapter.Cert
	timeout        timeout.Policy
	proxies        adapter.Proxies
	allowRedirects bool
}

func (s *Session) settings(o *options) settings {
	st := settings{
		stream:         s.Stream,
		verify:         s.Verify,
		cert:           s.Cert,
		timeout:        s.Timeout,
		proxies:        s.Proxies.Merge(o.proxies),
		allowRedirects: true,
	}
	if o.stream != nil {
		st.stream = *o.stream
	}
	if o.verify != nil {
		st.verify = *o.verify
	}
	if o.cert != nil {
		st.cert = *o.cert
	}
	if o.timeout != nil {
		st.timeout = o.timeout
	}
	if o.allowRedirects != nil {
		st.allowRedirects = *o.allowRedirects
	}
	if s.TrustEnv && st.verify.IsSystem() {
		st.verify = environmentVerify()
	}
	return st
}

// Send sends a prepared request, following redirects unless opts
// disable it. Only the send settings in opts apply: stream, verify,
// cert, timeout, proxies, redirects, and context. The request itself
// is never modified; redirects act on copies.
func (s *Session) Send(p *request.Prepared, opts ...Option) (*request.Response, error) {
	if p == nil {
		panic("requests: nil request")
	}
	o := collect(opts)
	if o.ctx != nil {
		p = p.WithContext(o.ctx)
	}
	return s.send(p, o)
}

func mergeValues(base, override url.Values) url.Values {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	v := make(url.Values, len(base)+len(override))
	for k, vs := range base {
		v[k] = append([]string(nil), vs...)
	}
	for k, vs := range override {
		v[k] = append([]string(nil), vs...)
	}
	return v
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
