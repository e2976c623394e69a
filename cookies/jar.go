// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cookies

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// A Jar stores cookies, unique by name, domain, and path. The zero
// value is an empty jar ready to use.
//
// A Jar is safe for concurrent use by multiple goroutines. Readers
// always observe a consistent snapshot: no read sees a cookie while it
// is being replaced.
type Jar struct {
	mu      sync.RWMutex
	cookies []*Cookie
	seq     uint64

	// Now returns the current time. It is used to evaluate expiry and
	// Max-Age. If nil, time.Now is used.
	Now func() time.Time
}

// New returns an empty jar.
func New() *Jar {
	return &Jar{}
}

func (j *Jar) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// Len returns the number of cookies held, including expired cookies
// not yet evicted.
func (j *Jar) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.cookies)
}

// Get returns the value of the unexpired cookie named name which
// matches domain and path. An empty domain or path matches any.
// A non-empty domain is the host the cookie would be sent to, so a
// cookie scoped to ".example.com" is found for both "example.com" and
// "sub.example.com".
//
// If several cookies match, the one with the longest path wins, then
// the one with the longest domain.
func (j *Jar) Get(name, domain, path string) (string, bool) {
	now := j.now()
	j.mu.RLock()
	defer j.mu.RUnlock()
	var best *Cookie
	for _, c := range j.cookies {
		if c.Name != name || c.Expired(now) || !filterMatch(c, domain, path) {
			continue
		}
		if best == nil || moreSpecific(c, best) {
			best = c
		}
	}
	if best == nil {
		return "", false
	}
	return best.Value, true
}

// Set stores a cookie with no domain restriction and path "/",
// replacing any cookie with the same name which also has no domain
// and path "/".
func (j *Jar) Set(name, value string) {
	j.SetCookie(&Cookie{Name: name, Value: value, Path: "/"})
}

// Delete removes every cookie named name which matches domain and
// path, where an empty domain or path matches any. It returns the
// number of cookies removed.
func (j *Jar) Delete(name, domain, path string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	kept := j.cookies[:0]
	for _, c := range j.cookies {
		if c.Name == name && (domain == "" || c.Domain == domain) && (path == "" || c.path() == path) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	clearTail(j.cookies, len(kept))
	j.cookies = kept
	return n
}

// Clear removes all cookies.
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = nil
}

// SetCookie stores a copy of c. If the jar already holds a cookie with
// the same name, domain, and path, that cookie is replaced in place
// and keeps its position; otherwise c is appended.
func (j *Jar) SetCookie(c *Cookie) {
	if c == nil {
		panic("requests/cookies: nil cookie")
	}
	c2 := c.clone()
	if c2.Path == "" {
		c2.Path = "/"
	}
	c2.Domain = strings.ToLower(c2.Domain)
	j.mu.Lock()
	defer j.mu.Unlock()
	j.setLocked(c2)
}

func (j *Jar) setLocked(c *Cookie) {
	for i, old := range j.cookies {
		if sameKey(old, c) {
			c.seq = old.seq
			j.cookies[i] = c
			return
		}
	}
	j.seq++
	c.seq = j.seq
	j.cookies = append(j.cookies, c)
}

func (j *Jar) deleteLocked(c *Cookie) {
	for i, old := range j.cookies {
		if sameKey(old, c) {
			copy(j.cookies[i:], j.cookies[i+1:])
			j.cookies[len(j.cookies)-1] = nil
			j.cookies = j.cookies[:len(j.cookies)-1]
			return
		}
	}
}

// Update calls Set for every name/value pair in m, in name order.
func (j *Jar) Update(m map[string]string) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		j.Set(name, m[name])
	}
}

// Merge copies every cookie from other into j, replacing cookies with
// the same name, domain, and path.
func (j *Jar) Merge(other *Jar) {
	if other == nil || other == j {
		return
	}
	for _, c := range other.All() {
		j.SetCookie(c)
	}
}

// GetDict returns the name/value pairs of the unexpired cookies
// matching domain and path, with the same filter semantics as Get.
// When two matching cookies share a name, the more specific one wins.
func (j *Jar) GetDict(domain, path string) map[string]string {
	now := j.now()
	j.mu.RLock()
	defer j.mu.RUnlock()
	m := make(map[string]string)
	chosen := make(map[string]*Cookie)
	for _, c := range j.cookies {
		if c.Expired(now) || !filterMatch(c, domain, path) {
			continue
		}
		if prev, ok := chosen[c.Name]; ok && !moreSpecific(c, prev) {
			continue
		}
		chosen[c.Name] = c
		m[c.Name] = c.Value
	}
	return m
}

// All returns copies of every unexpired cookie in insertion order.
func (j *Jar) All() []*Cookie {
	now := j.now()
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]*Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		if !c.Expired(now) {
			out = append(out, c.clone())
		}
	}
	return out
}

// Copy returns an independent jar holding copies of j's cookies.
func (j *Jar) Copy() *Jar {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j2 := &Jar{Now: j.Now, seq: j.seq}
	j2.cookies = make([]*Cookie, len(j.cookies))
	for i, c := range j.cookies {
		j2.cookies[i] = c.clone()
	}
	return j2
}

// ForURL returns copies of the cookies which should be sent with a
// request to u, ordered longest path first and then by creation.
// Expired cookies are never returned and are evicted from the jar.
func (j *Jar) ForURL(u *url.URL) []*Cookie {
	if u == nil {
		return nil
	}
	now := j.now()
	host := canonicalHost(u.Hostname())
	reqPath := u.EscapedPath()
	https := strings.EqualFold(u.Scheme, "https") || strings.EqualFold(u.Scheme, "wss")

	var out []*Cookie
	expired := false
	j.mu.RLock()
	for _, c := range j.cookies {
		if c.Expired(now) {
			expired = true
			continue
		}
		if c.Secure && !https {
			continue
		}
		if !DomainMatch(c.Domain, host) || !PathMatch(c.path(), reqPath) {
			continue
		}
		out = append(out, c.clone())
	}
	j.mu.RUnlock()

	if expired {
		j.evict(now)
	}

	sort.SliceStable(out, func(a, b int) bool {
		la, lb := len(out[a].path()), len(out[b].path())
		if la != lb {
			return la > lb
		}
		return out[a].seq < out[b].seq
	})
	return out
}

// Header renders the Cookie request header value for a request to u.
// It returns the empty string if no cookie applies.
func (j *Jar) Header(u *url.URL) string {
	cs := j.ForURL(u)
	if len(cs) == 0 {
		return ""
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, "; ")
}

func (j *Jar) evict(now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	kept := j.cookies[:0]
	for _, c := range j.cookies {
		if !c.Expired(now) {
			kept = append(kept, c)
		}
	}
	clearTail(j.cookies, len(kept))
	j.cookies = kept
}

// Extract absorbs the Set-Cookie headers of a response to a request
// for u. It returns copies of the cookies that were stored.
//
// A cookie whose Domain attribute does not cover the request host, or
// names a public suffix such as "com" or "co.uk", is ignored. A cookie
// with a past expiry or a non-positive Max-Age deletes any stored
// cookie with the same name, domain, and path.
func (j *Jar) Extract(u *url.URL, header http.Header) []*Cookie {
	if u == nil || len(header.Values("Set-Cookie")) == 0 {
		return nil
	}
	resp := http.Response{Header: header}
	return j.absorb(u, resp.Cookies())
}

func (j *Jar) absorb(u *url.URL, hcs []*http.Cookie) []*Cookie {
	now := j.now()
	host := canonicalHost(u.Hostname())
	var stored []*Cookie
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, hc := range hcs {
		c, ok := fromHTTP(hc, host, u.EscapedPath(), now)
		if !ok {
			continue
		}
		if c.Expired(now) {
			j.deleteLocked(c)
			continue
		}
		j.setLocked(c)
		stored = append(stored, c.clone())
	}
	return stored
}

func fromHTTP(hc *http.Cookie, host, reqPath string, now time.Time) (*Cookie, bool) {
	if hc.Name == "" {
		return nil, false
	}
	domain, ok := cookieDomain(hc.Domain, host)
	if !ok {
		return nil, false
	}
	c := &Cookie{
		Name:     hc.Name,
		Value:    hc.Value,
		Domain:   domain,
		Path:     hc.Path,
		Secure:   hc.Secure,
		HTTPOnly: hc.HttpOnly,
	}
	if c.Path == "" || c.Path[0] != '/' {
		c.Path = defaultPath(reqPath)
	}
	switch {
	case hc.MaxAge < 0:
		c.Expires = now.Add(-time.Second)
	case hc.MaxAge > 0:
		c.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second)
	case !hc.Expires.IsZero():
		c.Expires = hc.Expires
	default:
		c.Discard = true
	}
	return c, true
}

// cookieDomain computes the stored domain for a Set-Cookie Domain
// attribute received from host. An absent attribute yields a host-only
// cookie stored under host. A present one yields a domain cookie stored
// with a leading dot, even when it names host itself.
func cookieDomain(attr, host string) (string, bool) {
	d := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(attr, "."), "."))
	if d == "" {
		return host, true
	}
	if isIP(host) {
		return host, d == host
	}
	if ps, _ := publicsuffix.PublicSuffix(d); ps == d {
		// A public suffix may only scope a cookie to a host of that
		// exact name, and then only as host-only.
		return host, d == host
	}
	if d != host && !strings.HasSuffix(host, "."+d) {
		return "", false
	}
	return "." + d, true
}

// SetCookies implements the net/http CookieJar interface.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if u == nil {
		return
	}
	j.absorb(u, cookies)
}

// Cookies implements the net/http CookieJar interface.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	cs := j.ForURL(u)
	out := make([]*http.Cookie, len(cs))
	for i, c := range cs {
		out[i] = &http.Cookie{Name: c.Name, Value: c.Value}
	}
	return out
}

func sameKey(a, b *Cookie) bool {
	return a.Name == b.Name && a.Domain == b.Domain && a.path() == b.path()
}

func filterMatch(c *Cookie, domain, path string) bool {
	if domain != "" && c.Domain != strings.ToLower(domain) && !DomainMatch(c.Domain, strings.TrimPrefix(domain, ".")) {
		return false
	}
	return path == "" || PathMatch(c.path(), path)
}

func moreSpecific(a, b *Cookie) bool {
	if len(a.path()) != len(b.path()) {
		return len(a.path()) > len(b.path())
	}
	return len(a.Domain) > len(b.Domain)
}

func clearTail(s []*Cookie, from int) {
	for i := from; i < len(s); i++ {
		s[i] = nil
	}
}
