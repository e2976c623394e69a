// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cookies

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// A Cookie is a single cookie held in a Jar.
type Cookie struct {
	Name  string
	Value string

	// Domain is the domain the cookie is scoped to. A leading dot
	// scopes the cookie to the domain and all its sub-domains; no
	// leading dot scopes it to one exact host. The empty domain is
	// only produced by Jar.Set and matches every host.
	Domain string

	// Path is the path prefix the cookie is scoped to. The empty path
	// is treated as "/".
	Path string

	// Secure restricts the cookie to https requests.
	Secure bool

	// HTTPOnly records the HttpOnly attribute. It has no effect on
	// matching.
	HTTPOnly bool

	// Expires is the expiry time. The zero value means the cookie
	// lasts as long as the jar.
	Expires time.Time

	// Discard marks a session cookie which should not be persisted.
	Discard bool

	seq uint64
}

// Expired reports whether the cookie has an expiry time at or before
// now.
func (c *Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

// String returns the cookie in the name=value form used in a Cookie
// request header.
func (c *Cookie) String() string {
	return c.Name + "=" + c.Value
}

// HTTPCookie converts the cookie to the net/http representation.
func (c *Cookie) HTTPCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   strings.TrimPrefix(c.Domain, "."),
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		Expires:  c.Expires,
	}
}

func (c *Cookie) clone() *Cookie {
	c2 := *c
	return &c2
}

func (c *Cookie) path() string {
	if c.Path == "" {
		return "/"
	}
	return c.Path
}

// DomainMatch reports whether a cookie scoped to domain may be sent to
// host.
func DomainMatch(domain, host string) bool {
	if domain == "" {
		return true
	}
	host = canonicalHost(host)
	domain = strings.ToLower(domain)
	if strings.HasPrefix(domain, ".") {
		return host == domain[1:] || strings.HasSuffix(host, domain)
	}
	return host == domain
}

// PathMatch reports whether a cookie scoped to cookiePath may be sent
// with a request for reqPath.
func PathMatch(cookiePath, reqPath string) bool {
	if cookiePath == "" {
		cookiePath = "/"
	}
	if reqPath == "" {
		reqPath = "/"
	}
	if cookiePath == reqPath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}

// defaultPath computes the default cookie path of RFC 6265 section
// 5.1.4 for a request path.
func defaultPath(reqPath string) string {
	if reqPath == "" || reqPath[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(reqPath, "/")
	if i == 0 {
		return "/"
	}
	return reqPath[:i]
}

func canonicalHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}

func isIP(host string) bool {
	return net.ParseIP(host) != nil
}
