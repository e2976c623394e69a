// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package adapter

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gogama/requests/errs"
	"github.com/gogama/requests/request"
	"golang.org/x/net/http/httpproxy"
	"golang.org/x/net/proxy"
)

// Proxies maps URL patterns to proxy URLs.
//
// A key is one of "scheme://host", "scheme", "all://host", or "all",
// and Select tries them in that order, so the most specific key wins.
// A proxy URL without a scheme is taken to be an HTTP proxy. Supported
// proxy schemes are http, https, socks5, and socks5h. Userinfo in a
// proxy URL becomes the Proxy-Authorization of requests sent through
// it.
type Proxies map[string]string

// Select returns the proxy for u, or nil if no key matches u.
//
// An unparseable or unsupported proxy URL yields an error of kind
// errs.InvalidProxyURL.
func (ps Proxies) Select(u *url.URL) (*url.URL, error) {
	if len(ps) == 0 || u == nil {
		return nil, nil
	}
	scheme := strings.ToLower(u.Scheme)
	host := u.Hostname()
	var keys []string
	if host == "" {
		keys = []string{scheme, "all"}
	} else {
		keys = []string{scheme + "://" + host, scheme, "all://" + host, "all"}
	}
	for _, k := range keys {
		if v, ok := ps[k]; ok && v != "" {
			return ParseProxyURL(v)
		}
	}
	return nil, nil
}

// Merge returns a copy of ps with the entries of other added or
// replaced.
func (ps Proxies) Merge(other Proxies) Proxies {
	if len(ps) == 0 && len(other) == 0 {
		return nil
	}
	m := make(Proxies, len(ps)+len(other))
	for k, v := range ps {
		m[k] = v
	}
	for k, v := range other {
		m[k] = v
	}
	return m
}

// ParseProxyURL parses a proxy URL, prepending "http://" if it has no
// scheme.
func ParseProxyURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errs.New(errs.InvalidProxyURL, "", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, errs.Newf(errs.InvalidProxyURL, "", raw, "unsupported proxy scheme "+u.Scheme)
	}
	if u.Host == "" {
		return nil, errs.Newf(errs.InvalidProxyURL, "", raw, "proxy URL has no host")
	}
	return u, nil
}

// EnvironmentProxy returns the proxy for u named by the HTTP_PROXY,
// HTTPS_PROXY, and NO_PROXY environment variables (or their lower-case
// versions), or nil if u should be reached directly. Requests to
// localhost and loopback addresses are never proxied.
func EnvironmentProxy(u *url.URL) (*url.URL, error) {
	p, err := httpproxy.FromEnvironment().ProxyFunc()(u)
	if err != nil {
		return nil, errs.New(errs.InvalidProxyURL, "", "", err)
	}
	return p, nil
}

// proxyAuthorization returns the Proxy-Authorization header value from
// the userinfo of a proxy URL.
func proxyAuthorization(p *url.URL) string {
	if p.User == nil {
		return ""
	}
	pass, _ := p.User.Password()
	return request.BasicAuthHeader(p.User.Username(), pass)
}

func isSOCKS(p *url.URL) bool {
	s := strings.ToLower(p.Scheme)
	return s == "socks5" || s == "socks5h"
}

// dialSOCKS connects to addr through a SOCKS5 proxy. With the socks5
// scheme the target host is resolved locally; with socks5h the proxy
// resolves it.
func dialSOCKS(ctx context.Context, forward proxy.ContextDialer, p *url.URL, addr string) (net.Conn, error) {
	var auth *proxy.Auth
	if p.User != nil {
		pass, _ := p.User.Password()
		auth = &proxy.Auth{User: p.User.Username(), Password: pass}
	}
	d, err := proxy.SOCKS5("tcp", hostPort(p), auth, forwardDialer{forward})
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(p.Scheme, "socks5") {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		if net.ParseIP(host) == nil {
			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			if len(ips) == 0 {
				return nil, fmt.Errorf("no addresses found for %s", host)
			}
			addr = net.JoinHostPort(ips[0].IP.String(), port)
		}
	}

	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, "tcp", addr)
	}
	return d.Dial("tcp", addr)
}

// forwardDialer lets a context dialer serve as the forward dialer of a
// SOCKS5 proxy dialer.
type forwardDialer struct {
	proxy.ContextDialer
}

func (f forwardDialer) Dial(network, addr string) (net.Conn, error) {
	return f.DialContext(context.Background(), network, addr)
}

// connectTunnel asks an HTTP proxy to open a tunnel to addr with the
// CONNECT method. The deadline of ctx bounds the exchange.
func connectTunnel(ctx context.Context, c net.Conn, addr, auth string) error {
	if d, ok := ctx.Deadline(); ok {
		_ = c.SetDeadline(d)
		defer func() { _ = c.SetDeadline(time.Time{}) }()
	}
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if auth != "" {
		req.Header.Set("Proxy-Authorization", auth)
	}
	if err := req.Write(c); err != nil {
		return err
	}
	// The proxy sends nothing after its response until the client
	// starts the TLS handshake, so the reader may be discarded.
	resp, err := http.ReadResponse(bufio.NewReader(c), req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy refused CONNECT to %s: %s", addr, resp.Status)
	}
	return nil
}
