// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// A Category is the transience category of an error, as reported by
// Categorize.
//
// Not means a retry after the error is very unlikely to succeed. Every
// other category means a retry has some prospect of success, although
// whether a retry is safe depends on how far the failed attempt got.
type Category int

const (
	// Not indicates any non-transient error.
	Not Category = iota

	// Timeout indicates a client-side timeout: the error or one of its
	// causes has a Timeout method reporting true. The server may be
	// going through a slow period, or a longer timeout may succeed.
	Timeout

	// ConnRefused indicates the remote host refused the connection
	// (ECONNREFUSED). A service which is starting or restarting refuses
	// connections until it listens again.
	ConnRefused

	// ConnReset indicates the remote host reset or aborted an active
	// connection (ECONNRESET or ECONNABORTED), which happens when a
	// service or a load balancer in front of it goes down mid-response.
	ConnReset

	// ConnClosed indicates the connection was closed before a complete
	// response arrived (io.EOF, io.ErrUnexpectedEOF, net.ErrClosed, or
	// EPIPE), typically because the server closed an idle keep-alive
	// connection just as it was reused. The server may already have
	// acted on the request.
	ConnClosed

	// DNS indicates a temporary name resolution failure. A host which
	// does not exist is not transient.
	DNS
)

var names = [...]string{
	Not:         "not transient",
	Timeout:     "timeout",
	ConnRefused: "connection refused",
	ConnReset:   "connection reset",
	ConnClosed:  "connection closed",
	DNS:         "temporary DNS failure",
}

// String returns a short description of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= len(names) {
		return "unknown"
	}
	return names[c]
}

var errnos = map[syscall.Errno]Category{
	syscall.ECONNREFUSED: ConnRefused,
	syscall.ECONNRESET:   ConnReset,
	syscall.ECONNABORTED: ConnReset,
	syscall.EPIPE:        ConnClosed,
}

// Categorize returns the transience category of err, looking through
// its wrapped causes. A nil error is Not transient.
//
// A timeout takes precedence over every other category. Categorize
// never consults Temporary methods, whose meaning is unclear, except
// on a *net.DNSError.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return Timeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if c, ok := errnos[errno]; ok {
			return c
		}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return ConnClosed
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsTemporary && !dnsErr.IsNotFound {
		return DNS
	}

	return Not
}
