// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package errs

import (
	"errors"
	"strconv"
	"strings"
)

// A Kind identifies a category of request failure. Kinds are compared
// by identity and may have one or more parent kinds.
//
// A Kind is itself an error, which makes it usable as the target of
// errors.Is.
type Kind struct {
	name    string
	parents []*Kind
}

func newKind(name string, parents ...*Kind) *Kind {
	return &Kind{name: name, parents: parents}
}

var (
	// Request is the root of the taxonomy. Every error returned by the
	// library matches Request.
	Request = newKind("request error")

	// HTTP is produced only by an explicit status check on a 4xx or 5xx
	// response. A response with an error status is never itself an
	// error.
	HTTP = newKind("http error", Request)

	// Connection indicates a transport, DNS, proxy, or TLS failure
	// before a response was obtained.
	Connection = newKind("connection error", Request)
	// Proxy indicates a failure connecting to or through a proxy.
	Proxy = newKind("proxy error", Connection)
	// SSL indicates a TLS handshake or certificate verification failure.
	SSL = newKind("ssl error", Connection)

	// Timeout is the parent of ConnectTimeout and ReadTimeout, and is
	// used directly when a context deadline expires.
	Timeout = newKind("timeout", Request)
	// ConnectTimeout indicates connection or TLS establishment exceeded
	// the connect timeout. It is both a Connection and a Timeout error.
	ConnectTimeout = newKind("connect timeout", Connection, Timeout)
	// ReadTimeout indicates the server sent nothing within the read
	// timeout.
	ReadTimeout = newKind("read timeout", Timeout)

	URLRequired      = newKind("a valid URL is required", Request)
	TooManyRedirects = newKind("too many redirects", Request)
	MissingSchema    = newKind("missing URL scheme", Request)
	InvalidSchema    = newKind("invalid URL scheme", Request)
	InvalidURL       = newKind("invalid URL", Request)
	InvalidProxyURL  = newKind("invalid proxy URL", InvalidURL)
	InvalidHeader    = newKind("invalid header", Request)
	InvalidRequest   = newKind("invalid request", Request)
	InvalidJSON      = newKind("invalid JSON", Request)

	// ChunkedEncoding indicates the server sent malformed chunked
	// framing.
	ChunkedEncoding = newKind("chunked encoding error", Request)
	// ContentDecoding indicates a gzip or deflate body failed to
	// decompress.
	ContentDecoding = newKind("content decoding error", Request)
	// StreamConsumed indicates a streaming body was read twice.
	StreamConsumed = newKind("stream already consumed", Request)
	// Retry indicates the retry policy gave up while the server kept
	// returning a retryable status.
	Retry = newKind("retries exhausted", Request)
	// UnrewindableBody indicates a request needed to be resent but its
	// body came from a one-shot source.
	UnrewindableBody = newKind("unable to rewind request body", Request)
)

// Error returns the kind's name.
func (k *Kind) Error() string {
	return k.name
}

// Is reports whether k is target or descends from target.
func (k *Kind) Is(target error) bool {
	t, ok := target.(*Kind)
	if !ok {
		return false
	}
	return k.descends(t)
}

func (k *Kind) descends(t *Kind) bool {
	if k == t {
		return true
	}
	for _, p := range k.parents {
		if p.descends(t) {
			return true
		}
	}
	return false
}

// An Error records a failed request operation.
type Error struct {
	// Kind is the failure category. It is never nil.
	Kind *Kind
	// Op is the operation that failed, typically the HTTP method in
	// title case ("Get", "Post") or a preparation step.
	Op string
	// URL is the URL involved, if any.
	URL string
	// Err is the underlying cause. It may be nil.
	Err error
}

// New returns an *Error of the given kind.
func New(k *Kind, op, url string, err error) *Error {
	if k == nil {
		panic("requests/errs: nil kind")
	}
	return &Error{Kind: k, Op: op, URL: url, Err: err}
}

// Newf returns an *Error of the given kind whose cause is a plain
// message.
func Newf(k *Kind, op, url, msg string) *Error {
	return New(k, op, url, errors.New(msg))
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteByte(' ')
	}
	if e.URL != "" {
		b.WriteString(strconv.Quote(e.URL))
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.name)
	if e.Err != nil && e.Err != e.Kind {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error's kind matches target, which lets
// errors.Is test an *Error against any Kind in its ancestry.
func (e *Error) Is(target error) bool {
	return e.Kind.Is(target)
}

// Timeout reports whether the error is a timeout. It makes *Error
// compatible with the net.Error convention.
func (e *Error) Timeout() bool {
	return e.Kind.descends(Timeout)
}

// KindOf returns the kind of the first *Error in err's chain, or nil
// if there is none.
func KindOf(err error) *Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// Op returns the conventional operation name for an HTTP method: the
// method in title case, with the empty method meaning "Get".
func Op(method string) string {
	if method == "" {
		return "Get"
	}
	return method[:1] + strings.ToLower(method[1:])
}
