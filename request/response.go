// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gogama/requests/cookies"
	"github.com/gogama/requests/errs"
	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/htmlindex"
)

// A Response is the response to one hop of a request.
//
// Its body is either buffered, in which case it may be read any number
// of times, or, for a streaming request, read lazily from the
// connection. A streaming body may be consumed only once, through
// exactly one of Content, Text, JSON, Body, IterContent, or IterLines.
// Content buffers the body, so after it returns the body may be read
// again. A streaming response must be closed, or its body read to the
// end, to release the connection.
type Response struct {
	StatusCode int
	// Reason is the reason phrase from the status line, such as "Not
	// Found".
	Reason string
	Proto  string
	Header http.Header

	// URL is the URL of the request which produced this response.
	URL *url.URL

	// Elapsed is the time between starting to send this hop's request
	// and parsing the response headers. It covers this hop alone.
	Elapsed time.Duration

	// Cookies holds the cookies set by this response.
	Cookies []*cookies.Cookie

	// History holds the responses of earlier hops, oldest first, when
	// redirects were followed or an authentication challenge answered.
	History []*Response

	// Request is the request which produced this response.
	Request *Prepared

	// InsecureTLS is true if the response came over a TLS connection
	// whose certificate was not verified.
	InsecureTLS bool

	mu       sync.Mutex
	stream   io.ReadCloser
	content  []byte
	loaded   bool
	consumed bool
	encoding string
}

// SetStream sets a lazily read body. It is used by adapters.
func (r *Response) SetStream(rc io.ReadCloser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stream, r.content, r.loaded, r.consumed = rc, nil, false, false
}

// SetContent sets a buffered body.
func (r *Response) SetContent(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stream, r.content, r.loaded, r.consumed = nil, b, true, false
}

// Content returns the body, reading and buffering it first if the
// response is streaming.
func (r *Response) Content() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.content, nil
	}
	if r.consumed {
		return nil, r.consumedErr()
	}
	r.consumed = true
	if r.stream == nil {
		r.loaded = true
		return nil, nil
	}
	b, err := io.ReadAll(r.stream)
	cerr := r.stream.Close()
	r.stream = nil
	if err == nil {
		err = cerr
	}
	if err != nil {
		return b, err
	}
	r.content, r.loaded = b, true
	return b, nil
}

// Body returns a reader over the body. A streaming body may be
// obtained only once; the caller must close it.
func (r *Response) Body() (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return io.NopCloser(bytes.NewReader(r.content)), nil
	}
	if r.consumed {
		return nil, r.consumedErr()
	}
	r.consumed = true
	if r.stream == nil {
		return http.NoBody, nil
	}
	rc := r.stream
	r.stream = nil
	return rc, nil
}

func (r *Response) consumedErr() error {
	return errs.Newf(errs.StreamConsumed, "", r.urlString(), "the response body has already been consumed")
}

// Close releases the body of a streaming response which has not been
// read. It is safe to call more than once.
func (r *Response) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream == nil {
		return nil
	}
	err := r.stream.Close()
	r.stream = nil
	r.consumed = !r.loaded
	return err
}

// IterContent returns an iterator over the body in chunks of at most
// n bytes. If n < 1, chunks of 1 byte are produced.
//
// Iterating the body of a streaming response consumes it. Iterating a
// second time yields an error of kind errs.StreamConsumed.
func (r *Response) IterContent(n int) iter.Seq2[[]byte, error] {
	if n < 1 {
		n = 1
	}
	return func(yield func([]byte, error) bool) {
		rc, err := r.Body()
		if err != nil {
			yield(nil, err)
			return
		}
		defer rc.Close()
		for {
			buf := make([]byte, n)
			m, err := io.ReadFull(rc, buf)
			if m > 0 && !yield(buf[:m], nil) {
				return
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// IterLines returns an iterator over the lines of the body, without
// their line terminators.
func (r *Response) IterLines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		rc, err := r.Body()
		if err != nil {
			yield("", err)
			return
		}
		defer rc.Close()
		s := bufio.NewScanner(rc)
		s.Buffer(make([]byte, 0, 4096), 1<<24)
		for s.Scan() {
			if !yield(s.Text(), nil) {
				return
			}
		}
		if err = s.Err(); err != nil {
			yield("", err)
		}
	}
}

// Encoding returns the character encoding of the body: the encoding
// set by SetEncoding, else the charset parameter of the Content-Type
// header. Text types without a charset default to "ISO-8859-1" and
// JSON defaults to "utf-8". The empty string means unknown.
func (r *Response) Encoding() string {
	r.mu.Lock()
	enc := r.encoding
	r.mu.Unlock()
	if enc != "" {
		return enc
	}
	return encodingFromHeader(r.Header)
}

// SetEncoding overrides the encoding Text uses.
func (r *Response) SetEncoding(enc string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoding = enc
}

func encodingFromHeader(h http.Header) string {
	ct := h.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	if cs := params["charset"]; cs != "" {
		return strings.Trim(cs, `'"`)
	}
	switch {
	case strings.HasPrefix(mt, "text/"):
		return "ISO-8859-1"
	case mt == "application/json":
		return "utf-8"
	}
	return ""
}

// Text returns the body decoded to a string using Encoding. A body of
// unknown encoding is returned as UTF-8 if it is valid UTF-8, and is
// otherwise decoded as ISO-8859-1.
func (r *Response) Text() (string, error) {
	b, err := r.Content()
	if err != nil {
		return "", err
	}
	enc := r.Encoding()
	if enc == "" {
		if utf8.Valid(b) {
			return string(b), nil
		}
		enc = "ISO-8859-1"
	}
	e, err := htmlindex.Get(enc)
	if err != nil {
		return string(b), nil
	}
	if name, _ := htmlindex.Name(e); name == "utf-8" {
		return string(b), nil
	}
	d, err := e.NewDecoder().Bytes(b)
	if err != nil {
		return string(b), nil
	}
	return string(d), nil
}

// JSON decodes the body into v. A body which is not valid JSON returns
// an error of kind errs.InvalidJSON.
func (r *Response) JSON(v any) error {
	b, err := r.Content()
	if err != nil {
		return err
	}
	if err = json.Unmarshal(b, v); err != nil {
		return errs.New(errs.InvalidJSON, "", r.urlString(), err)
	}
	return nil
}

// JSONPath returns the value at path in the JSON body, using the gjson
// path syntax. A body which is not valid JSON returns an error of kind
// errs.InvalidJSON.
func (r *Response) JSONPath(path string) (gjson.Result, error) {
	b, err := r.Content()
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(b) {
		return gjson.Result{}, errs.Newf(errs.InvalidJSON, "", r.urlString(), "invalid JSON body")
	}
	return gjson.GetBytes(b, path), nil
}

// OK reports whether the status code is below 400.
func (r *Response) OK() bool {
	return r.StatusCode < 400
}

// RaiseForStatus returns an *HTTPError if the status code is 4xx or
// 5xx, and nil otherwise.
func (r *Response) RaiseForStatus() error {
	var class string
	switch {
	case 400 <= r.StatusCode && r.StatusCode < 500:
		class = "Client Error"
	case 500 <= r.StatusCode && r.StatusCode < 600:
		class = "Server Error"
	default:
		return nil
	}
	return &HTTPError{
		Response: r,
		msg:      fmt.Sprintf("%d %s: %s for url: %s", r.StatusCode, class, r.Reason, r.urlString()),
	}
}

// IsRedirect reports whether the response is a redirect which may be
// followed: a 301, 302, 303, 307, or 308 with a Location header.
func (r *Response) IsRedirect() bool {
	return r.Header.Get("Location") != "" && IsRedirectStatus(r.StatusCode)
}

// IsPermanentRedirect reports whether the response is a 301 or 308
// with a Location header.
func (r *Response) IsPermanentRedirect() bool {
	return r.Header.Get("Location") != "" && IsPermanentRedirectStatus(r.StatusCode)
}

// IsRedirectStatus reports whether code is a redirect status a
// session follows.
func IsRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// IsPermanentRedirectStatus reports whether code is 301 or 308.
func IsPermanentRedirectStatus(code int) bool {
	return code == http.StatusMovedPermanently || code == http.StatusPermanentRedirect
}

func (r *Response) urlString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// A Link is one link of a Link header.
type Link struct {
	URL    string
	Params map[string]string
}

// Links parses the Link headers of the response. Links are keyed by
// their rel parameter, or by URL when they have none.
func (r *Response) Links() map[string]Link {
	links := make(map[string]Link)
	for _, v := range r.Header.Values("Link") {
		for _, l := range ParseLinks(v) {
			key := l.Params["rel"]
			if key == "" {
				key = l.URL
			}
			links[key] = l
		}
	}
	return links
}

// ParseLinks parses a Link header value such as
// `<http://x/a>; rel="next", <http://x/b>; rel="last"`.
func ParseLinks(v string) []Link {
	var links []Link
	v = strings.TrimSpace(v)
	for v != "" {
		var raw string
		raw, v = splitLink(v)
		parts := strings.Split(raw, ";")
		u := strings.Trim(strings.TrimSpace(parts[0]), "<> '\"")
		if u == "" {
			continue
		}
		l := Link{URL: u, Params: make(map[string]string)}
		for _, p := range parts[1:] {
			k, val, ok := strings.Cut(p, "=")
			if !ok {
				continue
			}
			k = strings.ToLower(strings.TrimSpace(k))
			l.Params[k] = strings.Trim(strings.TrimSpace(val), `'"`)
		}
		links = append(links, l)
	}
	return links
}

// splitLink splits the first link from a Link header value. Commas
// inside the angle-bracketed URL do not split.
func splitLink(v string) (string, string) {
	inURL, inQuote := false, false
	for i := 0; i < len(v); i++ {
		switch c := v[i]; {
		case c == '<' && !inQuote:
			inURL = true
		case c == '>' && !inQuote:
			inURL = false
		case c == '"' && !inURL:
			inQuote = !inQuote
		case c == ',' && !inURL && !inQuote:
			return strings.TrimSpace(v[:i]), strings.TrimSpace(v[i+1:])
		}
	}
	return v, ""
}

// An HTTPError is returned by RaiseForStatus for a 4xx or 5xx
// response. It matches errs.HTTP under errors.Is.
type HTTPError struct {
	Response *Response
	msg      string
}

func (e *HTTPError) Error() string {
	return e.msg
}

// Is reports whether target is errs.HTTP or one of its ancestors.
func (e *HTTPError) Is(target error) bool {
	return errs.HTTP.Is(target)
}
