// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/gogama/requests/cookies"
	"github.com/gogama/requests/errs"
)

// Params holds the optional inputs to Prepare. The zero value prepares
// a request with no headers, no body, and no authentication.
type Params struct {
	// Header holds the request headers. Keys are matched
	// case-insensitively. Every name and value is validated.
	Header http.Header

	// Params holds query parameters, which are appended to the URL's
	// existing query string.
	Params url.Values

	// Data is the request body when neither JSON nor Files is set. It
	// may be a string, a []byte, a *Body, or an io.Reader, which are
	// sent verbatim; or url.Values or map[string]string, which are
	// form-encoded. When Files is set, Data may only hold form fields,
	// which become extra parts of the multipart body.
	Data any

	// Files holds the files of a multipart/form-data body.
	Files []File

	// JSON, if not nil, is encoded as the request body and forces the
	// Content-Type header to "application/json". It takes precedence
	// over Data and Files.
	JSON any

	// Auth is the authentication strategy. If it is nil and the URL
	// carries userinfo, Basic authentication with those credentials is
	// used instead.
	Auth Authenticator

	// Cookies is rendered into the Cookie header, unless Header already
	// contains one.
	Cookies *cookies.Jar

	// Hooks are the response hooks of the request.
	Hooks []Hook

	// Proxy is the proxy selected for the URL, if any. It is visible to
	// Auth, which lets proxy authentication apply only when a proxy is
	// in use.
	Proxy *url.URL

	// Schemes lists the URL schemes to accept. If empty, DefaultSchemes
	// is used.
	Schemes []string

	// Context is the request context. If nil, context.Background is
	// used.
	Context context.Context
}

// Prepared is an HTTP request ready to be sent.
//
// A Prepared request is built by Prepare and is not modified
// afterward, except by the explicit rebuild steps a session takes when
// it follows a redirect. Rebuild steps always act on a Copy.
type Prepared struct {
	// Method is the upper-case request method.
	Method string

	// URL is the absolute request URL, with query parameters applied
	// and userinfo removed. Its fragment, if any, is never sent.
	URL *url.URL

	// Header holds the request headers in canonical form.
	Header http.Header

	// Body is the request body. A nil Body means no body.
	Body *Body

	// Hooks are the response hooks run on each hop.
	Hooks []Hook

	// Cookies is the jar the Cookie header was rendered from. It may
	// be nil.
	Cookies *cookies.Jar

	// Proxy is the proxy selected for URL, or nil for a direct
	// connection.
	Proxy *url.URL

	// Auth is the authentication strategy applied while preparing the
	// request, or nil.
	Auth Authenticator

	ctx context.Context
}

// Prepare builds a Prepared request.
//
// The method is upper-cased and must be a valid token. The URL must be
// absolute, with a scheme from p.Schemes and a host. Preparation then
// validates headers, renders cookies, encodes the body, sets the
// Content-Length or Transfer-Encoding header, and finally applies
// authentication.
//
// Every error returned has type *errs.Error.
func Prepare(method, rawURL string, p Params) (*Prepared, error) {
	m, err := prepareMethod(method)
	if err != nil {
		return nil, err
	}
	var params string
	if len(p.Params) > 0 {
		params = p.Params.Encode()
	}
	u, user, err := prepareURL(rawURL, params, p.Schemes)
	if err != nil {
		err.(*errs.Error).Op = errs.Op(m)
		return nil, err
	}
	if err = ValidateHeader(p.Header); err != nil {
		return nil, err
	}

	r := &Prepared{
		Method: m,
		URL:    u,
		Header: MergeHeaders(nil, p.Header),
		Hooks:  append([]Hook(nil), p.Hooks...),
		Proxy:  p.Proxy,
		ctx:    p.Context,
	}
	r.PrepareCookies(p.Cookies)
	if err = r.prepareBody(p); err != nil {
		return nil, err
	}
	r.prepareContentLength()

	a := p.Auth
	if a == nil && user != nil {
		pass, _ := user.Password()
		name := user.Username()
		a = AuthenticatorFunc(func(p *Prepared) error {
			p.SetBasicAuth(name, pass)
			return nil
		})
	}
	if err = r.PrepareAuth(a); err != nil {
		return nil, err
	}
	return r, nil
}

// Context returns the request context. It is never nil.
func (p *Prepared) Context() context.Context {
	if p.ctx != nil {
		return p.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of p with its context changed to
// ctx.
func (p *Prepared) WithContext(ctx context.Context) *Prepared {
	if ctx == nil {
		panic("requests/request: nil context")
	}
	p2 := *p
	p2.ctx = ctx
	return &p2
}

// Copy returns a copy of p which can be modified without affecting p.
// The URL, headers, hooks, and cookie jar are copied. The body is
// shared, including its one-shot state.
func (p *Prepared) Copy() *Prepared {
	p2 := *p
	if p.URL != nil {
		u := *p.URL
		p2.URL = &u
	}
	if p.Proxy != nil {
		u := *p.Proxy
		p2.Proxy = &u
	}
	p2.Header = p.Header.Clone()
	p2.Hooks = append([]Hook(nil), p.Hooks...)
	if p.Cookies != nil {
		p2.Cookies = p.Cookies.Copy()
	}
	return &p2
}

// PathURL returns the request target sent on the request line: the
// escaped path and the query string.
func (p *Prepared) PathURL() string {
	s := p.URL.EscapedPath()
	if s == "" {
		s = "/"
	}
	if p.URL.RawQuery != "" {
		s += "?" + p.URL.RawQuery
	}
	return s
}

// SetBasicAuth sets the Authorization header to use HTTP Basic
// authentication with the given credentials.
func (p *Prepared) SetBasicAuth(username, password string) {
	p.Header.Set("Authorization", BasicAuthHeader(username, password))
}

// BasicAuthHeader returns the value of a Basic authentication header
// for username and password.
func BasicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// PrepareCookies renders the Cookie header from jar, and records jar
// as the request's cookie jar. An existing Cookie header is left
// unchanged.
func (p *Prepared) PrepareCookies(jar *cookies.Jar) {
	p.Cookies = jar
	if jar == nil || p.Header.Get("Cookie") != "" {
		return
	}
	if v := jar.Header(p.URL); v != "" {
		p.Header.Set("Cookie", v)
	}
}

// PrepareAuth applies a to p and records a as the request's
// authentication strategy. A nil a does nothing.
func (p *Prepared) PrepareAuth(a Authenticator) error {
	if a == nil {
		return nil
	}
	p.Auth = a
	err := a.Apply(p)
	if err == nil || errs.KindOf(err) != nil {
		return err
	}
	return errs.New(errs.Request, errs.Op(p.Method), p.URL.String(), err)
}

func (p *Prepared) prepareBody(params Params) error {
	if params.JSON != nil {
		b, err := json.Marshal(params.JSON)
		if err != nil {
			return errs.New(errs.InvalidJSON, errs.Op(p.Method), p.URL.String(), err)
		}
		p.Body = NewBody(b)
		p.Header.Set("Content-Type", "application/json")
		return nil
	}

	if len(params.Files) > 0 {
		fields, err := formFields(params.Data)
		if err != nil {
			return errs.New(errs.InvalidRequest, errs.Op(p.Method), p.URL.String(), err)
		}
		body, contentType, err := encodeMultipart(fields, params.Files)
		if err != nil {
			return errs.New(errs.InvalidRequest, errs.Op(p.Method), p.URL.String(), err)
		}
		p.Body = body
		p.Header.Set("Content-Type", contentType)
		return nil
	}

	switch d := params.Data.(type) {
	case nil:
	case string:
		if d != "" {
			p.Body = NewBody([]byte(d))
		}
	case []byte:
		if len(d) > 0 {
			p.Body = NewBody(d)
		}
	case *Body:
		p.Body = d
	case url.Values, map[string]string:
		fields, _ := formFields(d)
		if len(fields) == 0 {
			break
		}
		p.Body = NewBody([]byte(encodeForm(fields)))
		if p.Header.Get("Content-Type") == "" {
			p.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	case io.Reader:
		p.Body = NewReaderBody(d)
	default:
		return errs.Newf(errs.InvalidRequest, errs.Op(p.Method), p.URL.String(),
			fmt.Sprintf("unsupported data type %T", d))
	}
	return nil
}

func (p *Prepared) prepareContentLength() {
	switch n := p.Body.Len(); {
	case p.Body == nil:
		if p.Method != http.MethodGet && p.Method != http.MethodHead && p.Header.Get("Content-Length") == "" {
			p.Header.Set("Content-Length", "0")
		}
	case n >= 0:
		p.Header.Set("Content-Length", strconv.FormatInt(n, 10))
		p.Header.Del("Transfer-Encoding")
	default:
		p.Header.Set("Transfer-Encoding", "chunked")
		p.Header.Del("Content-Length")
	}
}

// DropBody removes the body and the headers describing it. A session
// calls DropBody when a redirect rewrites the method to GET.
func (p *Prepared) DropBody() {
	p.Body = nil
	for _, k := range []string{"Content-Length", "Content-Type", "Transfer-Encoding"} {
		p.Header.Del(k)
	}
}

type field struct {
	name, value string
}

// formFields flattens form data into fields in name order.
func formFields(data any) ([]field, error) {
	var fields []field
	switch d := data.(type) {
	case nil:
	case url.Values:
		names := make([]string, 0, len(d))
		for k := range d {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			for _, v := range d[k] {
				fields = append(fields, field{k, v})
			}
		}
	case map[string]string:
		names := make([]string, 0, len(d))
		for k := range d {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fields = append(fields, field{k, d[k]})
		}
	default:
		return nil, fmt.Errorf("form data must be url.Values or map[string]string, not %T", d)
	}
	return fields, nil
}

func encodeForm(fields []field) string {
	var b []byte
	for i, f := range fields {
		if i > 0 {
			b = append(b, '&')
		}
		b = append(b, url.QueryEscape(f.name)...)
		b = append(b, '=')
		b = append(b, url.QueryEscape(f.value)...)
	}
	return string(b)
}

var idempotent = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodTrace:   true,
}

// IsIdempotent reports whether method is safe to send more than once:
// GET, HEAD, OPTIONS, PUT, DELETE, and TRACE.
func IsIdempotent(method string) bool {
	return idempotent[method]
}
