// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package requests

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gogama/requests/adapter"
	"github.com/gogama/requests/request"
	"github.com/gogama/requests/timeout"
)

// An Option sets one per-call setting of a request. Per-call settings
// take precedence over the settings of the Session.
type Option func(*options)

type options struct {
	header         http.Header
	params         url.Values
	data           any
	json           any
	files          []request.File
	cookies        map[string]string
	auth           request.Authenticator
	hooks          []request.Hook
	proxies        adapter.Proxies
	timeout        timeout.Policy
	allowRedirects *bool
	stream         *bool
	verify         *adapter.Verify
	cert           *adapter.Cert
	ctx            context.Context
}

func collect(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithHeader sets one request header, replacing the same header of the
// Session. An empty value removes the Session's header from the
// request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.header == nil {
			o.header = make(http.Header)
		}
		k := http.CanonicalHeaderKey(key)
		if value == "" {
			o.header[k] = nil
		} else {
			o.header[k] = []string{value}
		}
	}
}

// WithHeaders sets request headers. Each key replaces the same key of
// the Session's headers; a key with a nil value removes it.
func WithHeaders(h http.Header) Option {
	return func(o *options) {
		if o.header == nil {
			o.header = make(http.Header, len(h))
		}
		for k, vs := range h {
			o.header[http.CanonicalHeaderKey(k)] = vs
		}
	}
}

// WithParams adds query parameters. Each key replaces the same key of
// the Session's parameters.
func WithParams(v url.Values) Option {
	return func(o *options) {
		if o.params == nil {
			o.params = make(url.Values, len(v))
		}
		for k, vs := range v {
			o.params[k] = vs
		}
	}
}

// WithParam adds one query parameter.
func WithParam(key, value string) Option {
	return func(o *options) {
		if o.params == nil {
			o.params = make(url.Values)
		}
		o.params.Add(key, value)
	}
}

// WithData sets the request body. See request.Params.Data for the
// accepted types.
func WithData(data any) Option {
	return func(o *options) {
		o.data = data
	}
}

// WithForm sets a form-encoded request body.
func WithForm(form url.Values) Option {
	return WithData(form)
}

// WithJSON sets a JSON request body, which takes precedence over data
// and files.
func WithJSON(v any) Option {
	return func(o *options) {
		o.json = v
	}
}

// WithFiles sets the files of a multipart/form-data body. Form fields
// given with WithData or WithForm become extra parts.
func WithFiles(files ...request.File) Option {
	return func(o *options) {
		o.files = append(o.files, files...)
	}
}

// WithCookies sends cookies with the request, overriding Session
// cookies of the same name. The Session's jar is not changed.
func WithCookies(c map[string]string) Option {
	return func(o *options) {
		if o.cookies == nil {
			o.cookies = make(map[string]string, len(c))
		}
		for k, v := range c {
			o.cookies[k] = v
		}
	}
}

// WithAuth sets the authentication strategy of the request, replacing
// the Session's. Use auth.None to send no credentials.
func WithAuth(a request.Authenticator) Option {
	return func(o *options) {
		o.auth = a
	}
}

// WithHooks adds response hooks, which run after the Session's hooks.
func WithHooks(hooks ...request.Hook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// WithProxies adds proxies, replacing Session proxies with the same
// key.
func WithProxies(p adapter.Proxies) Option {
	return func(o *options) {
		o.proxies = o.proxies.Merge(p)
	}
}

// WithTimeout sets the timeout policy of each attempt.
func WithTimeout(p timeout.Policy) Option {
	return func(o *options) {
		o.timeout = p
	}
}

// WithAllowRedirects sets whether redirects are followed.
func WithAllowRedirects(allow bool) Option {
	return func(o *options) {
		o.allowRedirects = &allow
	}
}

// WithStream sets whether the response body is left unread. A
// streaming response must be closed or read to the end.
func WithStream(stream bool) Option {
	return func(o *options) {
		o.stream = &stream
	}
}

// WithVerify sets the TLS verification policy.
func WithVerify(v adapter.Verify) Option {
	return func(o *options) {
		o.verify = &v
	}
}

// WithCert sets the client certificate.
func WithCert(c adapter.Cert) Option {
	return func(o *options) {
		o.cert = &c
	}
}

// WithContext sets the request context. Its deadline bounds the whole
// call, including redirects and retries.
func WithContext(ctx context.Context) Option {
	if ctx == nil {
		panic("requests: nil context")
	}
	return func(o *options) {
		o.ctx = ctx
	}
}
