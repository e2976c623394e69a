// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package requests

import (
	"net/http"

	"github.com/gogama/requests/request"
)

// Request sends a request with a new Session, which is closed before
// Request returns. A streaming response stays readable after that, and
// must still be closed.
func Request(method, rawURL string, opts ...Option) (*request.Response, error) {
	s := NewSession()
	defer func() { _ = s.Close() }()
	return s.Request(method, rawURL, opts...)
}

// Get sends a GET request with a new Session, following redirects.
func Get(rawURL string, opts ...Option) (*request.Response, error) {
	return Request(http.MethodGet, rawURL, opts...)
}

// Options sends an OPTIONS request with a new Session, following
// redirects.
func Options(rawURL string, opts ...Option) (*request.Response, error) {
	return Request(http.MethodOptions, rawURL, opts...)
}

// Head sends a HEAD request with a new Session. Redirects are not
// followed unless WithAllowRedirects(true) is given.
func Head(rawURL string, opts ...Option) (*request.Response, error) {
	return Request(http.MethodHead, rawURL, append([]Option{WithAllowRedirects(false)}, opts...)...)
}

// Post sends a POST request with a new Session, following redirects.
func Post(rawURL string, opts ...Option) (*request.Response, error) {
	return Request(http.MethodPost, rawURL, opts...)
}

// Put sends a PUT request with a new Session, following redirects.
func Put(rawURL string, opts ...Option) (*request.Response, error) {
	return Request(http.MethodPut, rawURL, opts...)
}

// Patch sends a PATCH request with a new Session, following redirects.
func Patch(rawURL string, opts ...Option) (*request.Response, error) {
	return Request(http.MethodPatch, rawURL, opts...)
}

// Delete sends a DELETE request with a new Session, following
// redirects.
func Delete(rawURL string, opts ...Option) (*request.Response, error) {
	return Request(http.MethodDelete, rawURL, opts...)
}
