// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package requests

import (
	"errors"

	"github.com/gogama/requests/errs"
	"github.com/gogama/requests/request"
)

// Error kinds, for use with errors.Is. See package errs for the
// hierarchy.
var (
	ErrRequest          = errs.Request
	ErrHTTP             = errs.HTTP
	ErrConnection       = errs.Connection
	ErrProxy            = errs.Proxy
	ErrSSL              = errs.SSL
	ErrTimeout          = errs.Timeout
	ErrConnectTimeout   = errs.ConnectTimeout
	ErrReadTimeout      = errs.ReadTimeout
	ErrURLRequired      = errs.URLRequired
	ErrTooManyRedirects = errs.TooManyRedirects
	ErrMissingSchema    = errs.MissingSchema
	ErrInvalidSchema    = errs.InvalidSchema
	ErrInvalidURL       = errs.InvalidURL
	ErrInvalidProxyURL  = errs.InvalidProxyURL
	ErrInvalidHeader    = errs.InvalidHeader
	ErrInvalidRequest   = errs.InvalidRequest
	ErrInvalidJSON      = errs.InvalidJSON
	ErrChunkedEncoding  = errs.ChunkedEncoding
	ErrContentDecoding  = errs.ContentDecoding
	ErrStreamConsumed   = errs.StreamConsumed
	ErrRetry            = errs.Retry
	ErrUnrewindableBody = errs.UnrewindableBody
)

// A TooManyRedirectsError is returned when a call receives
// Session.MaxRedirects redirects. History holds the redirect
// responses, oldest first, with their bodies read.
type TooManyRedirectsError struct {
	Err     *errs.Error
	History []*request.Response
}

func (e *TooManyRedirectsError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying *errs.Error, whose Kind is
// errs.TooManyRedirects.
func (e *TooManyRedirectsError) Unwrap() error {
	return e.Err
}

func (e *TooManyRedirectsError) Is(target error) bool {
	return e.Err.Is(target)
}

// Response returns the last redirect response, or nil.
func (e *TooManyRedirectsError) Response() *request.Response {
	if len(e.History) == 0 {
		return nil
	}
	return e.History[len(e.History)-1]
}

// withOp fills in the operation and URL of an *errs.Error, or wraps
// any other error as a Request error.
func withOp(err error, op, u string) error {
	var ee *errs.Error
	if errors.As(err, &ee) {
		if ee.Op == "" {
			ee.Op = op
		}
		if ee.URL == "" {
			ee.URL = u
		}
		return err
	}
	return errs.New(errs.Request, op, u, err)
}
