// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package requests

import (
	"io"
	"net/http"

	"github.com/gogama/requests/cookies"
	"github.com/gogama/requests/request"
)

// Sender is the interface that wraps the basic Send method.
//
// Send sends a prepared request and returns the final response (or
// error). Session implements the Sender interface, and any other
// Sender implementation must behave substantially the same as
// Session.Send.
//
// Any Sender can be converted into an Executor via the Inflate
// function.
type Sender interface {
	Send(p *request.Prepared, opts ...Option) (*request.Response, error)
}

// Requester is the interface that wraps the basic Request method.
//
// Request prepares a request with the given method and URL, sends it,
// and returns the final response (or error). Session implements the
// Requester interface, and any other Requester implementation must
// behave substantially the same as Session.Request.
type Requester interface {
	Request(method, url string, opts ...Option) (*request.Response, error)
}

// Getter is the interface that wraps the basic Get method.
//
// Get sends a GET to the specified URL. Session implements the Getter
// interface, and any other Getter implementation must behave
// substantially the same as Session.Get.
type Getter interface {
	Get(url string, opts ...Option) (*request.Response, error)
}

// Header is the interface that wraps the basic Head method.
//
// Head sends a HEAD to the specified URL without following redirects.
// Session implements the Header interface, and any other Header
// implementation must behave substantially the same as Session.Head.
type Header interface {
	Head(url string, opts ...Option) (*request.Response, error)
}

// Poster is the interface that wraps the basic Post method.
//
// Post sends a POST to the specified URL. Session implements the
// Poster interface, and any other Poster implementation must behave
// substantially the same as Session.Post.
type Poster interface {
	Post(url string, opts ...Option) (*request.Response, error)
}

// Executor is the interface that groups the basic Send, Request, Get,
// Head, Post, and Close methods.
//
// Any Sender can be converted into an Executor via the Inflate
// function.
type Executor interface {
	Sender
	Requester
	Getter
	Header
	Poster
	io.Closer
}

// Inflate converts any non-nil Sender into an Executor. This may be
// helpful for interop across library boundaries, i.e. if code that only
// has access to a Sender needs to call a function that requires an
// Executor.
//
// The Request method of an inflated Sender prepares requests from the
// per-call options alone, since a Sender has no session defaults. If
// the Sender is not an io.Closer, Close does nothing.
func Inflate(s Sender) Executor {
	if s == nil {
		panic("requests: nil sender")
	}

	if e, ok := s.(Executor); ok {
		return e
	}

	return inflated{s}
}

type inflated struct {
	sender Sender
}

func (i inflated) Send(p *request.Prepared, opts ...Option) (*request.Response, error) {
	return i.sender.Send(p, opts...)
}

func (i inflated) Request(method, url string, opts ...Option) (*request.Response, error) {
	o := collect(opts)
	var jar *cookies.Jar
	if len(o.cookies) > 0 {
		jar = cookies.New()
		jar.Update(o.cookies)
	}
	p, err := request.Prepare(method, url, request.Params{
		Header:  o.header,
		Params:  o.params,
		Data:    o.data,
		Files:   o.files,
		JSON:    o.json,
		Auth:    o.auth,
		Cookies: jar,
		Hooks:   o.hooks,
		Context: o.ctx,
	})
	if err != nil {
		return nil, err
	}
	return i.sender.Send(p, opts...)
}

func (i inflated) Get(url string, opts ...Option) (*request.Response, error) {
	return i.Request(http.MethodGet, url, opts...)
}

func (i inflated) Head(url string, opts ...Option) (*request.Response, error) {
	return i.Request(http.MethodHead, url, append([]Option{WithAllowRedirects(false)}, opts...)...)
}

func (i inflated) Post(url string, opts ...Option) (*request.Response, error) {
	return i.Request(http.MethodPost, url, opts...)
}

func (i inflated) Close() error {
	if c, ok := i.sender.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
