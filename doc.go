// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package requests provides an HTTP client for humans: it prepares
requests, sends them over pooled connections, and follows redirects,
persists cookies, and answers authentication challenges on the way.

For one-off requests use the top-level functions, which each run on a
temporary Session.

	r, err := requests.Get("https://www.example.com",
		requests.WithParam("q", "golang"))
	...
	r, err := requests.Post("https://www.example.com/upload",
		requests.WithJSON(map[string]any{"key": "value"}))
	...
	r, err := requests.Post("http://example.com/form",
		requests.WithForm(url.Values{"key": {"Value"}, "id": {"123"}}))

Create a Session to share headers, cookies, authentication, and
connections across requests.

	s := requests.NewSession()
	defer s.Close()
	s.Auth = &auth.Basic{Username: "user", Password: "secret"}
	s.Header.Set("X-Team", "gophers")
	r, err := s.Get("https://api.example.com/widgets")

Per-call options take precedence over the Session's settings. Headers
and query parameters merge key by key; an empty header value removes
the Session's header from one request.

	r, err := s.Get("https://api.example.com/widgets",
		requests.WithHeader("Accept", "application/json"),
		requests.WithTimeout(timeout.Pair(3*time.Second, 10*time.Second)))

For control over connection pooling and retries, mount a custom
adapter from package adapter:

	a := adapter.New(
		adapter.WithPoolMaxSize(50),
		adapter.WithMaxRetries(3))
	s.Mount("https://api.example.com/", a)

Adapters are selected by the longest matching URL prefix, so an
adapter may serve one host, one scheme, or a scheme no other adapter
understands.

To inspect or replace responses, install hooks. Session hooks run on
the response of every hop before per-call hooks:

	s.Hooks = append(s.Hooks, request.HookFunc(
		func(r *request.Response) (*request.Response, error) {
			log.Printf("%d %s", r.StatusCode, r.URL)
			return nil, nil
		}))

Every error returned by the package can be classified with errors.Is
against the Err variables, which mirror the kinds in package errs:

	if errors.Is(err, requests.ErrTimeout) {
		...
	}

Package requests provides basic interfaces for each method of a Session
(Sender, Requester, Getter, Header, and Poster); a combined interface
that composes all the basic methods (Executor); and Inflate, which turns
any Sender into an Executor.
*/
package requests
