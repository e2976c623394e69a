// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the core types Prepared (a transmittable HTTP
request), Response (the result of sending one), and Execution (the state
of an adapter's attempt loop while it sends one Prepared request).

The first core type is Prepared. A Prepared request is built by Prepare
from a method, a URL, and a Params bundle of optional settings:

	p, err := request.Prepare("POST", "https://example.com/upload", request.Params{
		JSON: map[string]string{"name": "gopher"},
	})

Preparation normalises the method, validates and requotes the URL,
appends query parameters, validates headers, encodes the body, renders
the Cookie header, and finally runs the authentication strategy. Once
built, a Prepared request is not modified except by the explicit rebuild
steps a session performs when it follows a redirect. A session copies
the request before each rebuild so the history of a redirect chain
retains the request that produced each hop.

A request body is either replayable (buffered bytes, or a seekable
reader) or one-shot (a plain reader of unknown provenance). Resending a
request whose one-shot body has already been sent fails with an
errs.UnrewindableBody error.

The second core type is Response. A Response carries the status,
headers, and body of one hop, the elapsed time of that hop, the cookies
it set, and the history of earlier hops when redirects were followed.
Response bodies are either fully buffered or, for streaming requests,
read lazily.

The third core type is Execution, which represents the state of an
adapter's attempt loop. Execution is the input type for the retry and
timeout policies and for adapter event handlers. You will typically not
allocate Execution instances yourself.
*/
package request
