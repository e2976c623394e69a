// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

// An Authenticator attaches credentials to a prepared request.
//
// Apply is always the last preparation step, so it sees the final
// method, URL, headers, and body and may rewrite any of them. It is
// applied again to the rebuilt request of every redirect hop which
// keeps authentication, so it must be safe to apply repeatedly.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
type Authenticator interface {
	Apply(p *Prepared) error
}

// The AuthenticatorFunc type is an adapter to allow the use of
// ordinary functions as authenticators.
type AuthenticatorFunc func(p *Prepared) error

// Apply calls f(p).
func (f AuthenticatorFunc) Apply(p *Prepared) error {
	return f(p)
}

// A Challenger is an Authenticator which can answer an authentication
// challenge, such as a 401 response carrying a WWW-Authenticate header.
//
// After each hop, a session offers the response to the Challenger of
// the request which produced it. If Challenge returns a non-nil
// request, the session sends it in place of the hop's response, and
// records the challenge response in the history. A nil request with a
// nil error means the response is not a challenge the Challenger can
// answer.
//
// A session offers at most one challenge per hop.
type Challenger interface {
	Authenticator
	Challenge(p *Prepared, r *Response) (*Prepared, error)
}
