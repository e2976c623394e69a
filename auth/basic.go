// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"github.com/gogama/requests/request"
)

// Basic is HTTP Basic authentication. It sets the Authorization header
// on every request, without waiting for a challenge.
//
// The username may contain a colon, since the header value is
// base64-encoded, but servers split at the first colon and so will
// misread it.
type Basic struct {
	Username string
	Password string
}

// Apply sets the Authorization header.
func (b *Basic) Apply(p *request.Prepared) error {
	p.SetBasicAuth(b.Username, b.Password)
	return nil
}

// Proxy is HTTP Basic authentication with a proxy. It sets the
// Proxy-Authorization header, and only when the request goes through a
// proxy.
type Proxy struct {
	Username string
	Password string
}

// Apply sets the Proxy-Authorization header if p.Proxy is set.
func (x *Proxy) Apply(p *request.Prepared) error {
	if p.Proxy == nil {
		return nil
	}
	p.Header.Set("Proxy-Authorization", request.BasicAuthHeader(x.Username, x.Password))
	return nil
}

// Bearer is bearer token authentication.
type Bearer struct {
	Token string
}

// Apply sets the Authorization header.
func (b *Bearer) Apply(p *request.Prepared) error {
	p.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// None removes any Authorization header. Use it on one call to opt
// out of a session's authentication, including credentials in the URL.
var None request.Authenticator = none{}

type none struct{}

func (none) Apply(p *request.Prepared) error {
	p.Header.Del("Authorization")
	return nil
}
