// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package auth provides the built-in authentication strategies: Basic,
Digest, Proxy, Bearer, and None. Each is a request.Authenticator, which
a session applies as the last step of preparing every request:

	s := requests.NewSession()
	s.Auth = &auth.Basic{Username: "gopher", Password: "secret"}

Digest is also a request.Challenger. Its first request carries no
credentials. When the server answers with a 401 and a Digest challenge,
the session asks Digest to answer it, and resends the request with an
Authorization header computed from the challenge. Once a challenge is
known, later requests carry credentials from the start.
*/
package auth
