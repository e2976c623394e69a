// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package errs defines the error taxonomy shared by every package in the
module.

Each failure category is a Kind. Kinds form a small hierarchy rooted at
Request, so a caller can test for a broad category or a narrow one with
the standard errors.Is function:

	resp, err := s.Get(ctx, "https://example.com")
	if errors.Is(err, errs.Timeout) {
		// Matches both errs.ConnectTimeout and errs.ReadTimeout.
	}

Errors produced by the library are *Error values, which carry the Kind,
the operation and URL involved, and the underlying cause. The cause
stays reachable through errors.As, so lower-level details such as a
*net.OpError or an x509 verification error can still be inspected.
*/
package errs
