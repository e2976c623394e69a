// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package cookies provides Jar, an in-memory cookie store with RFC 6265
style domain and path matching.

A Jar is usually owned by a session and shared by every request the
session makes, but it can also be created for a single request. All
methods are safe for concurrent use.

Domain matching follows a simple rule. A cookie whose domain starts with
a dot, such as ".example.com", matches "example.com" and any sub-domain
of it. A cookie whose domain has no leading dot matches only that exact
host. Cookies absorbed from a Set-Cookie header without a Domain
attribute are bound to the exact request host. Path matching is by
segment prefix: a cookie with path "/a" matches "/a" and "/a/b" but not
"/ab".

Jar also satisfies the net/http CookieJar interface, so it may be
plugged into a standard http.Client.
*/
package cookies
