// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package adapter sends prepared requests over pooled connections.

An Adapter is the transport a Session dispatches requests to. The
HTTPAdapter implementation speaks HTTP/1.1 over TCP and TLS. It keeps a
pool of idle connections for each origin, applies the TLS verification
policy of each send, goes through HTTP, HTTPS, or SOCKS5 proxies, and
retries failed attempts according to a retry.Policy.

Retries never duplicate side effects by default: an attempt is retried
only if it failed before any byte was sent, or if its method is
idempotent and its body can be sent again.

Install event handlers with WithHandlers to observe or modify each
attempt. The events, in the order they occur, are listed by Events.
*/
package adapter
