// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"time"

	"github.com/gogama/requests/request"
)

// A Timeout holds the timeouts of one request attempt.
//
// Connect bounds establishing the connection, including the TLS
// handshake and any proxy tunnel. Read bounds the time between
// successive reads from the server: waiting for the response headers,
// and then waiting for each chunk of the body. A zero value means no
// limit.
type Timeout struct {
	Connect time.Duration
	Read    time.Duration
}

// IsZero reports whether t imposes no limit at all.
func (t Timeout) IsZero() bool {
	return t.Connect <= 0 && t.Read <= 0
}

// A Policy defines a timeout policy which may be plugged into an
// adapter to direct how to set the timeouts for the initial attempt,
// as well as for any subsequent retries.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	// Timeout returns the timeouts to set on the next request attempt
	// within the execution.
	//
	// Parameter e contains the current state of the execution.
	Timeout(e *request.Execution) Timeout
}

// Infinite is a built-in timeout policy which never times out. It is
// the policy used when no timeout is configured.
var Infinite Policy = policy{Timeout{}}

// DefaultPolicy is the default timeout policy, Infinite.
var DefaultPolicy = Infinite

// Fixed constructs a timeout policy that uses d as both the connect
// and the read timeout of every attempt.
//
// Use Fixed to create the typical timeout behavior supported by most
// HTTP client software.
func Fixed(d time.Duration) Policy {
	return policy{Timeout{Connect: d, Read: d}}
}

// Pair constructs a timeout policy that uses separate connect and read
// timeouts on every attempt.
func Pair(connect, read time.Duration) Policy {
	return policy{Timeout{Connect: connect, Read: read}}
}

// Adaptive constructs a timeout policy that varies the next timeout
// value if the previous attempt timed out.
//
// Use Adaptive if you find the remote service often exhibits one-off slow
// response times that can be cured by quickly timing out and retrying,
// but you also need to protect your application (and the remote service)
// from retry storms and failure if the remote service goes through a
// burst of slowness where most response times during the burst are
// slower than your usual quick timeout.
//
// Parameter usual represents the timeouts the policy will return for an
// initial attempt and for any retry where the immediately preceding
// attempt did not time out.
//
// Parameter after contains timeouts the policy will return if the
// previous attempt timed out. If this was the first timeout of the
// execution, after[0] is returned; if the second, after[1], and so on.
// If more attempts have timed out within the execution than after has
// elements, then the last element of after is returned.
//
// Consider the following timeout policy:
//
//	p := Adaptive(Timeout{Read: 200*time.Millisecond}, Timeout{Read: time.Second})
//
// The policy p will use 200 milliseconds as the usual read timeout but
// if the preceding attempt timed out, it will use 1 second.
func Adaptive(usual Timeout, after ...Timeout) Policy {
	p := make([]Timeout, 1, 1+len(after))
	p[0] = usual
	return policy(append(p, after...))
}

type policy []Timeout

func (p policy) Timeout(e *request.Execution) Timeout {
	if !e.Timeout() {
		return p[0]
	}

	i := e.AttemptTimeouts
	if i > len(p)-1 {
		i = len(p) - 1
	}

	return p[i]
}
