// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gogama/requests/request"
)

// A Waiter specifies how long to wait before retrying a failed request
// attempt.
//
// Implementations of Waiter must be safe for concurrent use by multiple
// goroutines.
//
// An adapter will not call the Waiter on a retry policy if the policy
// Decider returned false. When it does, the Execution holds the result
// of the attempt just made: Attempt is its zero-based number, and
// Response or Err its outcome.
type Waiter interface {
	Wait(e *request.Execution) time.Duration
}

// DefaultRetryAfterMax is the longest Retry-After wait DefaultWaiter
// honors.
const DefaultRetryAfterMax = 2 * time.Minute

// DefaultWaiter is the default retry wait policy. It honors the
// Retry-After header of a 413, 429, or 503 response for up to
// DefaultRetryAfterMax, and otherwise backs off exponentially with a
// factor of 100 milliseconds, waiting at most 10 seconds.
var DefaultWaiter = RetryAfter(NewBackoff(100*time.Millisecond, 10*time.Second, 0), DefaultRetryAfterMax)

// NewFixedWaiter constructs a Waiter that always returns the given
// duration.
func NewFixedWaiter(d time.Duration) Waiter {
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *request.Execution) time.Duration {
	return time.Duration(w)
}

// NewBackoff constructs a Waiter implementing exponential backoff.
//
// The first retry is immediate. Before the n-th retry after that the
// Waiter waits
//
//	min(factor * 2**(n-1), max) + rand[0, jitter)
//
// so a factor of 100 milliseconds waits 0, 200ms, 400ms, 800ms, and so
// on. The factor and jitter must not be negative, and max must be at
// least equal to factor.
func NewBackoff(factor, max, jitter time.Duration) Waiter {
	if factor < 0 {
		panic("requests/retry: backoff factor must not be negative")
	}
	if max < factor {
		panic("requests/retry: max must be at least the backoff factor")
	}
	if jitter < 0 {
		panic("requests/retry: jitter must not be negative")
	}
	return &backoff{factor: factor, max: max, jitter: jitter}
}

type backoff struct {
	factor time.Duration
	max    time.Duration
	jitter time.Duration
}

func (w *backoff) Wait(e *request.Execution) time.Duration {
	var d time.Duration
	if n := e.Attempt; n > 0 {
		d = w.max
		if n < 62 {
			if v := w.factor << n; v>>n == w.factor && v < w.max {
				d = v
			}
		}
	}
	if w.jitter > 0 {
		d += rand.N(w.jitter)
	}
	return d
}

// RetryAfter wraps a Waiter so that it honors the Retry-After header of
// a 413, 429, or 503 response. The header may give a number of seconds
// or an HTTP date. A wait longer than max is cut to max. When the
// response has no usable Retry-After header, or the attempt ended in an
// error, w decides the wait.
func RetryAfter(w Waiter, max time.Duration) Waiter {
	if w == nil {
		panic("requests/retry: nil waiter")
	}
	if max <= 0 {
		panic("requests/retry: Retry-After max must be positive")
	}
	return &retryAfter{next: w, max: max}
}

type retryAfter struct {
	next Waiter
	max  time.Duration
}

func (w *retryAfter) Wait(e *request.Execution) time.Duration {
	if r := e.Response; r != nil {
		switch r.StatusCode {
		case http.StatusRequestEntityTooLarge, http.StatusTooManyRequests, http.StatusServiceUnavailable:
			if d, ok := ParseRetryAfter(r.Header.Get("Retry-After"), time.Now()); ok {
				return min(d, w.max)
			}
		}
	}
	return w.next.Wait(e)
}

// ParseRetryAfter parses the value of a Retry-After header relative to
// now. A date in the past yields zero. It reports false if v is empty
// or malformed.
func ParseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		if secs > int64(1<<63-1)/int64(time.Second) {
			return time.Duration(1<<63 - 1), true
		}
		return time.Duration(secs) * time.Second, true
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	if d := t.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}
