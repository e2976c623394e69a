// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gogama/requests/request"
	"github.com/stretchr/testify/assert"
)

func TestDefaultWaiter(t *testing.T) {
	want := []time.Duration{
		0,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		3200 * time.Millisecond,
		6400 * time.Millisecond,
		10 * time.Second,
		10 * time.Second,
	}
	for i := range want {
		assert.Equal(t, want[i], DefaultWaiter.Wait(&request.Execution{Attempt: i}), "attempt %d", i)
	}

	e := &request.Execution{
		Attempt:  1,
		Response: &request.Response{StatusCode: 429, Header: http.Header{"Retry-After": {"3"}}},
	}
	assert.Equal(t, 3*time.Second, DefaultWaiter.Wait(e))
}

func TestNewBackoff(t *testing.T) {
	factor, max := time.Millisecond, time.Hour
	t.Run("invalid", func(t *testing.T) {
		assert.PanicsWithValue(t, "requests/retry: backoff factor must not be negative", func() {
			NewBackoff(-1, max, 0)
		})
		assert.PanicsWithValue(t, "requests/retry: max must be at least the backoff factor", func() {
			NewBackoff(2, 1, 0)
		})
		assert.PanicsWithValue(t, "requests/retry: jitter must not be negative", func() {
			NewBackoff(factor, max, -1)
		})
	})
	t.Run("no jitter", func(t *testing.T) {
		w := NewBackoff(factor, max, 0)
		assert.Equal(t, time.Duration(0), w.Wait(&request.Execution{Attempt: 0}))
		for i := 1; i < 20; i++ {
			assert.Equal(t, time.Duration(1<<i)*time.Millisecond, w.Wait(&request.Execution{Attempt: i}), "attempt %d", i)
		}
		assert.Equal(t, max, w.Wait(&request.Execution{Attempt: 25}))
		assert.Equal(t, max, w.Wait(&request.Execution{Attempt: 61}))
		assert.Equal(t, max, w.Wait(&request.Execution{Attempt: 1000}))
		assert.Equal(t, max, w.Wait(&request.Execution{Attempt: math.MaxInt}))
	})
	t.Run("zero factor", func(t *testing.T) {
		w := NewBackoff(0, 0, 0)
		for i := 0; i < 5; i++ {
			assert.Equal(t, time.Duration(0), w.Wait(&request.Execution{Attempt: i}))
		}
	})
	t.Run("with jitter", func(t *testing.T) {
		jitter := 5 * time.Millisecond
		w := NewBackoff(factor, max, jitter)
		for i := 0; i < 100; i++ {
			for attempt := 0; attempt < 5; attempt++ {
				base := NewBackoff(factor, max, 0).Wait(&request.Execution{Attempt: attempt})
				d := w.Wait(&request.Execution{Attempt: attempt})
				assert.GreaterOrEqual(t, d, base)
				assert.Less(t, d, base+jitter)
			}
		}
	})
	t.Run("concurrent", func(t *testing.T) {
		w := NewBackoff(factor, 10*time.Millisecond, time.Millisecond)
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for attempt := 0; attempt < 10; attempt++ {
					d := w.Wait(&request.Execution{Attempt: attempt})
					assert.GreaterOrEqual(t, d, time.Duration(0))
					assert.Less(t, d, 11*time.Millisecond)
				}
			}()
		}
		wg.Wait()
	})
}

func TestRetryAfter(t *testing.T) {
	fallback := NewFixedWaiter(42 * time.Millisecond)
	w := RetryAfter(fallback, time.Minute)

	t.Run("invalid", func(t *testing.T) {
		assert.PanicsWithValue(t, "requests/retry: nil waiter", func() {
			RetryAfter(nil, time.Second)
		})
		assert.PanicsWithValue(t, "requests/retry: Retry-After max must be positive", func() {
			RetryAfter(fallback, 0)
		})
	})

	testCases := []struct {
		name   string
		status int
		header string
		want   time.Duration
	}{
		{"seconds 503", 503, "2", 2 * time.Second},
		{"seconds 429", 429, "0", 0},
		{"seconds 413", 413, "5", 5 * time.Second},
		{"capped", 503, "3600", time.Minute},
		{"past date", 503, "Wed, 21 Oct 2015 07:28:00 GMT", 0},
		{"malformed", 503, "soon", 42 * time.Millisecond},
		{"negative", 503, "-1", 42 * time.Millisecond},
		{"missing", 503, "", 42 * time.Millisecond},
		{"other status", 500, "2", 42 * time.Millisecond},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			h := http.Header{}
			if testCase.header != "" {
				h.Set("Retry-After", testCase.header)
			}
			e := &request.Execution{Response: &request.Response{StatusCode: testCase.status, Header: h}}
			assert.Equal(t, testCase.want, w.Wait(e))
		})
	}
	t.Run("error", func(t *testing.T) {
		assert.Equal(t, 42*time.Millisecond, w.Wait(&request.Execution{}))
	})
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2015, 10, 21, 7, 28, 0, 0, time.UTC)
	d, ok := ParseRetryAfter("Wed, 21 Oct 2015 07:28:30 GMT", now)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, d)

	d, ok = ParseRetryAfter(" 120 ", now)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Minute, d)

	d, ok = ParseRetryAfter("99999999999999999", now)
	assert.True(t, ok)
	assert.Equal(t, time.Duration(math.MaxInt64), d)

	_, ok = ParseRetryAfter("", now)
	assert.False(t, ok)
}

func TestNewFixedWaiter(t *testing.T) {
	w := NewFixedWaiter(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, w.Wait(&request.Execution{}))
	assert.Equal(t, 250*time.Millisecond, w.Wait(&request.Execution{Attempt: 10}))
}
