// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/gogama/requests/request"
)

// A Policy controls if and how retries are done while an adapter sends
// a request. In particular, after every attempt, a Policy decides
// whether a retry should be done and, if so, how long the wait period
// should be before retrying the attempt.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
//
// A Policy is composed of the Decider and Waiter interfaces. While you
// can implement Policy yourself, it may be more efficient to use one
// of the built-in retry policies, DefaultPolicy or Never, or to construct
// your policy using NewPolicy or MaxRetries.
type Policy interface {
	Decider
	Waiter
}

// DefaultPolicy is a general-purpose retry policy suitable for common
// use cases. It is a composition of DefaultDecider for retry decisions
// and DefaultWaiter for wait time calculations.
var DefaultPolicy Policy = policy{DefaultDecider, DefaultWaiter}

// Never is a policy that never retries. It is the policy of an adapter
// whose maximum retry count is zero.
var Never Policy = policy{Times(0), DefaultWaiter}

type policy struct {
	decider Decider
	waiter  Waiter
}

// NewPolicy composes a Decider and a Waiter into a retry Policy.
func NewPolicy(d Decider, w Waiter) Policy {
	if d == nil {
		panic("requests/retry: nil decider")
	}
	if w == nil {
		panic("requests/retry: nil waiter")
	}
	return policy{decider: d, waiter: w}
}

// MaxRetries constructs the retry policy of an adapter configured to
// retry up to n times. It retries only when Safe allows it. If
// statuses are given, an idempotent request receiving one of them is
// also retried. Waits follow DefaultWaiter.
//
// If n is zero or less, MaxRetries returns Never.
func MaxRetries(n int, statuses ...int) Policy {
	if n <= 0 {
		return Never
	}
	d := Safe
	if len(statuses) > 0 {
		d = d.Or(Replayable.And(Idempotent).And(StatusCode(statuses...)))
	}
	return policy{Times(n).And(d), DefaultWaiter}
}

func (p policy) Decide(e *request.Execution) bool {
	return p.decider.Decide(e)
}

func (p policy) Wait(e *request.Execution) time.Duration {
	return p.waiter.Wait(e)
}
