// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry provides flexible policies for retrying failed attempts
// while an adapter sends a request, and how long to wait before
// retrying.
//
// The interface Policy defines a retry Policy. A Policy instance can be
// constructed using NewPolicy by providing a decision-maker, Decider,
// and a wait time calculator, Waiter. Both Decider and Waiter have
// constructors for common use cases, so that a useful policy can be
// quickly assembled:
//
//	decider := retry.Times(3).
//		And(retry.Before(5 * time.Second)).
//		And(retry.Safe.Or(retry.Idempotent.And(retry.StatusCode(500))))
//	waiter := retry.RetryAfter(
//		retry.NewBackoff(100*time.Millisecond, 2*time.Second, 10*time.Millisecond),
//		30*time.Second)
//	policy := retry.NewPolicy(decider, waiter)
//
// Retrying a request which the server may already have acted on can
// duplicate its side effects. The Safe decider only allows retries
// which cannot: failures before any byte was sent, and connection
// failures of idempotent requests. MaxRetries builds the policy an
// adapter uses from a plain retry count on top of Safe.
//
// Waits grow exponentially from an immediate first retry, and a
// Retry-After header on a 413, 429, or 503 response takes precedence
// over the computed backoff.
//
// If the built-in functionality is insufficient, fully custom retry
// policies can be created by via custom implementations of Decider,
// Waiter, or Policy.
package retry
