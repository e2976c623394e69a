// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package adapter

// An Event identifies the event type when installing or running a
// Handler. Install event handlers in an HTTPAdapter to extend it with
// custom functionality.
type Event int

const (
	// BeforeExecutionStart identifies the event that occurs before the
	// execution of a Send starts.
	//
	// When HTTPAdapter fires BeforeExecutionStart, the execution is
	// non-nil but the only field that has been set is the prepared
	// request.
	BeforeExecutionStart Event = iota
	// BeforeAttempt identifies the event that occurs before each
	// individual HTTP request attempt, once a connection has been
	// acquired.
	//
	// When HTTPAdapter fires BeforeAttempt, the execution's request
	// field is set to the wire request that WILL BE written after all
	// BeforeAttempt handlers have finished. Its Reused field tells
	// whether the connection came from the idle pool.
	//
	// BeforeAttempt handlers may modify the execution's request, for
	// example to sign it. They should clone the request's Header
	// before changing it, as it initially references the header of the
	// prepared request.
	BeforeAttempt
	// BeforeReadBody identifies the event that occurs after an HTTP
	// request attempt has resulted in response headers (as opposed to
	// an error) but before the response body is read and buffered.
	//
	// BeforeReadBody fires regardless of the status code, and also
	// fires for streaming sends, in which case the body is not read by
	// the adapter at all.
	BeforeReadBody
	// AfterAttemptTimeout identifies the event that occurs after an
	// HTTP request attempt failed because of a timeout error.
	//
	// When HTTPAdapter fires AfterAttemptTimeout, the execution's
	// error field is set to the timeout error, and its attempt timeout
	// counter has been incremented.
	AfterAttemptTimeout
	// AfterAttempt identifies the event that occurs after an HTTP
	// request attempt is concluded, regardless of whether it concluded
	// successfully or not.
	//
	// When HTTPAdapter fires AfterAttempt, either the execution's
	// response field or its error field OR BOTH may be set to non-nil
	// values, but never both nil. The response is only non-nil when
	// the error is also non-nil if reading the response body failed.
	//
	// AfterAttempt runs before the retry policy is consulted.
	AfterAttempt
	// AfterExecutionTimeout identifies the event that occurs after the
	// deadline of the prepared request's context is exceeded, as
	// opposed to the timeout of a single attempt. It can be detected
	// at the same time as an attempt timeout, or during the retry wait.
	//
	// AfterExecutionTimeout always occurs after AfterAttempt.
	AfterExecutionTimeout
	// AfterExecutionEnd identifies the event that occurs after the
	// execution ends.
	//
	// When HTTPAdapter fires AfterExecutionEnd, the execution is in
	// the same state it was in after the final attempt EXCEPT that the
	// end time is set.
	AfterExecutionEnd
	// eventSentinel provides the total number of events typed as an
	// Event.
	eventSentinel

	// numEvents provides the total number of events types as an int.
	numEvents = int(eventSentinel)
)

var eventNames = []string{
	"BeforeExecutionStart",
	"BeforeAttempt",
	"BeforeReadBody",
	"AfterAttemptTimeout",
	"AfterAttempt",
	"AfterExecutionTimeout",
	"AfterExecutionEnd",
}

// Events returns a slice containing all events which can occur during
// a Send by HTTPAdapter, in the order in which they would occur.
func Events() []Event {
	return []Event{
		BeforeExecutionStart,
		BeforeAttempt,
		BeforeReadBody,
		AfterAttemptTimeout,
		AfterAttempt,
		AfterExecutionTimeout,
		AfterExecutionEnd,
	}
}

// Name returns the name of the event.
func (evt Event) Name() string {
	return eventNames[int(evt)]
}

// String returns the name of the event.
func (evt Event) String() string {
	return evt.Name()
}
