// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"net/http"
	"time"

	"github.com/gogama/requests/transient"
)

// An Execution represents the state of an adapter sending one Prepared
// request.
//
// When an adapter is asked to send a request, an Execution is created
// for it. The Execution is updated as the send progresses (for example
// when a connection is acquired, when the response headers arrive, or
// when a retry is needed) and its Response or Err is ultimately
// returned to the caller.
//
// Timeout and retry policies and adapter event handlers may set values
// on an Execution using its SetValue method and read them back using
// the Value method. However, they should treat the structure's exported
// field values as immutable, as the execution state is vital to the
// correct functioning of the adapter. Limited exceptions to this rule
// include making reasonable changes to the http.Request before it is
// written (for example, to support a request signing use case).
type Execution struct {
	// Prepared is the request being sent. It is never nil.
	Prepared *Prepared

	// Start is the start time of the execution. It is assigned a
	// non-zero value when the execution starts, and this value remains
	// constant thereafter.
	Start time.Time

	// End is the end time of the execution. It contains the zero value
	// until the execution ends, when it is set to the current time.
	End time.Time

	// Attempt is the zero-based number of the current attempt. It is
	// set to zero on the initial attempt, one on the first retry, and
	// so on.
	//
	// When the execution is ended, Attempt contains the zero-based
	// number of the last attempt made. So for example an execution that
	// ends after an initial attempt plus two retries will have an
	// attempt number of 2.
	Attempt int

	// AttemptTimeouts is the count of the number of times an attempt
	// timed out during the execution.
	AttemptTimeouts int

	// Request is the wire request of the current attempt, or of the
	// last attempt made.
	Request *http.Request

	// Response is the response received in the most recent attempt. It
	// is nil if the most recent attempt ended in an error, or if an
	// attempt is underway, or before the execution starts.
	Response *Response

	// Err is the error of the most recent attempt. It is nil if the
	// most recent attempt ended without an error, or if an attempt is
	// underway, or before the execution starts.
	//
	// Whenever Err is non-nil, it has the type *errs.Error.
	Err error

	// Sent is true once any byte of the current attempt's request has
	// been written to a connection. An attempt which fails before Sent
	// is set failed before the server could act on the request.
	Sent bool

	// Reused is true if the current attempt uses a connection taken
	// from the idle pool rather than a freshly dialled one.
	Reused bool

	data context.Context
}

// StatusCode returns the status code of the response from the most
// recent attempt. If there is no response, 0 is returned.
func (e *Execution) StatusCode() int {
	if e.Response == nil {
		return 0
	}

	return e.Response.StatusCode
}

// Header returns the response headers from the most recent attempt. If
// there is no response, the nil header is returned.
//
// Note that a nil return value is always safe for read-only operations,
// since http.Header is a map type.
func (e *Execution) Header() http.Header {
	if e.Response == nil {
		var nilHeader http.Header
		return nilHeader
	}

	return e.Response.Header
}

// Duration returns the duration of the execution.
//
// If the execution has not yet started, the duration is zero. If the
// execution has ended, the duration returned is equal to End minus
// Start. Otherwise, it is equal to the current time minus Start.
func (e *Execution) Duration() time.Duration {
	if !e.Started() {
		return time.Duration(0)
	} else if !e.Ended() {
		return time.Since(e.Start)
	}

	return e.End.Sub(e.Start)
}

// Started indicates whether the execution has started.
func (e *Execution) Started() bool {
	return e.Start != (time.Time{})
}

// Ended indicates whether the execution has ended. Once it has, there
// will be no further changes to the execution.
func (e *Execution) Ended() bool {
	return e.End != (time.Time{})
}

// Timeout indicates whether Err currently contains a non-nil value
// which indicates a timeout.
func (e *Execution) Timeout() bool {
	cat := transient.Categorize(e.Err)
	return cat == transient.Timeout
}

// Idempotent reports whether the request method is idempotent.
func (e *Execution) Idempotent() bool {
	return e.Prepared != nil && IsIdempotent(e.Prepared.Method)
}

// Replayable reports whether the request can be sent again: its body
// is replayable, or it is one-shot and has not been opened.
func (e *Execution) Replayable() bool {
	if e.Prepared == nil {
		return true
	}
	b := e.Prepared.Body
	return b.Replayable() || !b.Opened()
}

// SetValue allows event handlers to store arbitrary data in the
// execution.
//
// The key must follow the same rules as the key parameter in
// context.WithValue, namely it:
//
// • it may not be nil;
//
// • it must be comparable;
//
// • it should not be of type string or any other built-in type to avoid
// collisions between different event handlers putting data into the
// same execution.
func (e *Execution) SetValue(key, value interface{}) {
	ctx := e.data
	if ctx == nil {
		ctx = context.Background()
	}

	e.data = context.WithValue(ctx, key, value)
}

// Value returns the data value associated with this execution for key,
// or nil if there is no value associated with key.
func (e *Execution) Value(key interface{}) interface{} {
	ctx := e.data
	if ctx == nil {
		return nil
	}

	return ctx.Value(key)
}
