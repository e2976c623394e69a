// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

// A Hook is a response hook. A session runs the hooks of a request on
// the response of every hop, in registration order.
//
// A Hook may return a different response, which replaces the one it
// was given for the remaining hooks and for the session. Returning a
// nil response keeps the response unchanged. Returning an error aborts
// the request with that error.
type Hook interface {
	Handle(r *Response) (*Response, error)
}

// The HookFunc type is an adapter to allow the use of ordinary
// functions as response hooks.
type HookFunc func(r *Response) (*Response, error)

// Handle calls f(r).
func (f HookFunc) Handle(r *Response) (*Response, error) {
	return f(r)
}

// RunHooks runs hooks on r in order and returns the final response.
func RunHooks(hooks []Hook, r *Response) (*Response, error) {
	for _, h := range hooks {
		r2, err := h.Handle(r)
		if err != nil {
			return r, err
		}
		if r2 != nil {
			r = r2
		}
	}
	return r, nil
}
