// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient classifies errors from sending an HTTP request as
// transient or non-transient. The adapter's retry deciders use it, and
// it is handy for other purposes such as bucketing error metrics.
//
// Package transient depends only on the standard library, so it
// doesn't bring any significant dependencies when imported as a
// standalone package.
package transient
