// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"io"
	"net/http"
	"sync"

	"github.com/gogama/requests/errs"
)

// A Body is the source of a request body.
//
// A Body is replayable when it is backed by buffered bytes or by a
// reader that can seek back to its starting offset. Any other reader
// makes a one-shot Body, which can be opened exactly once.
//
// A Body may be shared between copies of a Prepared request, and its
// one-shot state is shared with it.
type Body struct {
	b      []byte
	r      io.Reader
	seeker io.Seeker
	start  int64
	lazy   func() io.ReadCloser
	n      int64

	mu     sync.Mutex
	opened bool
}

// NewBody returns a replayable body backed by b.
func NewBody(b []byte) *Body {
	return &Body{b: b, n: int64(len(b))}
}

// NewReaderBody returns a body reading from r.
//
// If r is a *bytes.Buffer, its unread bytes are used as a buffered
// body. If r can seek, the body is replayable from r's current offset
// and its length is known. Otherwise the body is one-shot, and its
// length is known only if r reports it through a Len method.
func NewReaderBody(r io.Reader) *Body {
	switch x := r.(type) {
	case nil:
		return nil
	case *bytes.Buffer:
		return NewBody(x.Bytes())
	case io.ReadSeeker:
		start, err := x.Seek(0, io.SeekCurrent)
		if err != nil {
			break
		}
		end, err := x.Seek(0, io.SeekEnd)
		if err != nil {
			break
		}
		if _, err = x.Seek(start, io.SeekStart); err != nil {
			break
		}
		return &Body{r: x, seeker: x, start: start, n: end - start}
	}
	return &Body{r: r, n: readerLen(r)}
}

func newLazyBody(open func() io.ReadCloser) *Body {
	return &Body{lazy: open, n: -1}
}

// Len returns the body length in bytes, or -1 if it is unknown.
func (b *Body) Len() int64 {
	if b == nil {
		return 0
	}
	return b.n
}

// Replayable reports whether the body can be opened more than once.
func (b *Body) Replayable() bool {
	return b == nil || b.b != nil || b.seeker != nil || (b.r == nil && b.lazy == nil)
}

// Bytes returns the buffered body, or nil if the body is a reader.
func (b *Body) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.b
}

// Open returns a reader positioned at the start of the body. Closing
// the reader never closes a reader supplied by the caller.
//
// A one-shot body may be opened once. Later calls return an error of
// kind errs.UnrewindableBody.
func (b *Body) Open() (io.ReadCloser, error) {
	if b == nil {
		return http.NoBody, nil
	}
	if b.b != nil || (b.r == nil && b.lazy == nil) {
		return io.NopCloser(bytes.NewReader(b.b)), nil
	}
	if b.seeker != nil {
		if _, err := b.seeker.Seek(b.start, io.SeekStart); err != nil {
			return nil, errs.New(errs.UnrewindableBody, "", "", err)
		}
		return io.NopCloser(io.LimitReader(b.r, b.n)), nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.opened {
		return nil, errs.Newf(errs.UnrewindableBody, "", "", "one-shot body already sent")
	}
	b.opened = true
	if b.lazy != nil {
		return b.lazy(), nil
	}
	return io.NopCloser(b.r), nil
}

// Opened reports whether a one-shot body has been opened.
func (b *Body) Opened() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// readerLen is a best-effort length for readers which cannot seek.
func readerLen(r io.Reader) int64 {
	if l, ok := r.(interface{ Len() int }); ok {
		return int64(l.Len())
	}
	return -1
}
