// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package adapter

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gogama/requests/errs"
)

// A body reads a response body from a pooled connection.
//
// Each Read is bounded by the read timeout, so the timeout limits the
// time between received chunks rather than the whole body. When the
// body is read to the end the connection goes back to its pool; when
// the body is closed early, or a read fails, the connection is closed.
type body struct {
	c       *conn
	rc      io.Reader
	read    time.Duration
	keep    bool
	chunked bool
	op, url string
	ctxErr  func() error
	stop    func() bool

	mu   sync.Mutex
	done bool
}

func (b *body) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return 0, io.EOF
	}
	if b.read > 0 {
		_ = b.c.SetReadDeadline(time.Now().Add(b.read))
	}
	n, err := b.rc.Read(p)
	if err == io.EOF {
		b.finish(true)
		return n, io.EOF
	}
	if err != nil {
		b.finish(false)
		return n, b.mapErr(err)
	}
	return n, nil
}

func (b *body) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.done {
		b.finish(false)
	}
	return nil
}

func (b *body) finish(ok bool) {
	b.done = true
	// If the context fired, its deadline may land on the connection at
	// any moment, so it cannot go back to the pool.
	if b.stop != nil && !b.stop() {
		ok = false
	}
	_ = b.c.SetDeadline(time.Time{})
	b.c.pool.release(b.c, ok && b.keep)
}

func (b *body) mapErr(err error) error {
	if ctxErr := b.ctxErr(); ctxErr != nil {
		return contextErr(b.op, b.url, ctxErr)
	}
	if isTimeout(err) {
		return errs.New(errs.ReadTimeout, b.op, b.url, err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return errs.New(errs.ChunkedEncoding, b.op, b.url, err)
	}
	// Reads from the connection fail with a net.Error. Anything else
	// out of a chunked body is a framing error from the chunk decoder.
	var ne net.Error
	if b.chunked && !errors.As(err, &ne) {
		return errs.New(errs.ChunkedEncoding, b.op, b.url, err)
	}
	return errs.New(errs.Connection, b.op, b.url, err)
}

func isChunked(te []string) bool {
	return len(te) > 0 && strings.EqualFold(te[0], "chunked")
}

// A decoder decompresses a gzip or deflate body. The decompressor is
// created on the first Read, since creating it reads the stream
// header.
type decoder struct {
	src      io.ReadCloser
	encoding string
	op, url  string
	r        io.Reader
}

// newDecoder wraps rc to decode the given Content-Encoding, or returns
// rc unchanged if the encoding is not gzip or deflate.
func newDecoder(rc io.ReadCloser, contentEncoding, op, url string) io.ReadCloser {
	enc := strings.ToLower(strings.TrimSpace(contentEncoding))
	switch enc {
	case "gzip", "x-gzip", "deflate":
		return &decoder{src: rc, encoding: enc, op: op, url: url}
	}
	return rc
}

func (d *decoder) Read(p []byte) (int, error) {
	if d.r == nil {
		r, err := d.open()
		if err == io.EOF {
			return 0, io.EOF
		}
		if err != nil {
			return 0, d.mapErr(err)
		}
		d.r = r
	}
	n, err := d.r.Read(p)
	if err != nil && err != io.EOF {
		err = d.mapErr(err)
	}
	return n, err
}

func (d *decoder) open() (io.Reader, error) {
	if d.encoding != "deflate" {
		return gzip.NewReader(d.src)
	}
	// Servers send deflate both with and without the zlib wrapper.
	br := bufio.NewReader(d.src)
	hdr, err := br.Peek(2)
	if len(hdr) == 0 && err != nil {
		return nil, err
	}
	if len(hdr) == 2 && hdr[0]&0x0f == 8 && (uint16(hdr[0])<<8|uint16(hdr[1]))%31 == 0 {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func (d *decoder) mapErr(err error) error {
	if errs.KindOf(err) != nil {
		return err
	}
	return errs.New(errs.ContentDecoding, d.op, d.url, err)
}

func (d *decoder) Close() error {
	return d.src.Close()
}
