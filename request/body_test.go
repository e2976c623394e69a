// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/gogama/requests/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, b *Body) string {
	rc, err := b.Open()
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	p, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(p)
}

func TestBody(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		var b *Body
		assert.Equal(t, int64(0), b.Len())
		assert.True(t, b.Replayable())
		assert.Nil(t, b.Bytes())
		assert.Equal(t, "", readAll(t, b))
	})
	t.Run("bytes", func(t *testing.T) {
		b := NewBody([]byte("hello"))
		assert.Equal(t, int64(5), b.Len())
		assert.True(t, b.Replayable())
		assert.Equal(t, "hello", readAll(t, b))
		assert.Equal(t, "hello", readAll(t, b))
	})
	t.Run("nil reader", func(t *testing.T) {
		assert.Nil(t, NewReaderBody(nil))
	})
	t.Run("buffer", func(t *testing.T) {
		b := NewReaderBody(bytes.NewBufferString("buffered"))
		assert.Equal(t, []byte("buffered"), b.Bytes())
		assert.True(t, b.Replayable())
	})
	t.Run("seeker", func(t *testing.T) {
		r := strings.NewReader("hello")
		_, err := r.Seek(1, io.SeekStart)
		require.NoError(t, err)
		b := NewReaderBody(r)
		assert.Equal(t, int64(4), b.Len())
		assert.True(t, b.Replayable())
		assert.Equal(t, "ello", readAll(t, b))
		assert.Equal(t, "ello", readAll(t, b))
	})
	t.Run("one-shot", func(t *testing.T) {
		b := NewReaderBody(io.MultiReader(strings.NewReader("once")))
		assert.Equal(t, int64(-1), b.Len())
		assert.False(t, b.Replayable())
		assert.False(t, b.Opened())
		assert.Equal(t, "once", readAll(t, b))
		assert.True(t, b.Opened())
		_, err := b.Open()
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.UnrewindableBody))
	})
	t.Run("one-shot with Len", func(t *testing.T) {
		b := NewReaderBody(lenReader{strings.NewReader("abc")})
		assert.Equal(t, int64(3), b.Len())
		assert.False(t, b.Replayable())
	})
}

type lenReader struct {
	r *strings.Reader
}

func (l lenReader) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l lenReader) Len() int                   { return l.r.Len() }
