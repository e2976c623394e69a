// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunHooks(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		r := &Response{StatusCode: 200}
		r2, err := RunHooks(nil, r)
		require.NoError(t, err)
		assert.Same(t, r, r2)
	})
	t.Run("order and replacement", func(t *testing.T) {
		var order []int
		replacement := &Response{StatusCode: 201}
		hooks := []Hook{
			HookFunc(func(r *Response) (*Response, error) {
				order = append(order, 1)
				return nil, nil
			}),
			HookFunc(func(r *Response) (*Response, error) {
				order = append(order, 2)
				return replacement, nil
			}),
			HookFunc(func(r *Response) (*Response, error) {
				order = append(order, 3)
				assert.Same(t, replacement, r)
				return r, nil
			}),
		}
		r2, err := RunHooks(hooks, &Response{StatusCode: 200})
		require.NoError(t, err)
		assert.Same(t, replacement, r2)
		assert.Equal(t, []int{1, 2, 3}, order)
	})
	t.Run("error stops", func(t *testing.T) {
		called := false
		hooks := []Hook{
			HookFunc(func(*Response) (*Response, error) { return nil, errors.New("boom") }),
			HookFunc(func(*Response) (*Response, error) { called = true; return nil, nil }),
		}
		_, err := RunHooks(hooks, &Response{})
		assert.EqualError(t, err, "boom")
		assert.False(t, called)
	})
}
