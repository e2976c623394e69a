// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package requests

import (
	"bytes"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gogama/requests/adapter"
	"github.com/gogama/requests/auth"
	"github.com/gogama/requests/request"
	"github.com/gogama/requests/timeout"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) *Session {
	s := NewSession()
	s.TrustEnv = false
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func decodeEcho(t *testing.T, r *request.Response) echo {
	var e echo
	require.NoError(t, r.JSON(&e))
	return e
}

func statusURL(code int, location string) string {
	return httpServer.URL + "/status/" + strconv.Itoa(code) + "?location=" + url.QueryEscape(location)
}

func TestSession_Headers(t *testing.T) {
	s := newSession(t)
	s.Params = url.Values{"a": {"1"}, "b": {"2"}}
	r, err := s.Get(httpServer.URL+"/echo",
		WithParam("b", "3"),
		WithHeader("X-Test", "yes"),
		WithHeader("Accept", ""))
	require.NoError(t, err)
	e := decodeEcho(t, r)
	assert.Equal(t, "/echo?a=1&b=3", e.URL)
	assert.Equal(t, DefaultUserAgent, e.Header.Get("User-Agent"))
	assert.Equal(t, "yes", e.Header.Get("X-Test"))
	assert.Empty(t, e.Header.Values("Accept"))
	assert.Equal(t, []string{"*/*"}, s.Header.Values("Accept"), "Session header changed")
}

func TestSession_Redirects(t *testing.T) {
	t.Run("chain", func(t *testing.T) {
		s := newSession(t)
		r, err := s.Get(httpServer.URL + "/redirect/3")
		require.NoError(t, err)
		assert.Equal(t, 200, r.StatusCode)
		assert.Equal(t, "/echo", r.URL.Path)
		require.Len(t, r.History, 3)
		for i, h := range r.History {
			assert.Equal(t, http.StatusFound, h.StatusCode, "history[%d]", i)
			assert.Greater(t, h.Elapsed, time.Duration(0), "history[%d]", i)
			b, err := h.Content()
			assert.NoError(t, err)
			assert.Equal(t, "redirecting", string(b))
		}
		assert.Equal(t, "/redirect/3", r.History[0].URL.Path)
		assert.Equal(t, "/redirect/1", r.History[2].URL.Path)
	})
	t.Run("too many", func(t *testing.T) {
		s := newSession(t)
		s.MaxRedirects = 2
		r, err := s.Get(httpServer.URL + "/redirect/5")
		assert.Nil(t, r)
		assert.ErrorIs(t, err, ErrTooManyRedirects)
		assert.ErrorIs(t, err, ErrRequest)
		var tmr *TooManyRedirectsError
		require.True(t, errors.As(err, &tmr))
		assert.Len(t, tmr.History, 2)
		assert.Equal(t, "/redirect/4", tmr.Response().URL.Path)
		assert.Equal(t, ErrTooManyRedirects, tmr.Err.Kind)
		assert.Same(t, tmr.Err, errors.Unwrap(err))
		assert.Contains(t, err.Error(), "exceeded 2 redirects")
	})
	t.Run("none followed", func(t *testing.T) {
		for _, n := range []int{0, -1} {
			s := newSession(t)
			s.MaxRedirects = n
			r, err := s.Get(httpServer.URL + "/redirect/1")
			assert.Nil(t, r)
			var tmr *TooManyRedirectsError
			require.True(t, errors.As(err, &tmr), "MaxRedirects %d", n)
			assert.Len(t, tmr.History, 1)
			assert.Equal(t, "/redirect/1", tmr.Response().URL.Path)
		}
	})
	t.Run("not allowed", func(t *testing.T) {
		s := newSession(t)
		r, err := s.Get(httpServer.URL+"/redirect/2", WithAllowRedirects(false))
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, r.StatusCode)
		assert.True(t, r.IsRedirect())
		assert.Empty(t, r.History)
	})
	t.Run("query kept", func(t *testing.T) {
		s := newSession(t)
		r, err := s.Get(httpServer.URL+"/redirect/1", WithParam("x", "y"))
		require.NoError(t, err)
		assert.Equal(t, "/echo?x=y", decodeEcho(t, r).URL)
	})
	t.Run("invalid location scheme", func(t *testing.T) {
		s := newSession(t)
		_, err := s.Get(statusURL(302, "ftp://files.example/x"))
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})
}

func TestSession_RedirectMethod(t *testing.T) {
	testCases := []struct {
		name       string
		method     string
		status     int
		wantMethod string
		wantBody   string
	}{
		{"POST 303", "POST", 303, "GET", ""},
		{"POST 302", "POST", 302, "GET", ""},
		{"POST 301", "POST", 301, "GET", ""},
		{"PUT 301", "PUT", 301, "GET", ""},
		{"POST 307", "POST", 307, "POST", "payload"},
		{"PUT 308", "PUT", 308, "PUT", "payload"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			s := newSession(t)
			r, err := s.Request(testCase.method, statusURL(testCase.status, "/echo"), WithData("payload"))
			require.NoError(t, err)
			e := decodeEcho(t, r)
			assert.Equal(t, testCase.wantMethod, e.Method)
			assert.Equal(t, testCase.wantBody, e.Body)
			if testCase.wantBody == "" {
				assert.Empty(t, e.Header.Get("Content-Type"))
			}
			require.Len(t, r.History, 1)
			assert.Equal(t, testCase.method, r.History[0].Request.Method)
		})
	}
	t.Run("HEAD 303", func(t *testing.T) {
		s := newSession(t)
		r, err := s.Head(statusURL(303, "/echo"), WithAllowRedirects(true))
		require.NoError(t, err)
		assert.Equal(t, 200, r.StatusCode)
		assert.Equal(t, "HEAD", r.Request.Method)
		assert.Equal(t, "/echo", r.URL.Path)
	})
	t.Run("one-shot body on 307", func(t *testing.T) {
		s := newSession(t)
		_, err := s.Post(statusURL(307, "/echo"), WithData(io.MultiReader(strings.NewReader("once"))))
		assert.ErrorIs(t, err, ErrUnrewindableBody)
	})
}

func TestSession_Head(t *testing.T) {
	s := newSession(t)
	r, err := s.Head(httpServer.URL + "/redirect/1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, r.StatusCode)
	assert.Empty(t, r.History)
}

func TestSession_RedirectAuth(t *testing.T) {
	basic := &auth.Basic{Username: "user", Password: "pass"}
	basicHeader := request.BasicAuthHeader("user", "pass")
	t.Run("same host", func(t *testing.T) {
		s := newSession(t)
		r, err := s.Get(statusURL(302, "/echo"), WithAuth(basic))
		require.NoError(t, err)
		assert.Equal(t, basicHeader, decodeEcho(t, r).Header.Get("Authorization"))
	})
	t.Run("other host", func(t *testing.T) {
		s := newSession(t)
		r, err := s.Get(statusURL(302, localhostURL()+"/echo"), WithAuth(basic))
		require.NoError(t, err)
		e := decodeEcho(t, r)
		assert.True(t, strings.HasPrefix(e.Host, "localhost:"))
		assert.Empty(t, e.Header.Get("Authorization"))
	})
	t.Run("other host with session auth", func(t *testing.T) {
		s := newSession(t)
		s.Auth = &auth.Bearer{Token: "tok"}
		r, err := s.Get(statusURL(302, localhostURL()+"/echo"), WithAuth(basic))
		require.NoError(t, err)
		assert.Equal(t, "Bearer tok", decodeEcho(t, r).Header.Get("Authorization"))
		assert.Equal(t, basicHeader, r.History[0].Request.Header.Get("Authorization"))
	})
	t.Run("none", func(t *testing.T) {
		s := newSession(t)
		s.Auth = basic
		u := strings.Replace(httpServer.URL, "://", "://a:b@", 1) + "/echo"
		r, err := s.Get(u, WithAuth(auth.None))
		require.NoError(t, err)
		assert.Empty(t, decodeEcho(t, r).Header.Get("Authorization"))
	})
}

func TestSession_Cookies(t *testing.T) {
	t.Run("persisted", func(t *testing.T) {
		s := newSession(t)
		r, err := s.Get(httpServer.URL + "/cookies/set?k=v")
		require.NoError(t, err)
		assert.Equal(t, "k=v", decodeEcho(t, r).Header.Get("Cookie"))
		v, ok := s.Jar.Get("k", "", "")
		assert.True(t, ok)
		assert.Equal(t, "v", v)

		r, err = s.Get(httpServer.URL + "/echo")
		require.NoError(t, err)
		assert.Equal(t, "k=v", decodeEcho(t, r).Header.Get("Cookie"))
	})
	t.Run("per call", func(t *testing.T) {
		s := newSession(t)
		s.Jar.Set("k", "session")
		r, err := s.Get(httpServer.URL+"/echo", WithCookies(map[string]string{"k": "call"}))
		require.NoError(t, err)
		assert.Equal(t, "k=call", decodeEcho(t, r).Header.Get("Cookie"))
		v, _ := s.Jar.Get("k", "", "")
		assert.Equal(t, "session", v)
	})
}

func TestSession_Hooks(t *testing.T) {
	t.Run("order", func(t *testing.T) {
		var calls []string
		hook := func(name string) request.Hook {
			return request.HookFunc(func(r *request.Response) (*request.Response, error) {
				calls = append(calls, name)
				return nil, nil
			})
		}
		s := newSession(t)
		s.Hooks = []request.Hook{hook("session")}
		_, err := s.Get(httpServer.URL+"/redirect/1", WithHooks(hook("call")))
		require.NoError(t, err)
		assert.Equal(t, []string{"session", "call", "session", "call"}, calls)
	})
	t.Run("replace", func(t *testing.T) {
		s := newSession(t)
		replacement := &request.Response{StatusCode: 299}
		r, err := s.Get(httpServer.URL+"/echo", WithHooks(request.HookFunc(func(r *request.Response) (*request.Response, error) {
			_ = r.Close()
			return replacement, nil
		})))
		require.NoError(t, err)
		assert.Same(t, replacement, r)
		require.NotNil(t, r.Request)
		assert.Equal(t, "/echo", r.Request.URL.Path)
	})
	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		s := newSession(t)
		r, err := s.Get(httpServer.URL+"/echo", WithHooks(request.HookFunc(func(*request.Response) (*request.Response, error) {
			return nil, boom
		})))
		assert.Nil(t, r)
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, ErrRequest)
	})
}

func TestSession_Digest(t *testing.T) {
	s := newSession(t)
	s.Auth = auth.NewDigest(digestUser, digestPass)

	r, err := s.Get(httpServer.URL + "/digest")
	require.NoError(t, err)
	assert.Equal(t, 200, r.StatusCode)
	text, err := r.Text()
	require.NoError(t, err)
	assert.Equal(t, "authenticated", text)
	require.Len(t, r.History, 1)
	assert.Equal(t, http.StatusUnauthorized, r.History[0].StatusCode)

	r, err = s.Get(httpServer.URL + "/digest")
	require.NoError(t, err)
	assert.Equal(t, 200, r.StatusCode)
	assert.Empty(t, r.History)
	assert.True(t, strings.HasPrefix(r.Request.Header.Get("Authorization"), "Digest "))

	t.Run("wrong password", func(t *testing.T) {
		s := newSession(t)
		r, err := s.Get(httpServer.URL+"/digest", WithAuth(auth.NewDigest(digestUser, "wrong")))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, r.StatusCode)
		assert.Len(t, r.History, 1)
		assert.Error(t, r.RaiseForStatus())
	})
}

func TestSession_Body(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		s := newSession(t)
		r, err := s.Post(httpServer.URL+"/echo", WithJSON(map[string]any{"n": 1}))
		require.NoError(t, err)
		e := decodeEcho(t, r)
		assert.JSONEq(t, `{"n":1}`, e.Body)
		assert.Equal(t, "application/json", e.Header.Get("Content-Type"))
		method, err := r.JSONPath("method")
		require.NoError(t, err)
		assert.Equal(t, "POST", method.String())
	})
	t.Run("form", func(t *testing.T) {
		s := newSession(t)
		r, err := s.Put(httpServer.URL+"/echo", WithForm(url.Values{"a": {"b c"}}))
		require.NoError(t, err)
		e := decodeEcho(t, r)
		assert.Equal(t, "PUT", e.Method)
		assert.Equal(t, "a=b+c", e.Body)
	})
	t.Run("stream", func(t *testing.T) {
		s := newSession(t)
		r, err := s.Get(httpServer.URL+"/lines/3", WithStream(true))
		require.NoError(t, err)
		var lines []string
		for line, err := range r.IterLines() {
			require.NoError(t, err)
			lines = append(lines, line)
		}
		assert.Equal(t, []string{"line 0", "line 1", "line 2"}, lines)
	})
}

func TestSession_Timeout(t *testing.T) {
	s := newSession(t)
	_, err := s.Get(httpServer.URL+"/slow", WithTimeout(timeout.Pair(time.Second, 50*time.Millisecond)))
	assert.ErrorIs(t, err, ErrReadTimeout)
	assert.ErrorIs(t, err, ErrTimeout)

	s.Timeout = timeout.Fixed(50 * time.Millisecond)
	_, err = s.Get(httpServer.URL + "/slow")
	assert.ErrorIs(t, err, ErrReadTimeout)

	r, err := s.Get(httpServer.URL+"/slow", WithTimeout(timeout.Infinite))
	require.NoError(t, err)
	assert.Equal(t, 200, r.StatusCode)
}

func TestSession_CABundleEnv(t *testing.T) {
	s := NewSession()
	t.Cleanup(func() { _ = s.Close() })

	_, err := s.Get(httpsServer.URL + "/echo")
	assert.ErrorIs(t, err, ErrSSL)

	path := filepath.Join(t.TempDir(), "ca.pem")
	b := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: httpsServer.Certificate().Raw})
	require.NoError(t, os.WriteFile(path, b, 0o600))
	t.Setenv("REQUESTS_CA_BUNDLE", path)

	r, err := s.Get(httpsServer.URL + "/echo")
	require.NoError(t, err)
	assert.Equal(t, 200, r.StatusCode)
	assert.False(t, r.InsecureTLS)

	s.TrustEnv = false
	_, err = s.Get(httpsServer.URL + "/echo")
	assert.ErrorIs(t, err, ErrSSL)

	r, err = s.Get(httpsServer.URL+"/echo", WithVerify(adapter.VerifyNone))
	require.NoError(t, err)
	assert.True(t, r.InsecureTLS)
}

func TestSession_Logger(t *testing.T) {
	var buf bytes.Buffer
	s := newSession(t)
	s.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	_, err := s.Get(httpServer.URL + "/redirect/1")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Following redirect")
	assert.Contains(t, buf.String(), "Received response")
}

func TestSession_Mount(t *testing.T) {
	s := newSession(t)
	a := newMockAdapter(t)
	s.Mount("HTTP://special.example/", a)

	got, err := s.Adapter("http://special.example/path")
	require.NoError(t, err)
	assert.Same(t, a, got)

	got, err = s.Adapter("http://other.example/")
	require.NoError(t, err)
	assert.NotSame(t, a, got)

	s.Mount("http://special.example/", adapter.New())
	got, _ = s.Adapter("http://special.example/path")
	assert.NotSame(t, a, got)

	_, err = s.Adapter("gopher://hole.example/")
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = s.Get("gopher://hole.example/")
	assert.ErrorIs(t, err, ErrInvalidSchema)

	assert.PanicsWithValue(t, "requests: nil adapter", func() {
		s.Mount("foo://", nil)
	})

	t.Run("custom scheme", func(t *testing.T) {
		s := newSession(t)
		m := newMockAdapter(t)
		m.On("Close").Return(nil).Maybe()
		expected := &request.Response{StatusCode: 204}
		m.On("Send", mock.MatchedBy(func(p *request.Prepared) bool {
			return p.URL.String() == "mem://bucket/key"
		}), mock.Anything).Return(expected, nil).Once()
		s.Mount("mem://", m)
		r, err := s.Get("mem://bucket/key")
		require.NoError(t, err)
		assert.Same(t, expected, r)
		m.AssertExpectations(t)
	})
}

func TestSession_Close(t *testing.T) {
	t.Run("adapters closed once", func(t *testing.T) {
		s := NewSession()
		a := newMockAdapter(t)
		a.On("Close").Return(nil).Once()
		s.Mount("https://", a)
		s.Mount("http://", a)
		assert.NoError(t, s.Close())
		a.AssertExpectations(t)
	})
	t.Run("with adapter", func(t *testing.T) {
		a := newMockAdapter(t)
		s := NewSessionWithAdapter(a)
		got, err := s.Adapter("HTTPS://example.com/")
		require.NoError(t, err)
		assert.Same(t, a, got)
		got, err = s.Adapter("http://example.com/")
		require.NoError(t, err)
		assert.Same(t, a, got)
		a.On("Close").Return(nil).Once()
		assert.NoError(t, s.Close())
		a.AssertExpectations(t)
	})
	t.Run("send after close", func(t *testing.T) {
		s := NewSession()
		require.NoError(t, s.Close())
		_, err := s.Get(httpServer.URL + "/echo")
		assert.ErrorIs(t, err, ErrConnection)
	})
}

func TestSession_Send(t *testing.T) {
	s := newSession(t)
	p, err := s.Prepare("GET", httpServer.URL+"/redirect/1")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, p.Header.Get("User-Agent"))

	r, err := s.Send(p, WithAllowRedirects(false))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, r.StatusCode)

	r, err = s.Send(p)
	require.NoError(t, err)
	assert.Equal(t, 200, r.StatusCode)
	assert.Equal(t, "/redirect/1", p.URL.Path, "prepared request changed")

	assert.PanicsWithValue(t, "requests: nil request", func() {
		_, _ = s.Send(nil)
	})
}

func TestGet(t *testing.T) {
	r, err := Get(httpServer.URL+"/echo", WithParam("q", "1"))
	require.NoError(t, err)
	assert.Equal(t, "/echo?q=1", decodeEcho(t, r).URL)

	_, err = Get("no-scheme.example/echo")
	assert.ErrorIs(t, err, ErrMissingSchema)

	r, err = Delete(httpServer.URL + "/echo")
	require.NoError(t, err)
	assert.Equal(t, "DELETE", decodeEcho(t, r).Method)
}

func TestShouldStripAuth(t *testing.T) {
	testCases := []struct {
		from, to string
		strip    bool
	}{
		{"http://a.example/", "http://a.example/x", false},
		{"http://a.example/", "http://A.EXAMPLE/x", false},
		{"http://a.example/", "http://b.example/", true},
		{"http://a.example/", "https://a.example/", false},
		{"http://a.example:80/", "https://a.example:443/", false},
		{"http://a.example:8080/", "https://a.example/", true},
		{"https://a.example/", "http://a.example/", true},
		{"http://a.example/", "http://a.example:80/", false},
		{"https://a.example:443/", "https://a.example/", false},
		{"http://a.example:8080/", "http://a.example:9090/", true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.from+" to "+testCase.to, func(t *testing.T) {
			from, err := url.Parse(testCase.from)
			require.NoError(t, err)
			to, err := url.Parse(testCase.to)
			require.NoError(t, err)
			assert.Equal(t, testCase.strip, shouldStripAuth(from, to))
		})
	}
}

func TestRedirectMethod(t *testing.T) {
	testCases := []struct {
		method string
		status int
		want   string
	}{
		{"GET", 301, "GET"},
		{"POST", 301, "GET"},
		{"HEAD", 301, "HEAD"},
		{"POST", 302, "GET"},
		{"DELETE", 303, "GET"},
		{"HEAD", 303, "HEAD"},
		{"POST", 307, "POST"},
		{"PATCH", 308, "PATCH"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.want, redirectMethod(testCase.method, testCase.status),
			"%s after %d", testCase.method, testCase.status)
	}
}

type mockAdapter struct {
	mock.Mock
}

func newMockAdapter(t *testing.T) *mockAdapter {
	m := &mockAdapter{}
	m.Test(t)
	return m
}

func (m *mockAdapter) Send(p *request.Prepared, o adapter.SendOptions) (*request.Response, error) {
	args := m.Called(p, o)
	r := args.Get(0)
	err := args.Error(1)
	if r == nil {
		return nil, err
	}
	return r.(*request.Response), err
}

func (m *mockAdapter) Close() error {
	args := m.Called()
	return args.Error(0)
}
