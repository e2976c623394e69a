// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package requests

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gogama/requests/adapter"
	"github.com/gogama/requests/cookies"
	"github.com/gogama/requests/errs"
	"github.com/gogama/requests/request"
)

// send runs the redirect loop for p.
//
// Each hop is sent through the mounted adapter, its cookies are stored
// in the Session's jar, an authentication challenge is answered at most
// once, and the hooks run. A redirect response then goes to the
// history and the request is rebuilt for the new location.
func (s *Session) send(p *request.Prepared, o *options) (*request.Response, error) {
	st := s.settings(o)
	var history []*request.Response
	for {
		r, challenged, err := s.hop(p, &st)
		if err != nil {
			discardAll(history)
			return nil, err
		}
		if challenged != nil {
			history = append(history, challenged)
		}
		if !st.allowRedirects || !r.IsRedirect() {
			r.History = history
			return r, nil
		}

		// The body of a redirect is read so its connection is released.
		if _, err = r.Content(); err != nil {
			_ = r.Close()
		}
		history = append(history, r)
		if countRedirects(history) >= s.MaxRedirects {
			return nil, &TooManyRedirectsError{
				Err: errs.Newf(errs.TooManyRedirects, errs.Op(p.Method), p.URL.String(),
					fmt.Sprintf("exceeded %d redirects", s.MaxRedirects)),
				History: redirectsOnly(history),
			}
		}

		next, err := s.rebuild(r.Request, r, &st)
		if err != nil {
			return nil, err
		}
		s.Logger.Debug().
			Int("status", r.StatusCode).
			Str("from", r.URL.String()).
			Str("to", next.URL.String()).
			Str("method", next.Method).
			Msg("Following redirect")
		p = next
	}
}

// hop sends p once. If the request's authenticator answers a challenge
// in the response, the answer is sent too, and the challenge response
// is returned as well.
func (s *Session) hop(p *request.Prepared, st *settings) (r, challenged *request.Response, err error) {
	if r, err = s.dispatch(p, st); err != nil {
		return nil, nil, err
	}
	if c, ok := p.Auth.(request.Challenger); ok {
		var p2 *request.Prepared
		if p2, err = c.Challenge(p, r); err != nil {
			_ = r.Close()
			return nil, nil, withOp(err, errs.Op(p.Method), p.URL.String())
		}
		if p2 != nil {
			if _, err = r.Content(); err != nil {
				_ = r.Close()
			}
			challenged = r
			if r, err = s.dispatch(p2, st); err != nil {
				return nil, nil, err
			}
			p = p2
		}
	}
	r2, err := request.RunHooks(p.Hooks, r)
	if err != nil {
		_ = r.Close()
		if challenged != nil {
			_ = challenged.Close()
		}
		return nil, nil, withOp(err, errs.Op(p.Method), p.URL.String())
	}
	if r2.Request == nil {
		r2.Request = p
	}
	return r2, challenged, nil
}

// dispatch sends p through the adapter mounted for its URL and stores
// the cookies of the response in the Session's jar.
func (s *Session) dispatch(p *request.Prepared, st *settings) (*request.Response, error) {
	a, err := s.Adapter(p.URL.String())
	if err != nil {
		return nil, withOp(err, errs.Op(p.Method), p.URL.String())
	}
	r, err := a.Send(p, adapter.SendOptions{
		Stream:  st.stream,
		Timeout: st.timeout,
		Verify:  st.verify,
		Cert:    st.cert,
		Proxies: s.sendProxies(p.URL, st.proxies),
	})
	if err != nil {
		s.Logger.Debug().
			Str("method", p.Method).
			Str("url", p.URL.String()).
			Err(err).
			Msg("Request failed")
		return nil, err
	}
	s.Logger.Debug().
		Str("method", p.Method).
		Str("url", p.URL.String()).
		Int("status", r.StatusCode).
		Dur("elapsed", r.Elapsed).
		Msg("Received response")
	if s.Jar != nil {
		s.Jar.Extract(p.URL, r.Header)
	}
	return r, nil
}

// sendProxies returns the proxies for the adapter. A proxy from the
// environment is added under the exact scheme and host of u.
func (s *Session) sendProxies(u *url.URL, ps adapter.Proxies) adapter.Proxies {
	if !s.TrustEnv {
		return ps
	}
	if p, err := ps.Select(u); err != nil || p != nil {
		return ps
	}
	env, err := adapter.EnvironmentProxy(u)
	if err != nil || env == nil {
		return ps
	}
	return ps.Merge(adapter.Proxies{strings.ToLower(u.Scheme) + "://" + u.Hostname(): env.String()})
}

// rebuild prepares the request which follows the redirect r of p.
func (s *Session) rebuild(p *request.Prepared, r *request.Response, st *settings) (*request.Prepared, error) {
	op := errs.Op(p.Method)
	u, err := request.ResolveLocation(p.URL, r.Header.Get("Location"), s.schemes())
	if err != nil {
		return nil, withOp(err, op, p.URL.String())
	}

	next := p.Copy()
	next.URL = u
	next.Method = redirectMethod(p.Method, r.StatusCode)
	if r.StatusCode != http.StatusTemporaryRedirect && r.StatusCode != http.StatusPermanentRedirect {
		next.DropBody()
	} else if next.Body != nil && !next.Body.Replayable() {
		return nil, errs.Newf(errs.UnrewindableBody, op, u.String(),
			"cannot resend one-shot body to follow redirect")
	}

	next.Header.Del("Cookie")
	jar := next.Cookies
	if jar == nil {
		jar = cookies.New()
	}
	jar.Extract(p.URL, r.Header)
	jar.Merge(s.Jar)
	next.PrepareCookies(jar)

	next.Header.Del("Proxy-Authorization")
	if next.Proxy, err = s.selectProxy(u, st.proxies); err != nil {
		return nil, withOp(err, op, u.String())
	}

	if shouldStripAuth(p.URL, u) {
		next.Header.Del("Authorization")
		next.Auth = nil
		err = next.PrepareAuth(s.Auth)
	} else {
		err = next.PrepareAuth(next.Auth)
	}
	if err != nil {
		return nil, err
	}
	return next, nil
}

// redirectMethod returns the method of the request following a
// redirect with the given status. A 303 turns everything but HEAD into
// GET, as do 301 and 302 for methods other than GET and HEAD. 307 and
// 308 keep the method.
func redirectMethod(method string, status int) string {
	switch status {
	case http.StatusSeeOther, http.StatusMovedPermanently, http.StatusFound:
		if method != http.MethodHead {
			return http.MethodGet
		}
	}
	return method
}

// shouldStripAuth reports whether the Authorization header must be
// removed when redirecting from one URL to another. It is kept on the
// same host, including an upgrade from http on port 80 to https on
// port 443, and a change between a scheme's explicit and implicit
// default port.
func shouldStripAuth(from, to *url.URL) bool {
	if !strings.EqualFold(from.Hostname(), to.Hostname()) {
		return true
	}
	oldScheme, newScheme := strings.ToLower(from.Scheme), strings.ToLower(to.Scheme)
	oldPort, newPort := from.Port(), to.Port()
	if oldScheme == "http" && (oldPort == "" || oldPort == "80") &&
		newScheme == "https" && (newPort == "" || newPort == "443") {
		return false
	}
	changedPort := oldPort != newPort
	changedScheme := oldScheme != newScheme
	if !changedScheme {
		def := defaultPort(oldScheme)
		if (oldPort == "" || oldPort == def) && (newPort == "" || newPort == def) {
			return false
		}
	}
	return changedPort || changedScheme
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}

func countRedirects(history []*request.Response) int {
	n := 0
	for _, r := range history {
		if r.IsRedirect() {
			n++
		}
	}
	return n
}

func redirectsOnly(history []*request.Response) []*request.Response {
	out := make([]*request.Response, 0, len(history))
	for _, r := range history {
		if r.IsRedirect() {
			out = append(out, r)
		}
	}
	return out
}

func discardAll(rs []*request.Response) {
	for _, r := range rs {
		_ = r.Close()
	}
}
