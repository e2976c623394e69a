// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gogama/requests/errs"
	"github.com/gogama/requests/request"
)

// Digest is HTTP Digest authentication (RFC 7616).
//
// The first request to a server carries no credentials. When the
// server answers 401 with a Digest challenge, Challenge computes the
// Authorization header and returns a copy of the request to resend.
// The challenge is remembered, so later requests carry an
// Authorization header from the start, with an incremented nonce
// count.
//
// Supported algorithms are MD5, SHA (SHA-1), SHA-256, and SHA-512, and
// their -SESS variants. Only the "auth" quality of protection is
// supported; a challenge offering only "auth-int" is not answered.
//
// A Digest is safe for concurrent use, but all requests share one
// nonce count.
type Digest struct {
	Username string
	Password string

	mu         sync.Mutex
	chal       map[string]string
	lastNonce  string
	nonceCount uint32

	// cnonce generates the client nonce. Tests replace it.
	cnonce func() (string, error)
}

// NewDigest returns a Digest strategy for the given credentials.
func NewDigest(username, password string) *Digest {
	return &Digest{Username: username, Password: password}
}

// Apply sets the Authorization header if a challenge has already been
// received. Otherwise it does nothing.
func (d *Digest) Apply(p *request.Prepared) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chal == nil {
		return nil
	}
	h, err := d.header(p)
	if err != nil {
		return err
	}
	if h != "" {
		p.Header.Set("Authorization", h)
	}
	return nil
}

// Challenge answers a 401 response carrying a Digest challenge with a
// copy of p holding the computed Authorization header. It returns a
// nil request if r is not a Digest challenge it supports.
//
// The cookies set by r are added to the copy's cookie jar. If p has a
// one-shot body, which was consumed by the first attempt, Challenge
// fails with an error of kind errs.UnrewindableBody.
func (d *Digest) Challenge(p *request.Prepared, r *request.Response) (*request.Prepared, error) {
	if r.StatusCode != http.StatusUnauthorized {
		return nil, nil
	}
	chal := digestChallenge(r.Header.Values("WWW-Authenticate"))
	if chal == nil {
		return nil, nil
	}
	if !p.Body.Replayable() {
		return nil, errs.Newf(errs.UnrewindableBody, errs.Op(p.Method), p.URL.String(),
			"cannot resend one-shot body to answer digest challenge")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.chal = chal
	p2 := p.Copy()
	h, err := d.header(p2)
	if err != nil || h == "" {
		return nil, err
	}
	if p2.Cookies != nil {
		p2.Cookies.Extract(r.URL, r.Header)
		p2.Header.Del("Cookie")
		p2.PrepareCookies(p2.Cookies)
	}
	p2.Header.Set("Authorization", h)
	return p2, nil
}

// digestChallenge returns the parameters of the first Digest challenge
// among the WWW-Authenticate header values, or nil if there is none.
func digestChallenge(values []string) map[string]string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if len(v) < 7 || !strings.EqualFold(v[:7], "digest ") {
			continue
		}
		return ParseParams(v[7:])
	}
	return nil
}

// ParseParams parses a comma-separated list of key=value pairs, as
// found in an authentication challenge. Values may be quoted strings,
// which may contain commas and backslash escapes. Keys are
// lower-cased.
func ParseParams(s string) map[string]string {
	m := make(map[string]string)
	for {
		s = strings.TrimLeft(s, " \t,")
		if s == "" {
			return m
		}
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return m
		}
		key := strings.ToLower(strings.TrimSpace(s[:eq]))
		s = strings.TrimLeft(s[eq+1:], " \t")
		var val string
		if strings.HasPrefix(s, `"`) {
			var b strings.Builder
			i := 1
			for ; i < len(s) && s[i] != '"'; i++ {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				b.WriteByte(s[i])
			}
			val = b.String()
			if i < len(s) {
				i++
			}
			s = s[i:]
		} else {
			end := strings.IndexByte(s, ',')
			if end < 0 {
				end = len(s)
			}
			val = strings.TrimSpace(s[:end])
			s = s[end:]
		}
		m[key] = val
	}
}

// header computes the Authorization header for p from the stored
// challenge. It returns "" if the challenge uses an unsupported
// algorithm or quality of protection. The caller holds d.mu.
func (d *Digest) header(p *request.Prepared) (string, error) {
	realm := d.chal["realm"]
	nonce := d.chal["nonce"]
	qop := d.chal["qop"]
	algorithm := d.chal["algorithm"]
	opaque := d.chal["opaque"]

	newHash, sess, ok := digestAlgorithm(algorithm)
	if !ok {
		return "", nil
	}
	h := func(s string) string {
		x := newHash()
		io.WriteString(x, s)
		return hex.EncodeToString(x.Sum(nil))
	}

	if qop != "" && !hasToken(qop, "auth") {
		return "", nil
	}

	uri := p.PathURL()
	ha1 := h(d.Username + ":" + realm + ":" + d.Password)
	ha2 := h(p.Method + ":" + uri)

	if nonce == d.lastNonce {
		d.nonceCount++
	} else {
		d.nonceCount = 1
	}
	nc := fmt.Sprintf("%08x", d.nonceCount)
	gen := d.cnonce
	if gen == nil {
		gen = newCnonce
	}
	cnonce, err := gen()
	if err != nil {
		return "", errs.New(errs.Request, errs.Op(p.Method), p.URL.String(), err)
	}

	if sess {
		ha1 = h(ha1 + ":" + nonce + ":" + cnonce)
	}
	var response string
	if qop == "" {
		response = h(ha1 + ":" + nonce + ":" + ha2)
	} else {
		response = h(ha1 + ":" + nonce + ":" + nc + ":" + cnonce + ":auth:" + ha2)
	}
	d.lastNonce = nonce

	parts := []string{
		fmt.Sprintf(`username="%s"`, d.Username),
		fmt.Sprintf(`realm="%s"`, realm),
		fmt.Sprintf(`nonce="%s"`, nonce),
		fmt.Sprintf(`uri="%s"`, uri),
		fmt.Sprintf(`response="%s"`, response),
	}
	if opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, opaque))
	}
	if algorithm != "" {
		parts = append(parts, fmt.Sprintf(`algorithm="%s"`, algorithm))
	}
	if qop != "" {
		parts = append(parts, "qop=auth", "nc="+nc, fmt.Sprintf(`cnonce="%s"`, cnonce))
	}
	return "Digest " + strings.Join(parts, ", "), nil
}

func digestAlgorithm(name string) (func() hash.Hash, bool, bool) {
	upper := strings.ToUpper(name)
	sess := strings.HasSuffix(upper, "-SESS")
	switch strings.TrimSuffix(upper, "-SESS") {
	case "", "MD5":
		return md5.New, sess, true
	case "SHA":
		return sha1.New, sess, true
	case "SHA-256":
		return sha256.New, sess, true
	case "SHA-512":
		return sha512.New, sess, true
	}
	return nil, false, false
}

func hasToken(list, token string) bool {
	for _, t := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(t), token) {
			return true
		}
	}
	return false
}

func newCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
