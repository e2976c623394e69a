// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"errors"
	"net"
	urlpkg "net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gogama/requests/errs"
	"golang.org/x/net/idna"
)

const (
	unreservedPunct    = "-._~"
	safeWithPercent    = "!#$%&'()*+,/:;=?@[]~"
	safeWithoutPercent = "!#$&'()*+,/:;=?@[]~"
)

// DefaultSchemes lists the URL schemes Prepare accepts when Params
// does not say otherwise.
var DefaultSchemes = []string{"http", "https"}

// RequoteURI percent-encodes the characters of uri which may not
// appear in a URI, without double-encoding escapes which are already
// present. Escapes of unreserved characters are decoded. Applying
// RequoteURI to its own output returns the output unchanged.
func RequoteURI(uri string) string {
	if s, ok := unquoteUnreserved(uri); ok {
		return quote(s, safeWithPercent)
	}
	return quote(uri, safeWithoutPercent)
}

// unquoteUnreserved decodes percent-escapes of unreserved characters
// and leaves every other escape intact. It reports false if uri holds
// a malformed escape made of two alphanumerics, such as "%zz".
func unquoteUnreserved(uri string) (string, bool) {
	var b strings.Builder
	b.Grow(len(uri))
	for i := 0; i < len(uri); i++ {
		c := uri[i]
		if c != '%' || i+2 >= len(uri) {
			b.WriteByte(c)
			continue
		}
		h := uri[i+1 : i+3]
		if !isAlnum(h[0]) || !isAlnum(h[1]) {
			b.WriteByte(c)
			continue
		}
		v, err := strconv.ParseUint(h, 16, 8)
		if err != nil {
			return "", false
		}
		if isUnreserved(byte(v)) {
			b.WriteByte(byte(v))
		} else {
			b.WriteByte('%')
			b.WriteString(h)
		}
		i += 2
	}
	return b.String(), true
}

func quote(s, safe string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || strings.IndexByte(safe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0xf])
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

func isUnreserved(c byte) bool {
	return isAlnum(c) || strings.IndexByte(unreservedPunct, c) >= 0
}

// prepareURL parses, validates, and normalises rawURL, appending the
// encoded params to its query string. It returns the credentials held
// in the URL's userinfo, which are removed from the returned URL.
func prepareURL(rawURL, params string, schemes []string) (*urlpkg.URL, *urlpkg.Userinfo, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, nil, errs.Newf(errs.URLRequired, "prepare", "", "no URL supplied")
	}
	u, err := urlpkg.Parse(rawURL)
	if err != nil {
		return nil, nil, errs.New(errs.InvalidURL, "prepare", rawURL, unwrapURLError(err))
	}
	if u.Scheme == "" {
		return nil, nil, errs.Newf(errs.MissingSchema, "prepare", rawURL,
			"no scheme supplied, perhaps you meant https://"+rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if len(schemes) == 0 {
		schemes = DefaultSchemes
	}
	if !contains(schemes, u.Scheme) {
		return nil, nil, errs.Newf(errs.InvalidSchema, "prepare", rawURL,
			"no connection adapter for scheme "+strconv.Quote(u.Scheme))
	}
	if u.Opaque != "" {
		return nil, nil, errs.Newf(errs.InvalidURL, "prepare", rawURL, "URL is not hierarchical")
	}
	if u.Host == "" {
		return nil, nil, errs.Newf(errs.InvalidURL, "prepare", rawURL, "no host supplied")
	}
	host, err := asciiHost(u.Hostname())
	if err != nil {
		return nil, nil, errs.New(errs.InvalidURL, "prepare", rawURL, err)
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}

	user := u.User
	u.User = nil

	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	if params != "" {
		if u.RawQuery != "" {
			u.RawQuery += "&" + params
		} else {
			u.RawQuery = params
		}
	}

	requoted := RequoteURI(u.String())
	u2, err := urlpkg.Parse(requoted)
	if err != nil {
		return nil, nil, errs.New(errs.InvalidURL, "prepare", rawURL, unwrapURLError(err))
	}
	return u2, user, nil
}

// ResolveLocation resolves the Location header of a redirect against
// base, the URL of the redirected request. A scheme-relative location
// takes the scheme of base, and base's fragment carries over when the
// location has none. The result is validated and normalised like the
// URL given to Prepare, and any userinfo in the location is dropped.
func ResolveLocation(base *urlpkg.URL, location string, schemes []string) (*urlpkg.URL, error) {
	location = strings.TrimSpace(location)
	ref, err := urlpkg.Parse(location)
	if err != nil {
		return nil, errs.New(errs.InvalidURL, "redirect", location, unwrapURLError(err))
	}
	u := base.ResolveReference(ref)
	if u.Fragment == "" && base.Fragment != "" {
		u.Fragment, u.RawFragment = base.Fragment, base.RawFragment
	}
	u2, _, err := prepareURL(u.String(), "", schemes)
	if err != nil {
		err.(*errs.Error).Op = "redirect"
		return nil, err
	}
	return u2, nil
}

// asciiHost converts an internationalised host name to its ASCII
// form. IP literals are returned unchanged.
func asciiHost(host string) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}
	if strings.HasPrefix(host, "*") || strings.HasPrefix(host, ".") {
		return "", errInvalidLabel
	}
	if isASCII(host) {
		return strings.ToLower(host), nil
	}
	a, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", errInvalidLabel
	}
	return a, nil
}

var errInvalidLabel = errors.New("URL has an invalid label")

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func unwrapURLError(err error) error {
	if ue, ok := err.(*urlpkg.Error); ok {
		return ue.Err
	}
	return err
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}
