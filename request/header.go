// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gogama/requests/errs"
	"golang.org/x/net/http/httpguts"
)

// MergeHeaders returns a new header holding every key of base, with
// each key present in override replacing the same key of base. Keys
// compare case-insensitively.
//
// A key in override with a nil value deletes the key, which lets a
// caller suppress a session default such as User-Agent.
func MergeHeaders(base, override http.Header) http.Header {
	h := make(http.Header, len(base)+len(override))
	for k, vs := range base {
		h[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	for k, vs := range override {
		ck := http.CanonicalHeaderKey(k)
		if vs == nil {
			delete(h, ck)
			continue
		}
		h[ck] = append([]string(nil), vs...)
	}
	return h
}

// ValidateHeader checks that every header name is a valid token and
// every value is transmissible: no CR or LF, no other control
// character except tab, and no leading whitespace.
func ValidateHeader(h http.Header) error {
	for k, vs := range h {
		if !httpguts.ValidHeaderFieldName(k) {
			return errs.Newf(errs.InvalidHeader, "prepare", "", fmt.Sprintf("invalid header name %q", k))
		}
		for _, v := range vs {
			if !validHeaderValue(v) {
				return errs.Newf(errs.InvalidHeader, "prepare", "",
					fmt.Sprintf("invalid value for header %q: %q", k, v))
			}
		}
	}
	return nil
}

func validHeaderValue(v string) bool {
	if v == "" {
		return true
	}
	if v[0] == ' ' || v[0] == '\t' {
		return false
	}
	return httpguts.ValidHeaderFieldValue(v)
}

func prepareMethod(method string) (string, error) {
	if method == "" {
		return "", errs.Newf(errs.InvalidRequest, "prepare", "", "empty method")
	}
	if !validMethod(method) {
		return "", errs.Newf(errs.InvalidRequest, "prepare", "", fmt.Sprintf("invalid method %q", method))
	}
	return strings.ToUpper(method), nil
}

func validMethod(method string) bool {
	/*
	     Method         = "OPTIONS"                ; Section 9.2
	                    | "GET"                    ; Section 9.3
	                    | "HEAD"                   ; Section 9.4
	                    | "POST"                   ; Section 9.5
	                    | "PUT"                    ; Section 9.6
	                    | "DELETE"                 ; Section 9.7
	                    | "TRACE"                  ; Section 9.8
	                    | "CONNECT"                ; Section 9.9
	                    | extension-method
	   extension-method = token
	     token          = 1*<any CHAR except CTLs or separators>
	*/
	return strings.IndexFunc(method, isNotToken) == -1
}

func isNotToken(r rune) bool {
	return !httpguts.IsTokenRune(r)
}
