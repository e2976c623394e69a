// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command requests sends one HTTP request and prints the response.
//
//	requests https://httpbin.org/get
//	requests -X POST --json '{"a": 1}' https://httpbin.org/post
//	requests -u user:pass --digest -i https://httpbin.org/digest-auth/auth/user/pass
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
