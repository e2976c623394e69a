// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gogama/requests"
	"github.com/gogama/requests/adapter"
	"github.com/gogama/requests/auth"
	"github.com/gogama/requests/config"
	"github.com/gogama/requests/request"
	"github.com/gogama/requests/timeout"
	"github.com/spf13/cobra"
)

type flags struct {
	config      string
	method      string
	headers     []string
	data        string
	json        string
	form        []string
	user        string
	digest      bool
	bearer      string
	timeout     time.Duration
	insecure    bool
	noRedirects bool
	include     bool
	fail        bool
	verbose     bool
	noColor     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "requests [flags] <url>",
		Short: "Send an HTTP request and print the response",
		Long: `requests sends one HTTP request through a requests Session, following
redirects, and prints the response body.

Session defaults are read from the file given by --config and from
REQUESTS_ environment variables. Flags override them.

Examples:
  requests https://httpbin.org/get
  requests -X PUT -d 'hello' -H 'Content-Type: text/plain' https://httpbin.org/put
  requests --json '{"a": 1}' https://httpbin.org/post
  requests -F name=gopher -F lang=go https://httpbin.org/post`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f, args[0], stdout, stderr)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "", "config file (YAML, JSON, or TOML)")
	fs.StringVarP(&f.method, "request", "X", "", "request method (default GET, or POST with a body)")
	fs.StringArrayVarP(&f.headers, "header", "H", nil, `request header "Name: value" (repeatable)`)
	fs.StringVarP(&f.data, "data", "d", "", "request body")
	fs.StringVar(&f.json, "json", "", "JSON request body")
	fs.StringArrayVarP(&f.form, "form", "F", nil, "form field name=value (repeatable)")
	fs.StringVarP(&f.user, "user", "u", "", "credentials user:password")
	fs.BoolVar(&f.digest, "digest", false, "use digest rather than basic authentication")
	fs.StringVar(&f.bearer, "bearer", "", "bearer token")
	fs.DurationVarP(&f.timeout, "timeout", "m", 0, "connect and read timeout of each attempt")
	fs.BoolVarP(&f.insecure, "insecure", "k", false, "skip TLS certificate verification")
	fs.BoolVar(&f.noRedirects, "no-redirects", false, "do not follow redirects")
	fs.BoolVarP(&f.include, "include", "i", false, "print the status line and headers")
	fs.BoolVar(&f.fail, "fail", false, "exit with an error on a 4xx or 5xx status")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log each hop and redirect")
	fs.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	cmd.MarkFlagsMutuallyExclusive("data", "json", "form")
	cmd.MarkFlagsMutuallyExclusive("user", "bearer")
	return cmd
}

func run(f *flags, rawURL string, stdout, stderr io.Writer) error {
	if f.noColor {
		color.NoColor = true
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if f.verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.Logging.Color = cfg.Logging.Color && !color.NoColor

	s, err := cfg.NewSessionWithLogger(cfg.Logger(stderr))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	opts, err := f.options()
	if err != nil {
		return err
	}

	method := strings.ToUpper(f.method)
	if method == "" {
		method = http.MethodGet
		if f.data != "" || f.json != "" || len(f.form) > 0 {
			method = http.MethodPost
		}
	}

	r, err := s.Request(method, rawURL, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	if f.include {
		for _, h := range r.History {
			printHead(stdout, h)
		}
		printHead(stdout, r)
	}
	if method != http.MethodHead {
		body, err := r.Text()
		if err != nil {
			return err
		}
		_, _ = io.WriteString(stdout, body)
		if body != "" && !strings.HasSuffix(body, "\n") {
			_, _ = io.WriteString(stdout, "\n")
		}
	}

	if f.fail {
		return r.RaiseForStatus()
	}
	return nil
}

func (f *flags) options() ([]requests.Option, error) {
	var opts []requests.Option
	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q: want \"Name: value\"", h)
		}
		opts = append(opts, requests.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}

	switch {
	case f.json != "":
		if !json.Valid([]byte(f.json)) {
			return nil, fmt.Errorf("invalid --json body")
		}
		opts = append(opts, requests.WithJSON(json.RawMessage(f.json)))
	case len(f.form) > 0:
		form := make(url.Values, len(f.form))
		for _, kv := range f.form {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return nil, fmt.Errorf("invalid form field %q: want name=value", kv)
			}
			form.Add(k, v)
		}
		opts = append(opts, requests.WithForm(form))
	case f.data != "":
		opts = append(opts, requests.WithData(f.data))
	}

	switch {
	case f.user != "":
		user, pass, _ := strings.Cut(f.user, ":")
		if f.digest {
			opts = append(opts, requests.WithAuth(auth.NewDigest(user, pass)))
		} else {
			opts = append(opts, requests.WithAuth(&auth.Basic{Username: user, Password: pass}))
		}
	case f.bearer != "":
		opts = append(opts, requests.WithAuth(&auth.Bearer{Token: f.bearer}))
	}

	if f.timeout > 0 {
		opts = append(opts, requests.WithTimeout(timeout.Fixed(f.timeout)))
	}
	if f.insecure {
		opts = append(opts, requests.WithVerify(adapter.VerifyNone))
	}
	if f.noRedirects {
		opts = append(opts, requests.WithAllowRedirects(false))
	}
	return opts, nil
}

// printHead prints the status line and headers of r.
func printHead(w io.Writer, r *request.Response) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	status := statusColor(r.StatusCode).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", r.Proto, status(fmt.Sprintf("%d %s", r.StatusCode, r.Reason)))
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range r.Header[name] {
			fmt.Fprintf(w, "%s: %s\n", bold(cyan(name)), v)
		}
	}
	fmt.Fprintln(w)
}

func statusColor(code int) *color.Color {
	switch {
	case code >= 500:
		return color.New(color.FgRed, color.Bold)
	case code >= 400:
		return color.New(color.FgRed)
	case code >= 300:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
