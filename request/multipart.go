// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
)

// A File is one file part of a multipart/form-data body.
//
// The content comes from Data or, if Data is nil, from Reader. A
// Reader which cannot seek makes the whole request body one-shot.
type File struct {
	// Field is the form field name. It is required.
	Field string
	// Name is the file name sent in the Content-Disposition header. It
	// may be empty.
	Name string

	Data   []byte
	Reader io.Reader

	// ContentType is the part's Content-Type. If empty,
	// "application/octet-stream" is used.
	ContentType string

	// Header holds extra part headers.
	Header textproto.MIMEHeader
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (f *File) partHeader() textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	for k, vs := range f.Header {
		h[textproto.CanonicalMIMEHeaderKey(k)] = append([]string(nil), vs...)
	}
	cd := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(f.Field))
	if f.Name != "" {
		cd += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(f.Name))
	}
	h.Set("Content-Disposition", cd)
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	return h
}

func (f *File) buffered() bool {
	if f.Data != nil || f.Reader == nil {
		return true
	}
	switch f.Reader.(type) {
	case *bytes.Buffer, io.ReadSeeker:
		return true
	}
	return false
}

// newBoundary returns a random multipart boundary.
func newBoundary() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// encodeMultipart builds a multipart/form-data body holding fields
// followed by files. If every file is buffered in memory or can seek,
// the body is encoded eagerly and is replayable. Otherwise it is
// encoded lazily as it is sent, and is one-shot with unknown length.
func encodeMultipart(fields []field, files []File) (*Body, string, error) {
	for i := range files {
		if files[i].Field == "" {
			return nil, "", errors.New("multipart file has no field name")
		}
	}
	boundary := newBoundary()
	contentType := "multipart/form-data; boundary=" + boundary

	lazy := false
	for i := range files {
		if !files[i].buffered() {
			lazy = true
			break
		}
	}

	if !lazy {
		var buf bytes.Buffer
		if err := writeMultipart(&buf, boundary, fields, files); err != nil {
			return nil, "", err
		}
		return NewBody(buf.Bytes()), contentType, nil
	}

	return newLazyBody(func() io.ReadCloser {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(writeMultipart(pw, boundary, fields, files))
		}()
		return pr
	}), contentType, nil
}

func writeMultipart(w io.Writer, boundary string, fields []field, files []File) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return err
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}
	for i := range files {
		f := &files[i]
		part, err := mw.CreatePart(f.partHeader())
		if err != nil {
			return err
		}
		if f.Data != nil || f.Reader == nil {
			_, err = part.Write(f.Data)
		} else {
			_, err = io.Copy(part, f.Reader)
		}
		if err != nil {
			return err
		}
	}
	return mw.Close()
}
