package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// File is one file part of a multipart form.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// Field is one text part of a multipart form.
type Field struct {
	Name  string
	Value string
}

// Form is a multipart body. Parts are written in order, fields first.
type Form struct {
	Fields []Field
	Files  []File
}

// ReadFile buffers r into a File so the form can be replayed on retries.
func ReadFile(field, name, contentType string, r io.Reader, limit int64) (File, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) > limit {
		return File{}, fmt.Errorf("%s: %w", name, ErrUploadTooLarge)
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return File{Field: field, Name: name, ContentType: contentType, Data: data}, nil
}

// NewUploadRequest encodes form once into a POST request. The bytes are
// replayed unchanged by every attempt.
func NewUploadRequest(path string, form Form, opts ...RequestOption) (Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range form.Fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return Request{}, fmt.Errorf("write field %s: %w", f.Name, err)
		}
	}
	for _, f := range form.Files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(f.Field), quoteEscaper.Replace(f.Name)))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return Request{}, fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return Request{}, fmt.Errorf("write part %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return Request{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req := NewRequest(http.MethodPost, path, nil, opts...)
	req.RawBody = buf.Bytes()
	req.ContentType = w.FormDataContentType()
	return req, nil
}
