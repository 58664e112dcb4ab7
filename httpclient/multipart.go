package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// MultipartBody is a multipart/form-data body. It is encoded again for
// every attempt, so a retried upload resends the whole file.
type MultipartBody struct {
	Fields map[string]string
	Files  []FileField
}

// FileField is one file part. Open takes precedence over Data.
type FileField struct {
	FieldName   string
	FileName    string
	ContentType string
	Data        []byte
	// Open is called once per attempt.
	Open func() (io.ReadCloser, error)
}

// FileFromPath streams the file at path without loading it into memory.
func FileFromPath(field, path, contentType string) FileField {
	return FileField{
		FieldName:   field,
		FileName:    filepath.Base(path),
		ContentType: contentType,
		Open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// encode opens every file up front, so a missing file fails the request
// before anything is sent, then streams the form through a pipe.
func (m *MultipartBody) encode() (io.Reader, string, error) {
	sources := make([]io.Reader, len(m.Files))
	var closers []io.Closer
	for i, f := range m.Files {
		if f.Open == nil {
			sources[i] = bytes.NewReader(f.Data)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			closeAll(closers)
			return nil, "", fmt.Errorf("multipart %s: %w", f.FieldName, err)
		}
		sources[i] = rc
		closers = append(closers, rc)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer closeAll(closers)
		pw.CloseWithError(m.write(mw, sources))
	}()
	return pr, mw.FormDataContentType(), nil
}

func (m *MultipartBody) write(mw *multipart.Writer, sources []io.Reader) error {
	for name, value := range m.Fields {
		if err := mw.WriteField(name, value); err != nil {
			return err
		}
	}
	for i, f := range m.Files {
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.FieldName), quoteEscaper.Replace(f.FileName)))
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, sources[i]); err != nil {
			return fmt.Errorf("multipart %s: %w", f.FieldName, err)
		}
	}
	return mw.Close()
}

func closeAll(cs []io.Closer) {
	for _, c := range cs {
		_ = c.Close()
	}
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
