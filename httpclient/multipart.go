package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// FileUpload is a file part of a multipart form.
type FileUpload struct {
	// FieldName is the form field name, e.g. "upfile".
	FieldName string

	// FileName is the name the server sees.
	FileName string

	// Reader provides the file content.
	Reader io.Reader
}

type formField struct {
	key   string
	value string
}

// MultipartForm builds a multipart/form-data body. Parts are written in the
// order they were added.
//
// Example:
//
//	form := httpclient.NewMultipartForm().
//	    Field("mode", "regist").
//	    FileReader("upfile", "a.png", bytes.NewReader(img))
//	if err := form.Attach(req); err != nil {
//	    return err
//	}
type MultipartForm struct {
	fields []formField
	files  []FileUpload
}

// NewMultipartForm returns an empty form.
func NewMultipartForm() *MultipartForm {
	return &MultipartForm{}
}

// Field adds a form field.
func (f *MultipartForm) Field(key, value string) *MultipartForm {
	f.fields = append(f.fields, formField{key: key, value: value})
	return f
}

// FileReader adds a file part read from r.
func (f *MultipartForm) FileReader(fieldName, fileName string, r io.Reader) *MultipartForm {
	f.files = append(f.files, FileUpload{FieldName: fieldName, FileName: fileName, Reader: r})
	return f
}

// Encode writes the form and returns the body and its Content-Type. File
// readers are consumed.
func (f *MultipartForm) Encode() ([]byte, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	for _, field := range f.fields {
		if err := w.WriteField(field.key, field.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field.key, err)
		}
	}

	for _, file := range f.files {
		part, err := w.CreateFormFile(file.FieldName, file.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("create file %s: %w", file.FieldName, err)
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return nil, "", fmt.Errorf("write file %s: %w", file.FieldName, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return body.Bytes(), w.FormDataContentType(), nil
}

// Attach encodes the form into req's body. ContentLength and GetBody are
// set so the body can be measured and replayed.
func (f *MultipartForm) Attach(req *http.Request) error {
	body, contentType, err := f.Encode()
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(body))
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return nil
}
