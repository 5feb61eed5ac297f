package upload

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"

	"github.com/example/photo-describer/internal/capture"
)

const (
	// FieldName is the multipart part the gateway reads the photo from.
	FieldName = "image"

	// FileName is the filename sent with every photo.
	FileName = "photo.jpg"
)

// Request is an encoded multipart body ready to be POSTed.
type Request struct {
	Body        []byte
	ContentType string
}

// Encode wraps img in a single part multipart body.
func Encode(img capture.CapturedImage) (*Request, error) {
	if len(img.Bytes) == 0 {
		return nil, &capture.Error{Op: "upload.encode", Err: capture.ErrEmptyImage}
	}
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldName, FileName))
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(img.Bytes); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	return &Request{Body: body.Bytes(), ContentType: writer.FormDataContentType()}, nil
}
