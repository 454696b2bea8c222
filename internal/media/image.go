package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrInvalidImage is returned for payloads that are not an image
var ErrInvalidImage = errors.New("invalid image")

// Image is an uploaded image ready to be stored
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DecodeDataURI decodes "data:image/<subtype>;base64,<payload>".
// The file name is generated from the declared subtype, "svg+xml" gives ".svg".
func DecodeDataURI(uri string) (*Image, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return nil, fmt.Errorf("%w: expected a base64 data URI", ErrInvalidImage)
	}

	mediaType, encoding, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";")
	if encoding != "base64" {
		return nil, fmt.Errorf("%w: only base64 encoded data URIs are supported", ErrInvalidImage)
	}

	kind, subtype, ok := strings.Cut(strings.ToLower(mediaType), "/")
	if !ok || kind != "image" || subtype == "" {
		return nil, fmt.Errorf("%w: unsupported media type %q", ErrInvalidImage, mediaType)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	ext, _, _ := strings.Cut(subtype, "+")
	return newImage(uuid.New().String()+"."+ext, data)
}

// NewUpload wraps raw bytes of a multipart upload, keeping only the
// extension of the client supplied name
func NewUpload(filename string, data []byte) (*Image, error) {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = strings.ToLower(filename[i:])
	}
	if ext == "" {
		ext = mimetype.Detect(data).Extension()
	}
	return newImage(uuid.New().String()+ext, data)
}

func newImage(filename string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, fmt.Errorf("%w: content is %s", ErrInvalidImage, detected.String())
	}

	return &Image{
		Filename:    filename,
		ContentType: detected.String(),
		Data:        data,
	}, nil
}
