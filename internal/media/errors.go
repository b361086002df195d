package media

import (
	"errors"
	"fmt"
)

// ErrNoAssetSelected is returned when the picker produced nothing.
var ErrNoAssetSelected = errors.New("no image selected")

// ErrMalformedPayload is returned by Decode for anything that is not a
// base64 data URI.
var ErrMalformedPayload = errors.New("malformed image payload")

// SizeExceededError is returned when the encoded payload is over the limit.
type SizeExceededError struct {
	Size  int
	Limit int
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("image too large: encoded size %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

// UnsupportedTypeError is returned for assets that are not images.
type UnsupportedTypeError struct {
	MimeType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported media type %q", e.MimeType)
}
