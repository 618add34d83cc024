package services

import "errors"

// Error kinds surfaced by the services. Callers match them with errors.Is;
// the returned errors wrap them with context.
var (
	// ErrValidation reports bad caller input.
	ErrValidation = errors.New("validation error")
	// ErrUnsupportedMediaType reports an upload outside the accepted formats.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrPayloadTooLarge reports an upload over the size limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrIO reports that storage could not be read or written.
	ErrIO = errors.New("storage failure")
)
