package binder

import "errors"

// Common binding errors
var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrInvalidJSON          = errors.New("invalid JSON")
	ErrInvalidQuery         = errors.New("invalid query parameter")
	ErrMissingContentType   = errors.New("missing content type")
	ErrBodyTooLarge         = errors.New("request body too large")

	// ErrBinderNotApplicable lets a binder opt out for a request it does not
	// handle. handler.Wrap skips it and moves on to the next binder.
	ErrBinderNotApplicable = errors.New("binder not applicable")
)
