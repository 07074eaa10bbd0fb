package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ztruyen/ztc-auth/binder"
	"github.com/ztruyen/ztc-auth/pkg/logger"
	"github.com/ztruyen/ztc-auth/pkg/requestid"
	"github.com/ztruyen/ztc-auth/pkg/validator"
)

// ErrorMapper translates a domain error into an HTTPError. It returns the
// error unchanged when it does not recognise it.
type ErrorMapper func(error) error

// ErrorHandlerOption configures NewErrorHandler.
type ErrorHandlerOption func(*errorHandlerConfig)

type errorHandlerConfig struct {
	mappers []ErrorMapper
}

// WithErrorMapper registers a domain error mapper. Mappers run in order
// until one yields an HTTPError.
func WithErrorMapper(m ErrorMapper) ErrorHandlerOption {
	return func(c *errorHandlerConfig) {
		if m != nil {
			c.mappers = append(c.mappers, m)
		}
	}
}

// Classify resolves err to a status code and the error body sent to the
// client. Unrecognised errors become a generic 500 so internal details never
// reach the response.
func Classify(err error, mappers ...ErrorMapper) (int, *ErrorDetail) {
	for _, m := range mappers {
		err = m(err)
	}

	if verrs := validator.ExtractValidationErrors(err); verrs != nil {
		return http.StatusUnprocessableEntity, &ErrorDetail{
			Code:    "validation_error",
			Message: "Request validation failed",
			Details: verrs.Map(),
		}
	}

	var httpErr HTTPError
	switch {
	case errors.As(err, &httpErr):
	case errors.Is(err, binder.ErrMissingContentType), errors.Is(err, binder.ErrUnsupportedMediaType):
		httpErr = ErrUnsupportedMediaType
	case errors.Is(err, binder.ErrBodyTooLarge):
		httpErr = ErrRequestTooLarge
	case errors.Is(err, binder.ErrInvalidJSON), errors.Is(err, binder.ErrInvalidQuery):
		httpErr = ErrBadRequest
	default:
		httpErr = ErrInternal
	}

	return httpErr.Code, &ErrorDetail{Code: httpErr.Key, Message: httpErr.message()}
}

// NewErrorHandler creates the JSON error handler. Client errors are logged
// at warn level and server errors at error level, both with the request id.
func NewErrorHandler(log *slog.Logger, opts ...ErrorHandlerOption) ErrorHandler[Context] {
	if log == nil {
		log = logger.Noop()
	}
	var cfg errorHandlerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx Context, err error) {
		r := ctx.Request()
		status, detail := Classify(err, cfg.mappers...)

		level := slog.LevelError
		if status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.LogAttrs(r.Context(), level, "request error",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("error_handler"),
		)

		resp := jsonResponse{status: status, body: JSONResponse{Error: detail}}
		if renderErr := resp.Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.LogAttrs(r.Context(), slog.LevelError, "failed to render error response",
				logger.Error(renderErr),
				logger.Component("error_handler"),
			)
		}
	}
}
