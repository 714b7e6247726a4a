package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/igor322/account-service/internal/api/handler"
	"github.com/igor322/account-service/internal/core/domain"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain errors to HTTP status codes through their status category.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", "details": [...]}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, handler.ErrorResponse) {
	// Echo's own errors (bind failures, 404 from router, timeouts, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, handler.ErrorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	var ve *domain.ValidationError
	switch domain.CategoryOf(err) {
	case domain.StatusClientError:
		if errors.As(err, &ve) {
			return http.StatusUnprocessableEntity, handler.ErrorResponse{Error: "validation failed", Details: ve.Fields}
		}
		return http.StatusBadRequest, handler.ErrorResponse{Error: err.Error()}
	case domain.StatusConflict:
		return http.StatusConflict, handler.ErrorResponse{Error: domain.ErrEmailTaken.Error()}
	case domain.StatusNotFound:
		return http.StatusNotFound, handler.ErrorResponse{Error: domain.ErrAccountNotFound.Error()}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, handler.ErrorResponse{Error: "internal server error"}
}
