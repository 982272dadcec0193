package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/chatlings/internal/apperr"
)

// statusFor maps an error kind to its HTTP status
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindStateConflict:
		return http.StatusConflict
	case apperr.KindProvider:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// toHTTPError converts service errors into echo errors with a stable body:
// {"error": code, "message": text}. Internal details are never exposed.
func toHTTPError(err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Error().Err(err).Msg("Unhandled API error")
		return echo.NewHTTPError(http.StatusInternalServerError, echo.Map{
			"error":   "internal",
			"message": "internal server error",
		})
	}
	status := statusFor(ae.Kind)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", ae.Code).Msg("API request failed")
	}
	return echo.NewHTTPError(status, echo.Map{
		"error":   ae.Code,
		"message": ae.Message,
	}).SetInternal(err)
}

// errorHandler renders echo errors; plain string messages get the same envelope
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = toHTTPError(err).(*echo.HTTPError)
		}
		body := he.Message
		if msg, ok := he.Message.(string); ok {
			body = echo.Map{"error": http.StatusText(he.Code), "message": msg}
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(he.Code)
		} else {
			err = c.JSON(he.Code, body)
		}
		if err != nil {
			e.Logger.Error(err)
		}
	}
}
