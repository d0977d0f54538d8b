package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/op/go-logging"

	"github.com/iliyamo/movie-tracker/internal/store"
	"github.com/iliyamo/movie-tracker/internal/tracker"
)

var log = logging.MustGetLogger("handler")

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// statusOf maps a tracker or store error to an HTTP status.
func statusOf(err error) int {
	var remote *tracker.RemoteError
	switch {
	case tracker.IsValidation(err),
		errors.Is(err, tracker.ErrInvalidID),
		errors.Is(err, store.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, tracker.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &remote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as {"error": "..."} with the mapped status.
func writeError(c echo.Context, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
