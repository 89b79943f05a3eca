package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/apperr"
)

// ErrorHandler renders every handler error as {"error": msg} with an
// optional "details" map.  Unexpected errors are logged and reported as a
// bare 500.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := render(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"error", err)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Warn("write error response failed", "error", err)
		}
	}
}

func render(err error) (int, echo.Map) {
	if ae, ok := apperr.As(err); ok {
		body := echo.Map{"error": ae.Message}
		if len(ae.Details) > 0 {
			body["details"] = ae.Details
		}
		return ae.Status, body
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, echo.Map{"error": msg}
	}
	return http.StatusInternalServerError, echo.Map{"error": "internal server error"}
}
