package handler // HTTP handlers: decode, validate, call a service, render

import (
	"errors"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/apperr"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/storage"
)

// getUserID returns the authenticated user or a 401.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, apperr.Unauthorized("authentication required")
	}
	return id, nil
}

// bind decodes the body into v and runs its Validate method.  ozzo field
// errors become a 400 with per-field details.
func bind(c echo.Context, v validation.Validatable) error {
	if err := c.Bind(v); err != nil {
		return apperr.BadRequest("invalid body")
	}
	return validationError(v.Validate())
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for field, fe := range verrs {
			details[field] = fe.Error()
		}
		return apperr.Validation(details)
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return apperr.Internal(err)
	}
	return apperr.BadRequest(err.Error())
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.BadRequest("invalid " + name)
	}
	return id, nil
}

func queryInt(c echo.Context, name string, def int) int {
	if n, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return n
	}
	return def
}

func queryUint(c echo.Context, name string) uint64 {
	n, _ := strconv.ParseUint(c.QueryParam(name), 10, 64)
	return n
}

// queryTime accepts RFC 3339 or a plain date.
func queryTime(c echo.Context, name string) (time.Time, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.BadRequest(name + " must be RFC 3339 or YYYY-MM-DD")
}

// formImage opens the multipart file under field and detects its type from
// the content.  The caller closes the returned file.
func formImage(c echo.Context, field string) (storage.Upload, multipart.File, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return storage.Upload{}, nil, apperr.BadRequest(field + " file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return storage.Upload{}, nil, apperr.BadRequest("cannot read " + field)
	}
	ct, r, err := storage.SniffContentType(f)
	if err != nil {
		_ = f.Close()
		return storage.Upload{}, nil, apperr.BadRequest("cannot read " + field)
	}
	return storage.Upload{Reader: r, Size: fh.Size, ContentType: ct}, f, nil
}
