package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/portfolio-backend/internal/apperror"
	"github.com/iliyamo/portfolio-backend/internal/model"
	"github.com/iliyamo/portfolio-backend/internal/repository"
)

// dbTimeout bounds the persistence calls of a single request.
const dbTimeout = 5 * time.Second

// Envelope is the JSON shape of every response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ListData is the payload of paginated list endpoints.
type ListData[T any] struct {
	Items      []T        `json:"items"`
	Pagination model.Page `json:"pagination"`
}

func ok(c echo.Context, status int, data any, msg string) error {
	return c.JSON(status, Envelope{Success: true, Data: data, Message: msg})
}

func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// NewErrorHandler renders every error returned by a handler or middleware
// into the envelope.  Internal error detail is only exposed in development.
func NewErrorHandler(logger *slog.Logger, development bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := renderError(err, development)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "method", c.Request().Method, "path", c.Path(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID), "err", err)
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Warn("write error response", "err", werr)
		}
	}
}

func renderError(err error, development bool) (int, Envelope) {
	if ae, ok := apperror.As(err); ok {
		body := Envelope{Error: ae.Name(), Message: ae.Message}
		if len(ae.Fields) > 0 {
			body.Details = ae.Fields
		}
		if ae.Kind == apperror.KindInternal && development && ae.Err != nil {
			body.Details = ae.Err.Error()
		}
		return ae.Kind.Status(), body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		name := "HTTPError"
		switch he.Code {
		case http.StatusNotFound:
			name = apperror.KindNotFound.String()
		case http.StatusMethodNotAllowed:
			name = "MethodNotAllowed"
		case http.StatusUnauthorized:
			name = apperror.KindAuthentication.String()
		case http.StatusBadRequest:
			name = apperror.KindValidation.String()
		case http.StatusRequestEntityTooLarge:
			name = "PayloadTooLarge"
		}
		if he.Code >= http.StatusInternalServerError {
			return renderError(apperror.Internal("Internal server error", err), development)
		}
		return he.Code, Envelope{Error: name, Message: msg}
	}

	body := Envelope{Error: apperror.KindInternal.String(), Message: "Internal server error"}
	if development {
		body.Details = err.Error()
	}
	return http.StatusInternalServerError, body
}

// repoError translates repository sentinels into taxonomy kinds.
func repoError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound(what + " not found")
	case errors.Is(err, repository.ErrDuplicate):
		return apperror.Conflict(what + " already exists")
	default:
		return apperror.Internal("Internal server error", err)
	}
}

// bind decodes the JSON body strictly into dst and validates it.  Unknown
// fields and trailing data are rejected.  An empty body decodes to the
// zero value when allowEmpty is set.
// normalizer is implemented by request bodies that clean their fields
// after decoding.  Validation then measures the values that get stored.
type normalizer interface{ normalize() }

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func trimEach(ss []string) {
	for i := range ss {
		ss[i] = strings.TrimSpace(ss[i])
	}
}

func bind(c echo.Context, dst any, allowEmpty bool) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20+1))
	if err != nil {
		return apperror.Validation("Could not read request body")
	}
	if len(body) > 1<<20 {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if !allowEmpty {
			return apperror.Validation("Request body is required")
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil {
			return decodeError(err)
		}
		if dec.More() {
			return apperror.Validation("Request body must contain a single JSON object")
		}
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	return c.Validate(dst)
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		return apperror.Validation("Invalid request body",
			apperror.FieldError{Field: typeErr.Field, Message: "must be of type " + typeErr.Type.String()})
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return apperror.Validation("Malformed JSON body")
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return apperror.Validation("Invalid request body",
			apperror.FieldError{Field: field, Message: "is not allowed"})
	}
	return apperror.Validation("Invalid request body")
}

// pageParams reads page (>=1, default 1) and limit (1..100, default 10).
// Out-of-range values are reported together.
func pageParams(c echo.Context) (page, limit int, err error) {
	page, limit = 1, 10
	var fields []apperror.FieldError
	if s := c.QueryParam("page"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil || n < 1 {
			fields = append(fields, apperror.FieldError{Field: "page", Message: "must be an integer >= 1"})
		} else {
			page = n
		}
	}
	if s := c.QueryParam("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil || n < 1 || n > 100 {
			fields = append(fields, apperror.FieldError{Field: "limit", Message: "must be an integer between 1 and 100"})
		} else {
			limit = n
		}
	}
	if len(fields) > 0 {
		return 0, 0, apperror.Validation("Invalid pagination parameters", fields...)
	}
	return page, limit, nil
}

// boolParam parses an optional boolean query parameter.
func boolParam(c echo.Context, name string) (*bool, error) {
	s := c.QueryParam(name)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, apperror.Validation("Invalid query parameter",
			apperror.FieldError{Field: name, Message: "must be true or false"})
	}
	return &b, nil
}

// idParam parses the :id path segment.
func idParam(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("Invalid id",
			apperror.FieldError{Field: "id", Message: fmt.Sprintf("must be a positive integer, got %q", c.Param("id"))})
	}
	return id, nil
}
