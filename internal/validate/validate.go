// Package validate plugs go-playground/validator into echo and turns its
// errors into apperror field lists.
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/portfolio-backend/internal/apperror"
	"github.com/iliyamo/portfolio-backend/internal/model"
)

// VideoHosts lists the hosts accepted by the videourl rule.
var VideoHosts = map[string]bool{
	"youtube.com":      true,
	"www.youtube.com":  true,
	"m.youtube.com":    true,
	"youtu.be":         true,
	"vimeo.com":        true,
	"player.vimeo.com": true,
}

// Validator implements echo.Validator.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	// The URL rules accept "" so that an update can clear an optional link.
	_ = v.RegisterValidation("videourl", func(fl validator.FieldLevel) bool {
		u := fl.Field().String()
		return u == "" || IsVideoURL(u)
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool { return IsStrongPassword(fl.Field().String()) })
	_ = v.RegisterValidation("contactstatus", func(fl validator.FieldLevel) bool {
		_, ok := model.NormalizeContactStatus(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		u := fl.Field().String()
		return u == "" || IsHTTPURL(u)
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &Validator{v: v}
}

// Validate checks i and returns a ValidationError listing every failing
// field.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Internal("validation failed", err)
	}
	fields := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperror.FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return apperror.Validation("Validation failed", fields...)
}

// fieldPath drops the top-level struct name from the namespace so nested
// and slice fields read "technologies[0]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "videourl":
		return "must be a YouTube or Vimeo URL"
	case "httpurl":
		return "must be a valid http(s) URL"
	case "password":
		return "must contain at least one lowercase letter, one uppercase letter and one number"
	case "contactstatus":
		return "must be one of " + strings.Join(model.ContactStatuses, ", ")
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}

// IsVideoURL reports whether s is an http(s) URL on a known video host.
func IsVideoURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return VideoHosts[strings.ToLower(u.Hostname())]
}

// IsHTTPURL reports whether s is an absolute http(s) URL with a host.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsStrongPassword requires a lowercase letter, an uppercase letter and a
// digit.  Length is checked by the min tag.
func IsStrongPassword(s string) bool {
	var lower, upper, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}
