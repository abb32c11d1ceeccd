package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/portfolio-backend/internal/apperror"
	"github.com/iliyamo/portfolio-backend/internal/model"
	"github.com/iliyamo/portfolio-backend/internal/service"
	"github.com/iliyamo/portfolio-backend/internal/utils"
)

// TokenVerifier checks access tokens.  *service.TokenService satisfies it.
type TokenVerifier interface {
	VerifyAccessToken(raw string) (*utils.AccessClaims, error)
}

// AccountFinder resolves the subject of a verified token.
type AccountFinder interface {
	GetByID(ctx context.Context, id uint64) (*model.Account, error)
}

// Auth bundles what the access control middleware needs.
type Auth struct {
	Tokens   TokenVerifier
	Accounts AccountFinder
}

// Authenticate walks the request through header -> token -> identity ->
// active account and rejects it with 401 at the first failed step.  On
// success the account is stored in the context (see CurrentAccount).
func (a Auth) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acc, err := a.resolve(c)
			if err != nil {
				return err
			}
			setAccount(c, acc)
			return next(c)
		}
	}
}

// OptionalAuth behaves like Authenticate but never rejects: any failure
// leaves the request anonymous.
func (a Auth) OptionalAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if acc, err := a.resolve(c); err == nil {
				setAccount(c, acc)
			}
			return next(c)
		}
	}
}

// RequireAdmin must run after Authenticate.  Authenticated non-admins get
// 403; a request without identity gets 401.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acc, ok := CurrentAccount(c)
			if !ok {
				return apperror.Authentication(apperror.CodeMissingCredentials, "Authentication required")
			}
			if !acc.IsAdmin() {
				return apperror.Forbidden("Administrator access required")
			}
			return next(c)
		}
	}
}

func (a Auth) resolve(c echo.Context) (*model.Account, error) {
	raw, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		return nil, apperror.Authentication(apperror.CodeMissingCredentials, "Access token is required")
	}
	claims, err := a.Tokens.VerifyAccessToken(raw)
	switch {
	case errors.Is(err, service.ErrExpiredToken):
		return nil, apperror.Authentication(apperror.CodeExpiredToken, "Access token has expired")
	case err != nil:
		return nil, apperror.Authentication(apperror.CodeInvalidToken, "Invalid access token")
	}
	id, err := service.AccountID(claims.RegisteredClaims)
	if err != nil {
		return nil, apperror.Authentication(apperror.CodeInvalidToken, "Invalid access token")
	}
	acc, err := a.Accounts.GetByID(c.Request().Context(), id)
	if err != nil || acc == nil || !acc.IsActive {
		return nil, apperror.Authentication(apperror.CodeUnauthorizedAccount, "Account not found or inactive")
	}
	return acc, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header.  The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	if tok == "" || strings.ContainsAny(tok, " \t") {
		return "", false
	}
	return tok, true
}
