package middleware

// identity.go holds the context accessors for the authenticated account.
// Handlers and the rate limiter read the identity through these helpers
// rather than touching the context key directly.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/portfolio-backend/internal/model"
)

const accountKey = "account"

func setAccount(c echo.Context, a *model.Account) { c.Set(accountKey, a) }

// CurrentAccount returns the account resolved by Authenticate or
// OptionalAuth, if any.
func CurrentAccount(c echo.Context) (*model.Account, bool) {
	a, ok := c.Get(accountKey).(*model.Account)
	return a, ok && a != nil
}

// IsAdminRequest reports whether the request carries an admin identity.
func IsAdminRequest(c echo.Context) bool {
	a, ok := CurrentAccount(c)
	return ok && a.IsAdmin()
}

// userID returns the account id as a string, or "anon".
func userID(c echo.Context) string {
	if a, ok := CurrentAccount(c); ok {
		return strconv.FormatUint(a.ID, 10)
	}
	return "anon"
}
