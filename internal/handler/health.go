package handler // declare the package name; contains HTTP handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/portfolio-backend/internal/database"
)

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
	DB      *sql.DB
	Version string
	Now     func() time.Time
}

func NewHealthHandler(db *sql.DB, version string) *HealthHandler {
	return &HealthHandler{DB: db, Version: version, Now: time.Now}
}

// Health always answers 200 while the process is serving; a failing
// database ping is reported in the body as "degraded".
func (h *HealthHandler) Health(c echo.Context) error {
	status, dbStatus := "ok", "up"
	if h.DB != nil {
		if err := database.Ping(c.Request().Context(), h.DB); err != nil {
			status, dbStatus = "degraded", "down"
		}
	}
	return ok(c, http.StatusOK, echo.Map{
		"status":    status,
		"database":  dbStatus,
		"version":   h.Version,
		"timestamp": h.Now().UTC().Format(time.RFC3339),
	}, "")
}
