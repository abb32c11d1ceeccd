package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/portfolio-backend/internal/apperror"
	"github.com/iliyamo/portfolio-backend/internal/middleware"
	"github.com/iliyamo/portfolio-backend/internal/model"
	"github.com/iliyamo/portfolio-backend/internal/repository"
)

// CachePurger drops cached public responses after a mutation.
type CachePurger interface {
	Purge(ctx context.Context)
}

// ProjectHandler serves the portfolio entries.
type ProjectHandler struct {
	Projects *repository.ProjectRepo
	Cache    CachePurger
}

func NewProjectHandler(projects *repository.ProjectRepo, cache CachePurger) *ProjectHandler {
	return &ProjectHandler{Projects: projects, Cache: cache}
}

const (
	defaultFeaturedLimit = 6
	maxFeaturedLimit     = 20
)

type createProjectReq struct {
	Title         string   `json:"title" validate:"required,notblank,min=3,max=100"`
	Description   string   `json:"description" validate:"required,notblank,min=10,max=1000"`
	VideoURL      *string  `json:"videoUrl" validate:"omitempty,max=500,videourl"`
	VideoTitle    *string  `json:"videoTitle" validate:"omitempty,max=200"`
	RepositoryURL *string  `json:"repositoryUrl" validate:"omitempty,max=500,httpurl"`
	Technologies  []string `json:"technologies" validate:"required,min=1,max=20,dive,notblank,max=50"`
	IsFeatured    bool     `json:"isFeatured"`
	DisplayOrder  int      `json:"displayOrder" validate:"gte=0,lte=100000"`
}

func (r *createProjectReq) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	trimPtr(r.VideoURL)
	trimPtr(r.VideoTitle)
	trimPtr(r.RepositoryURL)
	trimEach(r.Technologies)
}

// updateProjectReq: nil leaves a field unchanged; an empty string clears
// an optional field.
type updateProjectReq struct {
	Title         *string  `json:"title" validate:"omitempty,notblank,min=3,max=100"`
	Description   *string  `json:"description" validate:"omitempty,notblank,min=10,max=1000"`
	VideoURL      *string  `json:"videoUrl" validate:"omitempty,max=500,videourl"`
	VideoTitle    *string  `json:"videoTitle" validate:"omitempty,max=200"`
	RepositoryURL *string  `json:"repositoryUrl" validate:"omitempty,max=500,httpurl"`
	Technologies  []string `json:"technologies" validate:"omitempty,min=1,max=20,dive,notblank,max=50"`
	IsFeatured    *bool    `json:"isFeatured"`
	IsActive      *bool    `json:"isActive"`
	DisplayOrder  *int     `json:"displayOrder" validate:"omitempty,gte=0,lte=100000"`
}

func (r *updateProjectReq) normalize() {
	trimPtr(r.Title)
	trimPtr(r.Description)
	trimPtr(r.VideoURL)
	trimPtr(r.VideoTitle)
	trimPtr(r.RepositoryURL)
	trimEach(r.Technologies)
}

// optional trims s and maps "" to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		k := strings.ToLower(t)
		if t == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

func (h *ProjectHandler) purge(c echo.Context) {
	if h.Cache != nil {
		h.Cache.Purge(context.WithoutCancel(c.Request().Context()))
	}
}

func (h *ProjectHandler) list(c echo.Context, includeInactive bool) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return err
	}
	featured, err := boolParam(c, "featured")
	if err != nil {
		return err
	}
	q := repository.ProjectQuery{
		Search:          c.QueryParam("search"),
		Technology:      c.QueryParam("technology"),
		Featured:        featured,
		IncludeInactive: includeInactive,
		Page:            page,
		Limit:           limit,
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	items, total, err := h.Projects.List(ctx, q)
	if err != nil {
		return repoError(err, "Project")
	}
	return ok(c, http.StatusOK, ListData[model.Project]{Items: items, Pagination: model.NewPage(page, limit, total)}, "")
}

// List is the public listing.  Only admins may ask for inactive projects
// with includeInactive=true.
func (h *ProjectHandler) List(c echo.Context) error {
	include, err := boolParam(c, "includeInactive")
	if err != nil {
		return err
	}
	return h.list(c, include != nil && *include && middleware.IsAdminRequest(c))
}

// AdminList lists every project regardless of its active flag.
func (h *ProjectHandler) AdminList(c echo.Context) error {
	return h.list(c, true)
}

// Featured lists active featured projects in display order.
func (h *ProjectHandler) Featured(c echo.Context) error {
	limit := defaultFeaturedLimit
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxFeaturedLimit {
			return apperror.Validation("Invalid query parameter",
				apperror.FieldError{Field: "limit", Message: "must be an integer between 1 and " + strconv.Itoa(maxFeaturedLimit)})
		}
		limit = n
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.Projects.Featured(ctx, limit)
	if err != nil {
		return repoError(err, "Project")
	}
	return ok(c, http.StatusOK, items, "")
}

// Get returns one project.  Inactive projects are 404 except for admins.
func (h *ProjectHandler) Get(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	p, err := h.Projects.GetByID(ctx, id)
	if err != nil {
		return repoError(err, "Project")
	}
	if !p.IsActive && !middleware.IsAdminRequest(c) {
		return apperror.NotFound("Project not found")
	}
	return ok(c, http.StatusOK, p, "")
}

// Create stores a new project authored by the calling admin.
func (h *ProjectHandler) Create(c echo.Context) error {
	acc, _ := middleware.CurrentAccount(c)
	var req createProjectReq
	if err := bind(c, &req, false); err != nil {
		return err
	}
	p := &model.Project{
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		VideoURL:      optional(req.VideoURL),
		VideoTitle:    optional(req.VideoTitle),
		RepositoryURL: optional(req.RepositoryURL),
		Technologies:  cleanTags(req.Technologies),
		IsFeatured:    req.IsFeatured,
		DisplayOrder:  req.DisplayOrder,
		AuthorID:      acc.ID,
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Projects.Create(ctx, p); err != nil {
		return repoError(err, "Project")
	}
	p.AuthorName = acc.Name
	h.purge(c)
	return ok(c, http.StatusCreated, p, "Project created")
}

// Update applies the supplied fields to an existing project.
func (h *ProjectHandler) Update(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req updateProjectReq
	if err := bind(c, &req, false); err != nil {
		return err
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	p, err := h.Projects.GetByID(ctx, id)
	if err != nil {
		return repoError(err, "Project")
	}
	if req.Title != nil {
		p.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.VideoURL != nil {
		p.VideoURL = optional(req.VideoURL)
	}
	if req.VideoTitle != nil {
		p.VideoTitle = optional(req.VideoTitle)
	}
	if req.RepositoryURL != nil {
		p.RepositoryURL = optional(req.RepositoryURL)
	}
	if req.Technologies != nil {
		p.Technologies = cleanTags(req.Technologies)
	}
	if req.IsFeatured != nil {
		p.IsFeatured = *req.IsFeatured
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.DisplayOrder != nil {
		p.DisplayOrder = *req.DisplayOrder
	}
	if err := h.Projects.Update(ctx, p); err != nil {
		return repoError(err, "Project")
	}
	h.purge(c)
	return ok(c, http.StatusOK, p, "Project updated")
}

// Delete soft-deletes a project.
func (h *ProjectHandler) Delete(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Projects.SoftDelete(ctx, id); err != nil {
		return repoError(err, "Project")
	}
	h.purge(c)
	return ok(c, http.StatusOK, echo.Map{"id": id, "isActive": false}, "Project deleted")
}

// ToggleFeatured flips isFeatured and reports the new value.
func (h *ProjectHandler) ToggleFeatured(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	p, err := h.Projects.GetByID(ctx, id)
	if err != nil {
		return repoError(err, "Project")
	}
	next := !p.IsFeatured
	if err := h.Projects.SetFeatured(ctx, id, next); err != nil {
		return repoError(err, "Project")
	}
	h.purge(c)
	msg := "Project removed from featured"
	if next {
		msg = "Project marked as featured"
	}
	return ok(c, http.StatusOK, echo.Map{"id": id, "isFeatured": next}, msg)
}
