package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/iliyamo/portfolio-backend/internal/model"
)

// ProjectQuery defines filters & pagination for listing projects.
type ProjectQuery struct {
	Search          string
	Technology      string
	Featured        *bool
	IncludeInactive bool
	Page            int
	Limit           int
}

// ProjectRepo encapsulates all database queries related to projects.
type ProjectRepo struct {
	db  *sql.DB
	now Clock
}

func NewProjectRepo(db *sql.DB, now Clock) *ProjectRepo { return &ProjectRepo{db: db, now: now} }

const projectSelect = `SELECT p.id, p.title, p.description, p.video_url, p.video_title, p.repository_url,
	p.technologies, p.is_featured, p.is_active, p.display_order, p.author_id, COALESCE(u.name, ''),
	p.created_at, p.updated_at
	FROM projects p
	LEFT JOIN users u ON u.id = p.author_id`

const projectOrder = " ORDER BY p.display_order ASC, p.created_at DESC, p.id DESC"

func scanProject(row interface{ Scan(...any) error }) (*model.Project, error) {
	var (
		p                  model.Project
		video, title, repo sql.NullString
		techJSON           string
	)
	err := row.Scan(&p.ID, &p.Title, &p.Description, &video, &title, &repo,
		&techJSON, &p.IsFeatured, &p.IsActive, &p.DisplayOrder, &p.AuthorID, &p.AuthorName,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.VideoURL = fromNull(video)
	p.VideoTitle = fromNull(title)
	p.RepositoryURL = fromNull(repo)
	if err := json.Unmarshal([]byte(techJSON), &p.Technologies); err != nil {
		return nil, err
	}
	if p.Technologies == nil {
		p.Technologies = []string{}
	}
	return &p, nil
}

func scanProjects(rows *sql.Rows) ([]model.Project, error) {
	defer rows.Close()
	out := make([]model.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// encodeJSON marshals v without HTML escaping so that stored tags such as
// "R&D" stay searchable with LIKE.
func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Create inserts a new project and populates ID and timestamps.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	tech, err := encodeJSON(p.Technologies)
	if err != nil {
		return err
	}
	now := r.now.now()
	const q = `INSERT INTO projects
		(title, description, video_url, video_title, repository_url, technologies,
		 is_featured, is_active, display_order, author_id, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q, p.Title, p.Description, p.VideoURL, p.VideoTitle,
		p.RepositoryURL, string(tech), p.IsFeatured, true, p.DisplayOrder, p.AuthorID, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.IsActive = true
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// GetByID fetches a project regardless of its active flag.
func (r *ProjectRepo) GetByID(ctx context.Context, id uint64) (*model.Project, error) {
	return scanProject(r.db.QueryRowContext(ctx, projectSelect+" WHERE p.id = ?", id))
}

// List returns one page of projects and the total number of matches.
// Inactive projects are excluded unless q.IncludeInactive is set.
func (r *ProjectRepo) List(ctx context.Context, q ProjectQuery) ([]model.Project, int64, error) {
	where := []string{}
	args := []any{}

	if !q.IncludeInactive {
		where = append(where, "p.is_active = ?")
		args = append(args, true)
	}
	if q.Featured != nil {
		where = append(where, "p.is_featured = ?")
		args = append(args, *q.Featured)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		pat := likePattern(s)
		where = append(where, "(LOWER(p.title) LIKE ? ESCAPE '!' OR LOWER(p.description) LIKE ? ESCAPE '!' OR LOWER(p.technologies) LIKE ? ESCAPE '!')")
		args = append(args, pat, pat, pat)
	}
	if t := strings.TrimSpace(q.Technology); t != "" {
		// technologies is a JSON array, so a quoted match pins whole tags.
		where = append(where, "LOWER(p.technologies) LIKE ? ESCAPE '!'")
		quoted, err := encodeJSON(t)
		if err != nil {
			return nil, 0, err
		}
		args = append(args, likePattern(quoted))
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects p WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataArgs := append(append([]any{}, args...), q.Limit, (q.Page-1)*q.Limit)
	rows, err := r.db.QueryContext(ctx, projectSelect+" WHERE "+cond+projectOrder+" LIMIT ? OFFSET ?", dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	items, err := scanProjects(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Featured returns up to limit active featured projects in display order.
func (r *ProjectRepo) Featured(ctx context.Context, limit int) ([]model.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		projectSelect+" WHERE p.is_active = ? AND p.is_featured = ?"+projectOrder+" LIMIT ?",
		true, true, limit)
	if err != nil {
		return nil, err
	}
	return scanProjects(rows)
}

// Update writes every mutable field of p.
func (r *ProjectRepo) Update(ctx context.Context, p *model.Project) error {
	tech, err := encodeJSON(p.Technologies)
	if err != nil {
		return err
	}
	now := r.now.now()
	const q = `UPDATE projects SET
		title = ?, description = ?, video_url = ?, video_title = ?, repository_url = ?,
		technologies = ?, is_featured = ?, is_active = ?, display_order = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, p.Title, p.Description, p.VideoURL, p.VideoTitle,
		p.RepositoryURL, string(tech), p.IsFeatured, p.IsActive, p.DisplayOrder, now, p.ID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// SoftDelete clears is_active.  The row stays in storage.
func (r *ProjectRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE projects SET is_active = ?, updated_at = ? WHERE id = ?", false, r.now.now(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetFeatured stores the featured flag.
func (r *ProjectRepo) SetFeatured(ctx context.Context, id uint64, featured bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE projects SET is_featured = ?, updated_at = ? WHERE id = ?", featured, r.now.now(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
