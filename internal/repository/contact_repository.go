package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/portfolio-backend/internal/model"
)

// ContactQuery defines filters & pagination for the admin inbox.
type ContactQuery struct {
	Search string
	Status string
	Page   int
	Limit  int
}

// ContactRepo persists contact messages.  Messages are hard-deleted.
type ContactRepo struct {
	db  *sql.DB
	now Clock
}

func NewContactRepo(db *sql.DB, now Clock) *ContactRepo { return &ContactRepo{db: db, now: now} }

const contactSelect = `SELECT id, name, email, subject, message, phone, status, admin_notes,
	responded_at, created_at, updated_at FROM contacts`

func scanContact(row interface{ Scan(...any) error }) (*model.ContactMessage, error) {
	var (
		c                     model.ContactMessage
		subject, phone, notes sql.NullString
		responded             sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &subject, &c.Message, &phone, &c.Status, &notes,
		&responded, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Subject = fromNull(subject)
	c.Phone = fromNull(phone)
	c.AdminNotes = fromNull(notes)
	if responded.Valid {
		t := responded.Time
		c.RespondedAt = &t
	}
	return &c, nil
}

func scanContacts(rows *sql.Rows) ([]model.ContactMessage, error) {
	defer rows.Close()
	out := make([]model.ContactMessage, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create inserts a new message with status PENDING.
func (r *ContactRepo) Create(ctx context.Context, c *model.ContactMessage) error {
	now := r.now.now()
	c.Status = model.ContactPending
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO contacts (name, email, subject, message, phone, status, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		c.Name, c.Email, c.Subject, c.Message, c.Phone, c.Status, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// GetByID fetches one message.
func (r *ContactRepo) GetByID(ctx context.Context, id uint64) (*model.ContactMessage, error) {
	return scanContact(r.db.QueryRowContext(ctx, contactSelect+" WHERE id = ?", id))
}

// List returns one page of messages, newest first, and the match count.
func (r *ContactRepo) List(ctx context.Context, q ContactQuery) ([]model.ContactMessage, int64, error) {
	where := []string{}
	args := []any{}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		pat := likePattern(s)
		where = append(where, `(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!'
			OR LOWER(COALESCE(subject, '')) LIKE ? ESCAPE '!' OR LOWER(message) LIKE ? ESCAPE '!')`)
		args = append(args, pat, pat, pat, pat)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contacts WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	dataArgs := append(append([]any{}, args...), q.Limit, (q.Page-1)*q.Limit)
	rows, err := r.db.QueryContext(ctx,
		contactSelect+" WHERE "+cond+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?", dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	items, err := scanContacts(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update stores status, admin notes and respondedAt of c.
func (r *ContactRepo) Update(ctx context.Context, c *model.ContactMessage) error {
	now := r.now.now()
	var responded any
	if c.RespondedAt != nil {
		responded = c.RespondedAt.UTC().Truncate(time.Microsecond)
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE contacts SET status = ?, admin_notes = ?, responded_at = ?, updated_at = ? WHERE id = ?",
		c.Status, c.AdminNotes, responded, now, c.ID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

// Delete removes a message permanently.
func (r *ContactRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM contacts WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// BulkUpdate applies status and/or notes to every listed message and
// returns the number of rows touched.  A nil argument leaves that column
// unchanged.  Moving to RESPONDED stamps responded_at once.
func (r *ContactRepo) BulkUpdate(ctx context.Context, ids []uint64, status, notes *string) (int64, error) {
	if len(ids) == 0 || (status == nil && notes == nil) {
		return 0, nil
	}
	now := r.now.now()
	sets := []string{"updated_at = ?"}
	args := []any{now}
	if status != nil {
		sets = append(sets,
			"responded_at = CASE WHEN ? = ? AND responded_at IS NULL THEN ? ELSE responded_at END",
			"status = ?")
		args = append(args, *status, model.ContactResponded, now, *status)
	}
	if notes != nil {
		sets = append(sets, "admin_notes = ?")
		args = append(args, *notes)
	}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE contacts SET "+strings.Join(sets, ", ")+" WHERE id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats computes the dashboard summary.  The monthly histogram covers the
// twelve calendar months ending with the current one, oldest first, and is
// bucketed in Go so the query stays portable across drivers.
func (r *ContactRepo) Stats(ctx context.Context) (*model.ContactStats, error) {
	now := r.now.now()
	st := &model.ContactStats{ByStatus: make(map[string]int64, len(model.ContactStatuses))}
	for _, s := range model.ContactStatuses {
		st.ByStatus[s] = 0
	}

	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM contacts GROUP BY status")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, err
		}
		st.ByStatus[status] = n
		st.Total += n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	recent, err := r.db.QueryContext(ctx, contactSelect+" ORDER BY created_at DESC, id DESC LIMIT 5")
	if err != nil {
		return nil, err
	}
	if st.Recent, err = scanContacts(recent); err != nil {
		return nil, err
	}

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
	buckets := make(map[string]int64, 12)
	st.Monthly = make([]model.MonthlyCount, 0, 12)
	for i := 0; i < 12; i++ {
		m := start.AddDate(0, i, 0).Format("2006-01")
		buckets[m] = 0
		st.Monthly = append(st.Monthly, model.MonthlyCount{Month: m})
	}
	created, err := r.db.QueryContext(ctx, "SELECT created_at FROM contacts WHERE created_at >= ?", start)
	if err != nil {
		return nil, err
	}
	defer created.Close()
	for created.Next() {
		var t time.Time
		if err := created.Scan(&t); err != nil {
			return nil, err
		}
		buckets[t.UTC().Format("2006-01")]++
	}
	if err := created.Err(); err != nil {
		return nil, err
	}
	for i := range st.Monthly {
		st.Monthly[i].Count = buckets[st.Monthly[i].Month]
	}
	return st, nil
}
