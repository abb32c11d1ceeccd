package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/portfolio-backend/internal/database"
	"github.com/iliyamo/portfolio-backend/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLiteMemory(context.Background())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

func strPtr(s string) *string { return &s }

func createAuthor(t *testing.T, db *sql.DB) *model.Account {
	t.Helper()
	a := &model.Account{Name: "Admin", Email: "Admin@Example.com ", PasswordHash: "h", Role: model.RoleAdmin}
	if err := NewAccountRepo(db, nil).Create(context.Background(), a); err != nil {
		t.Fatalf("create author: %v", err)
	}
	return a
}

func TestAccountRepo_CreateAndLookup(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepo(db, nil)
	ctx := context.Background()

	a := createAuthor(t, db)
	if a.Email != "admin@example.com" {
		t.Fatalf("email not normalised: %q", a.Email)
	}
	got, err := repo.GetByEmail(ctx, "ADMIN@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != a.ID || !got.IsActive || got.Role != model.RoleAdmin {
		t.Fatalf("unexpected account: %+v", got)
	}

	dup := &model.Account{Name: "Other", Email: "admin@example.com", PasswordHash: "h"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := repo.GetByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateProfile(ctx, 999, "x", "y@z.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing: expected ErrNotFound, got %v", err)
	}
}

func TestProjectRepo_ListFiltersAndSoftDelete(t *testing.T) {
	db := newTestDB(t)
	author := createAuthor(t, db)
	ctx := context.Background()
	repo := NewProjectRepo(db, nil)

	seed := []model.Project{
		{Title: "Go API", Description: "A backend written in Go", Technologies: []string{"Go", "MySQL"}, IsFeatured: true, DisplayOrder: 2},
		{Title: "React site", Description: "Frontend with 100% coverage", Technologies: []string{"React"}, DisplayOrder: 1},
		{Title: "Golang CLI", Description: "Command line tooling", Technologies: []string{"Go"}, IsFeatured: true, DisplayOrder: 3},
		{Title: "Lab notes", Description: "Research tracker", Technologies: []string{"R&D", "<Web>"}, DisplayOrder: 4},
	}
	for i := range seed {
		seed[i].AuthorID = author.ID
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	yes := true
	cases := []struct {
		name string
		q    ProjectQuery
		want []string
	}{
		{"all in display order", ProjectQuery{}, []string{"React site", "Go API", "Golang CLI", "Lab notes"}},
		{"search is case-insensitive", ProjectQuery{Search: "GO"}, []string{"Go API", "Golang CLI"}},
		{"percent is literal", ProjectQuery{Search: "100%"}, []string{"React site"}},
		{"technology matches whole tag", ProjectQuery{Technology: "go"}, []string{"Go API", "Golang CLI"}},
		{"featured", ProjectQuery{Featured: &yes}, []string{"Go API", "Golang CLI"}},
		{"ampersand tag", ProjectQuery{Technology: "r&d"}, []string{"Lab notes"}},
		{"angle bracket tag", ProjectQuery{Technology: "<web>"}, []string{"Lab notes"}},
		{"search reaches tags", ProjectQuery{Search: "R&D"}, []string{"Lab notes"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.q.Page, tc.q.Limit = 1, 10
			items, total, err := repo.List(ctx, tc.q)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if int(total) != len(tc.want) || len(items) != len(tc.want) {
				t.Fatalf("got %d items (total %d), want %d", len(items), total, len(tc.want))
			}
			for i, p := range items {
				if p.Title != tc.want[i] {
					t.Fatalf("item %d = %q, want %q", i, p.Title, tc.want[i])
				}
			}
		})
	}

	if err := repo.SoftDelete(ctx, seed[0].ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	items, total, err := repo.List(ctx, ProjectQuery{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("inactive project still listed: total=%d", total)
	}
	_, total, err = repo.List(ctx, ProjectQuery{IncludeInactive: true, Page: 1, Limit: 10})
	if err != nil || total != 4 {
		t.Fatalf("admin listing total=%d err=%v", total, err)
	}
	featured, err := repo.Featured(ctx, 6)
	if err != nil {
		t.Fatalf("featured: %v", err)
	}
	if len(featured) != 1 || featured[0].Title != "Golang CLI" {
		t.Fatalf("featured = %+v", featured)
	}
	got, err := repo.GetByID(ctx, seed[0].ID)
	if err != nil || got.IsActive {
		t.Fatalf("soft-deleted row: %+v %v", got, err)
	}
	if got.AuthorName != "Admin" || len(got.Technologies) != 2 {
		t.Fatalf("joined fields: %+v", got)
	}
}

func TestProjectRepo_Pagination(t *testing.T) {
	db := newTestDB(t)
	author := createAuthor(t, db)
	ctx := context.Background()
	repo := NewProjectRepo(db, nil)
	for i := 0; i < 5; i++ {
		p := &model.Project{Title: "Project", Description: "description", Technologies: []string{"Go"}, DisplayOrder: i, AuthorID: author.ID}
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	items, total, err := repo.List(ctx, ProjectQuery{Page: 3, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(items) != 1 || items[0].DisplayOrder != 4 {
		t.Fatalf("page 3: total=%d items=%+v", total, items)
	}
	page := model.NewPage(3, 2, total)
	if page.TotalPages != 3 || page.HasNext || !page.HasPrev {
		t.Fatalf("page = %+v", page)
	}
}

func TestContactRepo_BulkUpdateStampsRespondedOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	t0 := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	repo := NewContactRepo(db, fixedClock(t0))

	var ids []uint64
	for i := 0; i < 3; i++ {
		c := &model.ContactMessage{Name: "Visitor", Email: "v@x.com", Message: "Hello there, nice portfolio"}
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
		if c.Status != model.ContactPending {
			t.Fatalf("status = %q", c.Status)
		}
		ids = append(ids, c.ID)
	}

	responded := model.ContactResponded
	n, err := repo.BulkUpdate(ctx, ids[:2], &responded, nil)
	if err != nil || n != 2 {
		t.Fatalf("bulk update: n=%d err=%v", n, err)
	}

	later := NewContactRepo(db, fixedClock(t0.Add(time.Hour)))
	notes := "handled"
	if _, err := later.BulkUpdate(ctx, ids, &responded, &notes); err != nil {
		t.Fatalf("second bulk update: %v", err)
	}
	first, err := repo.GetByID(ctx, ids[0])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first.RespondedAt == nil || !first.RespondedAt.Equal(t0) {
		t.Fatalf("respondedAt = %v, want %v", first.RespondedAt, t0)
	}
	if first.AdminNotes == nil || *first.AdminNotes != "handled" {
		t.Fatalf("notes = %v", first.AdminNotes)
	}
	third, err := repo.GetByID(ctx, ids[2])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if third.RespondedAt == nil || !third.RespondedAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("respondedAt = %v", third.RespondedAt)
	}
}

func TestContactRepo_ListAndStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	// two messages last year are outside the histogram window
	dates := []time.Time{
		now.AddDate(-1, 0, 0),
		now.AddDate(0, -3, 0),
		now.AddDate(0, -3, 1),
		now.AddDate(0, 0, -1),
		now,
	}
	var ids []uint64
	for i, d := range dates {
		c := &model.ContactMessage{Name: "Sender", Email: "s@x.com", Subject: strPtr("Hiring"), Message: "Message body number"}
		if i == 4 {
			c.Message = "Unique_token in body"
		}
		if err := NewContactRepo(db, fixedClock(d)).Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, c.ID)
	}
	repo := NewContactRepo(db, fixedClock(now))
	archived := model.ContactArchived
	if _, err := repo.BulkUpdate(ctx, ids[:1], &archived, nil); err != nil {
		t.Fatalf("archive: %v", err)
	}

	items, total, err := repo.List(ctx, ContactQuery{Status: model.ContactPending, Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 4 || items[0].ID != ids[4] {
		t.Fatalf("pending list: total=%d first=%d", total, items[0].ID)
	}
	_, total, err = repo.List(ctx, ContactQuery{Search: "unique_", Page: 1, Limit: 10})
	if err != nil || total != 1 {
		t.Fatalf("search underscore literal: total=%d err=%v", total, err)
	}

	st, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 5 || st.ByStatus[model.ContactPending] != 4 || st.ByStatus[model.ContactArchived] != 1 {
		t.Fatalf("counts: %+v", st)
	}
	if st.ByStatus[model.ContactInProgress] != 0 {
		t.Fatalf("missing zero bucket: %+v", st.ByStatus)
	}
	if len(st.Recent) != 5 || st.Recent[0].ID != ids[4] {
		t.Fatalf("recent: %d items", len(st.Recent))
	}
	if len(st.Monthly) != 12 || st.Monthly[0].Month != "2024-07" || st.Monthly[11].Month != "2025-06" {
		t.Fatalf("monthly window: %+v", st.Monthly)
	}
	byMonth := map[string]int64{}
	for _, m := range st.Monthly {
		byMonth[m.Month] = m.Count
	}
	if byMonth["2025-03"] != 2 || byMonth["2025-06"] != 2 {
		t.Fatalf("monthly counts: %+v", byMonth)
	}
}
