package model

import (
	"strings"
	"time"
)

// Contact message statuses.
const (
	ContactPending    = "PENDING"
	ContactInProgress = "IN_PROGRESS"
	ContactResponded  = "RESPONDED"
	ContactArchived   = "ARCHIVED"
)

// ContactStatuses lists every status in workflow order.
var ContactStatuses = []string{ContactPending, ContactInProgress, ContactResponded, ContactArchived}

// NormalizeContactStatus upper-cases s and maps the RESOLVED and CLOSED
// aliases onto their canonical values.  ok is false for unknown input.
func NormalizeContactStatus(s string) (status string, ok bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "RESOLVED":
		return ContactResponded, true
	case "CLOSED":
		return ContactArchived, true
	case ContactPending, ContactInProgress, ContactResponded, ContactArchived:
		return s, true
	}
	return "", false
}

// ContactMessage is an inbound inquiry from a site visitor.
type ContactMessage struct {
	ID          uint64     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Subject     *string    `json:"subject,omitempty"`
	Message     string     `json:"message"`
	Phone       *string    `json:"phone,omitempty"`
	Status      string     `json:"status"`
	AdminNotes  *string    `json:"adminNotes,omitempty"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ContactStats summarises the inbox for the admin dashboard.
type ContactStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
	Recent   []ContactMessage `json:"recent"`
	Monthly  []MonthlyCount   `json:"monthly"`
}

// MonthlyCount is one bucket of the contact histogram; Month is YYYY-MM.
type MonthlyCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}
