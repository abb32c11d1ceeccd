package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/portfolio-backend/internal/apperror"
	"github.com/iliyamo/portfolio-backend/internal/model"
	"github.com/iliyamo/portfolio-backend/internal/repository"
	"github.com/iliyamo/portfolio-backend/internal/service"
)

// ContactHandler serves the contact form and the admin inbox.
type ContactHandler struct {
	Contacts *repository.ContactRepo
	Notifier service.ContactNotifier
	Now      func() time.Time
}

func NewContactHandler(contacts *repository.ContactRepo, notifier service.ContactNotifier) *ContactHandler {
	if notifier == nil {
		notifier = service.NopNotifier{}
	}
	return &ContactHandler{Contacts: contacts, Notifier: notifier, Now: time.Now}
}

type createContactReq struct {
	Name    string  `json:"name" validate:"required,notblank,min=2,max=100"`
	Email   string  `json:"email" validate:"required,email,max=255"`
	Subject *string `json:"subject" validate:"omitempty,max=200"`
	Message string  `json:"message" validate:"required,notblank,min=10,max=2000"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
}

type updateContactReq struct {
	Status     *string `json:"status" validate:"omitempty,contactstatus"`
	AdminNotes *string `json:"adminNotes" validate:"omitempty,max=2000"`
}

type contactStatusReq struct {
	Status string `json:"status" validate:"required,contactstatus"`
}

type bulkUpdateReq struct {
	IDs        []uint64 `json:"ids" validate:"required,min=1,max=100,dive,gt=0"`
	Status     *string  `json:"status" validate:"omitempty,contactstatus"`
	AdminNotes *string  `json:"adminNotes" validate:"omitempty,max=2000"`
}

func (r *createContactReq) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Message = strings.TrimSpace(r.Message)
	trimPtr(r.Subject)
	trimPtr(r.Phone)
}

func (r *updateContactReq) normalize() {
	trimPtr(r.Status)
	trimPtr(r.AdminNotes)
}

func (r *bulkUpdateReq) normalize() {
	trimPtr(r.Status)
	trimPtr(r.AdminNotes)
}

// Create accepts a message from any visitor.  The stored status is always
// PENDING.  Notification failures never affect the response.
func (h *ContactHandler) Create(c echo.Context) error {
	var req createContactReq
	if err := bind(c, &req, false); err != nil {
		return err
	}
	msg := &model.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Subject: optional(req.Subject),
		Message: strings.TrimSpace(req.Message),
		Phone:   optional(req.Phone),
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Contacts.Create(ctx, msg); err != nil {
		return repoError(err, "Contact message")
	}
	h.Notifier.ContactReceived(ctx, *msg)
	return ok(c, http.StatusCreated, msg, "Thank you for your message, I will get back to you soon")
}

// List returns one page of the inbox, newest first.
func (h *ContactHandler) List(c echo.Context) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return err
	}
	q := repository.ContactQuery{Search: c.QueryParam("search"), Page: page, Limit: limit}
	if s := c.QueryParam("status"); s != "" {
		status, valid := model.NormalizeContactStatus(s)
		if !valid {
			return apperror.Validation("Invalid query parameter", apperror.FieldError{
				Field: "status", Message: "must be one of " + strings.Join(model.ContactStatuses, ", ")})
		}
		q.Status = status
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	items, total, err := h.Contacts.List(ctx, q)
	if err != nil {
		return repoError(err, "Contact message")
	}
	return ok(c, http.StatusOK, ListData[model.ContactMessage]{Items: items, Pagination: model.NewPage(page, limit, total)}, "")
}

// Get returns one message.
func (h *ContactHandler) Get(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	msg, err := h.Contacts.GetByID(ctx, id)
	if err != nil {
		return repoError(err, "Contact message")
	}
	return ok(c, http.StatusOK, msg, "")
}

// apply sets status and notes on msg.  The first move to RESPONDED stamps
// respondedAt; later moves keep the original stamp.
func (h *ContactHandler) apply(msg *model.ContactMessage, status, notes *string) {
	if status != nil {
		s, _ := model.NormalizeContactStatus(*status)
		msg.Status = s
		if s == model.ContactResponded && msg.RespondedAt == nil {
			now := h.Now().UTC().Truncate(time.Microsecond)
			msg.RespondedAt = &now
		}
	}
	if notes != nil {
		msg.AdminNotes = optional(notes)
	}
}

func (h *ContactHandler) update(c echo.Context, status, notes *string, done string) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	msg, err := h.Contacts.GetByID(ctx, id)
	if err != nil {
		return repoError(err, "Contact message")
	}
	h.apply(msg, status, notes)
	if err := h.Contacts.Update(ctx, msg); err != nil {
		return repoError(err, "Contact message")
	}
	return ok(c, http.StatusOK, msg, done)
}

// Update changes status and/or admin notes.
func (h *ContactHandler) Update(c echo.Context) error {
	var req updateContactReq
	if err := bind(c, &req, false); err != nil {
		return err
	}
	if req.Status == nil && req.AdminNotes == nil {
		return apperror.Validation("Nothing to update",
			apperror.FieldError{Field: "status", Message: "status or adminNotes is required"})
	}
	return h.update(c, req.Status, req.AdminNotes, "Contact message updated")
}

// UpdateStatus changes only the status.
func (h *ContactHandler) UpdateStatus(c echo.Context) error {
	var req contactStatusReq
	if err := bind(c, &req, false); err != nil {
		return err
	}
	return h.update(c, &req.Status, nil, "Status updated")
}

// Delete removes a message permanently.
func (h *ContactHandler) Delete(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Contacts.Delete(ctx, id); err != nil {
		return repoError(err, "Contact message")
	}
	return ok(c, http.StatusOK, echo.Map{"id": id}, "Contact message deleted")
}

// BulkUpdate applies status and/or notes to up to 100 messages.
func (h *ContactHandler) BulkUpdate(c echo.Context) error {
	var req bulkUpdateReq
	if err := bind(c, &req, false); err != nil {
		return err
	}
	if req.Status == nil && req.AdminNotes == nil {
		return apperror.Validation("Nothing to update",
			apperror.FieldError{Field: "status", Message: "status or adminNotes is required"})
	}
	var status *string
	if req.Status != nil {
		s, _ := model.NormalizeContactStatus(*req.Status)
		status = &s
	}
	var notes *string
	if req.AdminNotes != nil {
		n := strings.TrimSpace(*req.AdminNotes)
		notes = &n
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	n, err := h.Contacts.BulkUpdate(ctx, dedupe(req.IDs), status, notes)
	if err != nil {
		return repoError(err, "Contact message")
	}
	return ok(c, http.StatusOK, echo.Map{"updated": n}, "Contact messages updated")
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Stats returns the dashboard summary.
func (h *ContactHandler) Stats(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	st, err := h.Contacts.Stats(ctx)
	if err != nil {
		return repoError(err, "Contact message")
	}
	return ok(c, http.StatusOK, st, "")
}
