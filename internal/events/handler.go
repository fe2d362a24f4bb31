package events

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/middleware"
	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/models"
	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/realtime"
	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/recurrence"
	"github.com/PalisadoesFoundation/talawa-api-sub014/pkg/response"
	"github.com/PalisadoesFoundation/talawa-api-sub014/pkg/storage"
)

// Notifier pushes event lifecycle notifications to organization rooms.
type Notifier interface {
	Notify(orgID uuid.UUID, event string, payload interface{})
}

// RecurrenceInput is the JSON shape of a recurrence description.
type RecurrenceInput struct {
	Frequency  string   `json:"frequency" binding:"required"`
	Interval   int      `json:"interval"`
	ByDay      []string `json:"by_day"`
	ByMonth    []int    `json:"by_month"`
	ByMonthDay []int    `json:"by_month_day"`
	Count      int      `json:"count"`
	Until      *string  `json:"until"` // RFC3339
}

// CreateEventRequest is the body for POST /organizations/:id/events.
type CreateEventRequest struct {
	Title          string           `json:"title" binding:"required"`
	Description    string           `json:"description"`
	Location       string           `json:"location"`
	AllDay         bool             `json:"all_day"`
	IsPublic       bool             `json:"is_public"`
	IsRegisterable bool             `json:"is_registerable"`
	StartDate      string           `json:"start_date" binding:"required"` // RFC3339
	EndDate        *string          `json:"end_date"`
	StartTime      *string          `json:"start_time"`
	EndTime        *string          `json:"end_time"`
	Recurring      bool             `json:"recurring"`
	Recurrence     *RecurrenceInput `json:"recurrence"`
}

// UpdateEventRequest is the body for PATCH /events/:id.
type UpdateEventRequest struct {
	Title          *string          `json:"title"`
	Description    *string          `json:"description"`
	Location       *string          `json:"location"`
	AllDay         *bool            `json:"all_day"`
	IsPublic       *bool            `json:"is_public"`
	IsRegisterable *bool            `json:"is_registerable"`
	StartDate      *string          `json:"start_date"`
	EndDate        *string          `json:"end_date"`
	StartTime      *string          `json:"start_time"`
	EndTime        *string          `json:"end_time"`
	MarkException  *bool            `json:"mark_exception"`
	Recurrence     *RecurrenceInput `json:"recurrence"`
	Scope          string           `json:"scope"` // defaults to ThisInstance
}

// AttachmentResponse is one attachment with a download URL.
type AttachmentResponse struct {
	models.EventAttachment
	URL string `json:"url"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	repo      *Repository
	generator *Generator
	mutator   *Mutator
	s3        *storage.S3
	notifier  Notifier
	logger    *zap.Logger
}

// NewHandler creates an event handler.
func NewHandler(repo *Repository, generator *Generator, mutator *Mutator, s3 *storage.S3, notifier Notifier, logger *zap.Logger) *Handler {
	return &Handler{
		repo:      repo,
		generator: generator,
		mutator:   mutator,
		s3:        s3,
		notifier:  notifier,
		logger:    logger,
	}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func (in *RecurrenceInput) toInput() (*recurrence.Input, error) {
	if in == nil {
		return nil, nil
	}
	rec := &recurrence.Input{
		Frequency:  recurrence.Frequency(in.Frequency),
		Interval:   in.Interval,
		ByDay:      in.ByDay,
		ByMonth:    in.ByMonth,
		ByMonthDay: in.ByMonthDay,
		Count:      in.Count,
	}
	if in.Until != nil {
		t, err := parseTime(*in.Until)
		if err != nil {
			return nil, err
		}
		rec.Until = &t
	}
	return rec, nil
}

// Create handles POST /organizations/:id/events.
func (h *Handler) Create(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	startDate, err := parseTime(req.StartDate)
	if err != nil {
		response.BadRequest(c, "invalid start_date")
		return
	}
	var endDate *time.Time
	if req.EndDate != nil {
		t, err := parseTime(*req.EndDate)
		if err != nil {
			response.BadRequest(c, "invalid end_date")
			return
		}
		endDate = &t
	}

	tpl := EventTemplate{
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		AllDay:         req.AllDay,
		IsPublic:       req.IsPublic,
		IsRegisterable: req.IsRegisterable,
		StartDate:      startDate,
		EndDate:        endDate,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	}

	if !req.Recurring {
		ev, err := h.createStandalone(c, tpl, userID, orgID)
		if err != nil {
			h.logger.Error("create event failed", zap.Error(err))
			response.Internal(c, "failed to create event")
			return
		}
		h.notifier.Notify(orgID, realtime.EventCreated, ev)
		response.Created(c, ev)
		return
	}

	rec, err := req.Recurrence.toInput()
	if err != nil {
		response.BadRequest(c, "invalid recurrence until")
		return
	}
	if rec != nil {
		if msgs := rec.Validate(); len(msgs) > 0 {
			response.ValidationFailed(c, msgs)
			return
		}
	}

	first, err := h.generator.Generate(c.Request.Context(), tpl, rec, userID, orgID)
	if err != nil {
		h.logger.Error("generate series failed", zap.Error(err))
		response.Internal(c, "failed to create recurring event")
		return
	}
	h.notifier.Notify(orgID, realtime.EventCreated, first)
	response.Created(c, first)
}

func (h *Handler) createStandalone(c *gin.Context, tpl EventTemplate, userID, orgID uuid.UUID) (*models.Event, error) {
	ev := &models.Event{
		ID:             uuid.New(),
		OrganizationID: orgID,
		CreatorID:      userID,
		Title:          tpl.Title,
		Description:    tpl.Description,
		Location:       tpl.Location,
		AllDay:         tpl.AllDay,
		IsPublic:       tpl.IsPublic,
		IsRegisterable: tpl.IsRegisterable,
		StartDate:      tpl.StartDate.UTC(),
		EndDate:        tpl.EndDate,
		StartTime:      tpl.StartTime,
		EndTime:        tpl.EndTime,
	}
	err := h.repo.InTx(c.Request.Context(), func(tx Tx) error {
		if err := tx.CreateEvent(c.Request.Context(), ev); err != nil {
			return err
		}
		if err := tx.CreateAttendees(c.Request.Context(), userID, []uuid.UUID{ev.ID}); err != nil {
			return err
		}
		return tx.PushUserEvents(c.Request.Context(), userID, []uuid.UUID{ev.ID})
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	ev, err := h.repo.GetEvent(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.Internal(c, "failed to load event")
		return
	}
	response.OK(c, ev)
}

// ListWindow handles GET /organizations/:id/events?from=...&to=...
// Defaults to the coming month when the window is not given.
func (h *Handler) ListWindow(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}

	now := time.Now().UTC()
	from, to := now, now.AddDate(0, 1, 0)
	if s := c.Query("from"); s != "" {
		if from, err = parseTime(s); err != nil {
			response.BadRequest(c, "invalid from")
			return
		}
	}
	if s := c.Query("to"); s != "" {
		if to, err = parseTime(s); err != nil {
			response.BadRequest(c, "invalid to")
			return
		}
	}

	list, err := h.repo.ListOrganizationInstances(c.Request.Context(), orgID, from, to)
	if err != nil {
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// Update handles PATCH /events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	scope := ScopeThisInstance
	if req.Scope != "" {
		scope = Scope(req.Scope)
		if !ValidScope(scope) {
			response.BadRequest(c, "invalid scope")
			return
		}
	}

	edit := EventEdit{
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		AllDay:         req.AllDay,
		IsPublic:       req.IsPublic,
		IsRegisterable: req.IsRegisterable,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		MarkException:  req.MarkException,
	}
	if req.StartDate != nil {
		t, err := parseTime(*req.StartDate)
		if err != nil {
			response.BadRequest(c, "invalid start_date")
			return
		}
		edit.StartDate = &t
	}
	if req.EndDate != nil {
		t, err := parseTime(*req.EndDate)
		if err != nil {
			response.BadRequest(c, "invalid end_date")
			return
		}
		edit.EndDate = &t
	}

	rec, err := req.Recurrence.toInput()
	if err != nil {
		response.BadRequest(c, "invalid recurrence until")
		return
	}
	if rec != nil {
		if msgs := rec.Validate(); len(msgs) > 0 {
			response.ValidationFailed(c, msgs)
			return
		}
	}

	ev, err := h.mutator.Update(c.Request.Context(), id, edit, rec, scope, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("update event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to update event")
		return
	}
	h.notifier.Notify(ev.OrganizationID, realtime.EventUpdated, ev)
	response.OK(c, ev)
}

// Delete handles DELETE /events/:id?scope=...
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	scope := ScopeThisInstance
	if s := c.Query("scope"); s != "" {
		scope = Scope(s)
		if !ValidScope(scope) {
			response.BadRequest(c, "invalid scope")
			return
		}
	}

	ev, err := h.repo.GetEvent(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.Internal(c, "failed to load event")
		return
	}

	if err := h.mutator.Delete(c.Request.Context(), id, scope); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("delete event failed", zap.Error(err), zap.String("event_id", id.String()))
		response.Internal(c, "failed to delete event")
		return
	}
	h.notifier.Notify(ev.OrganizationID, realtime.EventDeleted, gin.H{
		"event_id": id,
		"scope":    scope,
	})
	response.NoContent(c)
}

// UploadAttachment handles POST /events/:id/attachments (multipart field "file").
func (h *Handler) UploadAttachment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if h.s3 == nil {
		response.Internal(c, "attachment storage not configured")
		return
	}
	if _, err := h.repo.GetEvent(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.Internal(c, "failed to load event")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file")
		return
	}
	if fileHeader.Size > storage.MaxAttachmentSize {
		response.BadRequest(c, "file too large")
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !storage.ValidateAttachmentType(contentType, fileHeader.Filename) {
		response.BadRequest(c, "unsupported file type")
		return
	}
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(fileHeader.Filename)
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read file")
		return
	}
	defer file.Close()

	key := storage.AttachmentKey(id.String(), uuid.New().String()+"-"+fileHeader.Filename)
	if _, err := h.s3.Upload(c.Request.Context(), key, contentType, file); err != nil {
		h.logger.Error("attachment upload failed", zap.Error(err))
		response.Internal(c, "failed to upload attachment")
		return
	}

	att := &models.EventAttachment{EventID: id, ObjectKey: key, ContentType: contentType}
	if err := h.repo.CreateAttachment(c.Request.Context(), att); err != nil {
		response.Internal(c, "failed to record attachment")
		return
	}
	response.Created(c, att)
}

// ListAttachments handles GET /events/:id/attachments.
func (h *Handler) ListAttachments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if h.s3 == nil {
		response.Internal(c, "attachment storage not configured")
		return
	}
	atts, err := h.repo.ListAttachments(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to list attachments")
		return
	}
	out := make([]AttachmentResponse, 0, len(atts))
	for _, a := range atts {
		url, err := h.s3.PresignDownloadURL(c.Request.Context(), a.ObjectKey)
		if err != nil {
			h.logger.Warn("presign failed", zap.Error(err), zap.String("key", a.ObjectKey))
		}
		out = append(out, AttachmentResponse{EventAttachment: a, URL: url})
	}
	response.OK(c, out)
}
