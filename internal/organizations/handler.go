package organizations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/middleware"
	"github.com/PalisadoesFoundation/talawa-api-sub014/internal/models"
	"github.com/PalisadoesFoundation/talawa-api-sub014/pkg/response"
)

// CreateRequest is the body for POST /organizations.
type CreateRequest struct {
	Name string `json:"name" binding:"required"`
}

// JoinRequest is the body for POST /organizations/:id/members.
type JoinRequest struct {
	Role string `json:"role"` // optional, defaults to regular
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an organization handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /organizations.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	org := &models.Organization{Name: req.Name, CreatedBy: userID}
	if err := h.repo.Create(c.Request.Context(), org); err != nil {
		h.logger.Error("create organization failed", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	}
	response.Created(c, org)
}

// List handles GET /organizations.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list organizations")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /organizations/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	org, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "organization not found")
		return
	}
	response.OK(c, org)
}

// Join handles POST /organizations/:id/members.
func (h *Handler) Join(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	var req JoinRequest
	_ = c.ShouldBindJSON(&req)
	role := "regular"
	if req.Role == "administrator" {
		role = "administrator"
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	if err := h.repo.AddMember(c.Request.Context(), id, userID, role); err != nil {
		response.Internal(c, "failed to join organization")
		return
	}
	response.NoContent(c)
}
