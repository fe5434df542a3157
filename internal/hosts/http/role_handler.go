package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sshdeck/sshdeck/internal/hosts/http/dto"
	hostsUseCase "github.com/sshdeck/sshdeck/internal/hosts/usecase"
	"github.com/sshdeck/sshdeck/internal/httputil"
	customValidation "github.com/sshdeck/sshdeck/internal/validation"
)

// RoleHandler handles HTTP requests for role administration. Role
// management is an admin concern; grants to roles stay with host owners.
type RoleHandler struct {
	roleUseCase *hostsUseCase.RoleUseCase
	logger      *slog.Logger
}

// NewRoleHandler creates a new role handler with required dependencies.
func NewRoleHandler(roleUseCase *hostsUseCase.RoleUseCase, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{roleUseCase: roleUseCase, logger: logger}
}

// CreateHandler adds a role.
// POST /v1/roles - Requires admin.
// Returns 201 Created with the role data.
func (h *RoleHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateRoleRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	role, err := h.roleUseCase.Create(c.Request.Context(), req.Name)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapRoleToResponse(role))
}

// ListHandler returns all roles.
// GET /v1/roles - Requires authentication.
func (h *RoleHandler) ListHandler(c *gin.Context) {
	roles, err := h.roleUseCase.List(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRolesToListResponse(roles))
}

// DeleteHandler removes a role, its memberships, and its grants.
// DELETE /v1/roles/:id - Requires admin.
// Returns 204 No Content.
func (h *RoleHandler) DeleteHandler(c *gin.Context) {
	roleID, err := parseRoleID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := h.roleUseCase.Delete(c.Request.Context(), roleID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// MembersHandler returns a role's member IDs.
// GET /v1/roles/:id/members - Requires admin.
func (h *RoleHandler) MembersHandler(c *gin.Context) {
	roleID, err := parseRoleID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	members, err := h.roleUseCase.Members(c.Request.Context(), roleID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	out := dto.RoleMembersResponse{Members: make([]string, 0, len(members))}
	for _, member := range members {
		out.Members = append(out.Members, member.String())
	}
	c.JSON(http.StatusOK, out)
}

// AssignHandler adds a user to a role and materializes the role's host
// grants for them.
// POST /v1/roles/:id/members - Requires admin.
// Returns 204 No Content.
func (h *RoleHandler) AssignHandler(c *gin.Context) {
	roleID, err := parseRoleID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	userID, err := parseMemberRequest(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := h.roleUseCase.AssignUser(c.Request.Context(), roleID, userID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// UnassignHandler removes a user from a role.
// DELETE /v1/roles/:id/members - Requires admin.
// Returns 204 No Content.
func (h *RoleHandler) UnassignHandler(c *gin.Context) {
	roleID, err := parseRoleID(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	userID, err := parseMemberRequest(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := h.roleUseCase.UnassignUser(c.Request.Context(), roleID, userID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

func parseMemberRequest(c *gin.Context) (uuid.UUID, error) {
	var req dto.RoleMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return uuid.Nil, err
	}
	if err := req.Validate(); err != nil {
		return uuid.Nil, customValidation.WrapValidationError(err)
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID format: must be a valid UUID")
	}
	return userID, nil
}

// parseRoleID parses the :id route parameter.
func parseRoleID(c *gin.Context) (uuid.UUID, error) {
	roleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid role ID format: must be a valid UUID")
	}
	return roleID, nil
}
