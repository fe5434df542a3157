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
)

// InternalHandler serves the loopback endpoints used by co-located workers.
// Routes using it must sit behind the internal token middleware; there is no
// session on these requests.
type InternalHandler struct {
	hostUseCase *hostsUseCase.HostUseCase
	logger      *slog.Logger
}

// NewInternalHandler creates a new internal handler with required dependencies.
func NewInternalHandler(hostUseCase *hostsUseCase.HostUseCase, logger *slog.Logger) *InternalHandler {
	return &InternalHandler{hostUseCase: hostUseCase, logger: logger}
}

// AutostartHostsHandler returns a user's autostart hosts with full
// connection material. Fails with 423 while the user's data key is not
// resident; the worker retries after the user unlocks.
// GET /internal/v1/users/:id/autostart-hosts
func (h *InternalHandler) AutostartHostsHandler(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid user ID format: must be a valid UUID"), h.logger)
		return
	}

	hosts, err := h.hostUseCase.ListAutostart(c.Request.Context(), userID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapHostsToAutostartResponse(hosts))
}
