package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/order-insights/internal/api/dto"
	"github.com/spec-kit/order-insights/internal/auth"
	"github.com/spec-kit/order-insights/internal/domain"
	"github.com/spec-kit/order-insights/internal/stats"
	apperrors "github.com/spec-kit/order-insights/pkg/util/errorutil"
)

// RollupsHandler serves the aggregated per-editor views.
type RollupsHandler struct {
	engine *stats.Engine
}

// NewRollupsHandler constructs handler.
func NewRollupsHandler(engine *stats.Engine) *RollupsHandler {
	return &RollupsHandler{engine: engine}
}

// ListRollups GET /rollups. Editors receive only their own rollup; the
// published snapshot already reflects the active scope.
func (h *RollupsHandler) ListRollups(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": dto.RollupSetFromSnapshot(h.engine.Snapshot())})
}

// GetRollup GET /rollups/:email.
func (h *RollupsHandler) GetRollup(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	email := c.Params("email")
	if principal.Role != domain.RoleTeamLeader && principal.Email() != email {
		return apperrors.NewForbidden("rollup belongs to another editor")
	}
	rollup, found := h.engine.RollupFor(email)
	if !found {
		return apperrors.NewNotFound("rollup", map[string]any{"email": email})
	}
	return c.JSON(fiber.Map{"data": dto.RollupFromDomain(rollup)})
}

// Refresh POST /rollups/refresh. Clears the persisted rollups and
// republishes a loading state; the live subscription redelivers on its own.
func (h *RollupsHandler) Refresh(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	h.engine.Refresh(c.Context())
	return c.SendStatus(http.StatusAccepted)
}
