package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/your-org/eventlens/internal/apperr"
	"github.com/your-org/eventlens/internal/auth"
	"github.com/your-org/eventlens/pkg/dto"
)

const internalErrorMessage = "An internal server error occurred."

// respondError writes err as {"message": ...} with the status of its Kind.
// Unclassified errors are reported as internal errors without details.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	if status >= 500 {
		slog.Error("request failed", "path", c.FullPath(), "kind", kind.String(), "error", err)
	} else {
		slog.Debug("request rejected", "path", c.FullPath(), "kind", kind.String(), "error", err)
	}
	c.JSON(status, dto.MessageResponse{Message: apperr.Message(err, internalErrorMessage)})
}

// principal returns the authenticated caller. Routes using it sit behind
// auth.Authenticate, so a missing principal is a wiring error.
func principal(c *gin.Context) (*auth.Principal, bool) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		respondError(c, apperr.Authorization("principal", "Access token is missing or invalid."))
	}
	return p, ok
}
