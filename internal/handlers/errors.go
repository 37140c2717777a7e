// internal/handlers/errors.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/inkmarket/commission-backend/internal/apperrors"
	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/utils"
)

// respondAppError translates a service error into the API envelope. Typed
// errors carry their own HTTP status; anything untyped is a 500.
func respondAppError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		var details interface{}
		if appErr.Field != "" {
			details = gin.H{"field": appErr.Field}
		}
		utils.ErrorResponse(c, appErr.HTTPStatus, string(appErr.Code), appErr.Message, details)
		return
	}
	utils.InternalErrorResponse(c, err.Error())
}

// actorFromContext pulls the authenticated user's id and type out of the gin
// context set by the auth middleware.
func actorFromContext(c *gin.Context) (uuid.UUID, models.UserType, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, "", false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, "", false
	}
	userType, _ := utils.GetUserTypeFromContext(c)
	return userID, models.UserType(userType), true
}

// pathUUID parses a uuid path parameter, answering the request on failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
