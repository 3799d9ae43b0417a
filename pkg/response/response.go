package response

import (
	"errors"
	"fmt"
	"net/http"

	"anoa.com/anomologita/pkg/apperror"
	"anoa.com/anomologita/pkg/ratelimiter"
	"anoa.com/anomologita/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const UserIDKey = "user_id"

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	str, ok := userIDStr.(string)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	var rlErr *ratelimiter.RateLimitError
	if errors.As(err, &rlErr) {
		c.Header("Retry-After", fmt.Sprintf("%.0f", rlErr.RetryAfter.Seconds()))
	}

	message := err.Error()
	var appErr *apperror.AppError
	if code == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("internal error")
		if !errors.As(err, &appErr) {
			message = apperror.ErrInternal.Error()
		}
	}

	c.JSON(code, gin.H{"message": message})
}

// ValidationError writes a 400 with per-field messages for binding failures.
func ValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"message": validator.FormatValidationError(err),
		"errors":  validator.FieldErrors(err),
	})
}
