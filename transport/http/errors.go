package http

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/layer-3/twofa/core"
	"github.com/rs/zerolog/log"
)

const (
	msgAuthenticationFailed = "Incorrect authentication credentials."
	msgFieldRequired        = "This field is required."
	msgFieldInvalid         = "This field is invalid."
	msgMalformedBody        = "Malformed request body."
	msgInternal             = "Internal server error."
)

// bindError answers a request whose body did not bind
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": msgMalformedBody})
		return
	}

	fields := gin.H{}
	for _, fe := range verrs {
		msg := msgFieldInvalid
		if fe.Tag() == "required" {
			msg = msgFieldRequired
		}
		fields[fe.Field()] = []string{msg}
	}

	c.JSON(http.StatusBadRequest, fields)
}

// writeError maps service errors to responses. Authentication failures all
// get the same answer.
func writeError(c *gin.Context, err error) {
	var throttled *core.ThrottledError
	var delivery *core.CodeDeliveryError

	switch {
	case errors.As(err, &throttled):
		wait := retryAfterSeconds(throttled)
		c.Header("Retry-After", strconv.Itoa(wait))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"detail": fmt.Sprintf("Request was throttled. Expected available in %d seconds.", wait),
		})
	case errors.Is(err, core.ErrAuthenticationFailed):
		c.JSON(http.StatusForbidden, gin.H{"detail": msgAuthenticationFailed})
	case errors.As(err, &delivery):
		c.JSON(http.StatusNotImplemented, gin.H{
			"detail": fmt.Sprintf("Verification code sending failed: %v", delivery.Reason),
		})
	case errors.Is(err, core.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token expired"})
	case errors.Is(err, core.ErrTokenInvalidated):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token has been invalidated"})
	case errors.Is(err, core.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token"})
	default:
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
	}
}

func retryAfterSeconds(e *core.ThrottledError) int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}
