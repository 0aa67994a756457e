package httpapi

import (
	"context"
	"errors"
	"net/http"

	"estate-inbox/internal/apiclient"
	"estate-inbox/internal/media"
	"estate-inbox/internal/property"
	"estate-inbox/internal/validation"
	"estate-inbox/internal/whatsapp"
	"estate-inbox/pkg/logger"

	"github.com/gin-gonic/gin"
)

// writeError maps service errors onto local API responses.
func writeError(c *gin.Context, err error) {
	err = validation.Translate(err)

	var ve validation.Errors
	if errors.As(err, &ve) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": ve})
		return
	}
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "status", status, "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	var (
		be  *apiclient.BusinessError
		se  *apiclient.StatusError
		te  *apiclient.TransportError
		sdk *whatsapp.SDKError
	)
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized):
		if msg := apiclient.Message(err); msg != "" {
			return http.StatusUnauthorized, msg
		}
		return http.StatusUnauthorized, "session expired"
	case errors.Is(err, whatsapp.ErrLinkCancelled):
		return http.StatusConflict, "linking cancelled"
	case errors.Is(err, property.ErrNotFound):
		return http.StatusNotFound, "property not found"
	case errors.Is(err, media.ErrEmpty):
		return http.StatusBadRequest, "empty upload"
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "upload too large"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "backend timed out"
	case errors.Is(err, context.Canceled):
		return 499, "request cancelled"
	case errors.As(err, &be):
		status := be.StatusCode
		if status < 400 {
			status = http.StatusBadRequest
		}
		return status, errorMessage(err)
	case errors.As(err, &se):
		if se.StatusCode == http.StatusNotFound {
			return http.StatusNotFound, "not found"
		}
		return http.StatusBadGateway, "backend error"
	case errors.As(err, &te), errors.Is(err, apiclient.ErrNoEndpoint):
		return http.StatusBadGateway, "backend unreachable"
	case errors.As(err, &sdk):
		return http.StatusBadGateway, sdk.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// errorMessage is the user-facing text for err: the backend's message when
// it sent one.
func errorMessage(err error) string {
	if msg := apiclient.Message(err); msg != "" {
		return msg
	}
	var se *apiclient.StatusError
	if errors.As(err, &se) {
		return "backend error"
	}
	if apiclient.IsTransport(err) {
		return "backend unreachable"
	}
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return "session expired"
	}
	return err.Error()
}
