package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/domain"
)

// ExtensionSignaler is the slice of the signal service the HTTP surface
// needs: raise a signal, read instance state.
type ExtensionSignaler interface {
	Signal(ctx context.Context, instanceID string) error
	Instance(ctx context.Context, instanceID string) (*domain.Instance, error)
}

type ExtendHandler struct {
	signals ExtensionSignaler
}

func NewExtendHandler(signals ExtensionSignaler) *ExtendHandler {
	return &ExtendHandler{signals: signals}
}

// Extend handles GET /extend/:instanceID — the link from the notification
// email. The unguessable instance identifier is the only credential; the
// response is a human-readable page, and repeated clicks are harmless.
func (h *ExtendHandler) Extend(c *gin.Context) {
	instanceID := c.Param("instanceID")
	if instanceID == "" {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(badRequestPage))
		return
	}

	if err := h.signals.Signal(c.Request.Context(), instanceID); err != nil {
		if errors.Is(err, domain.ErrInstanceNotFound) {
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte(notFoundPage))
			return
		}
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte(errorPage))
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(confirmationPage))
}

// GetInstance handles GET /api/v1/instances/:id, operator visibility into
// one workflow instance.
func (h *ExtendHandler) GetInstance(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "instance id is required"})
		return
	}

	instance, err := h.signals.Instance(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrInstanceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"id":             instance.ID,
		"resource_group": instance.ResourceGroup,
		"phase":          instance.Phase,
		"created_at":     instance.CreatedAt,
		"updated_at":     instance.UpdatedAt,
	}
	if instance.ResponseDeadline != nil {
		resp["response_deadline"] = instance.ResponseDeadline
	}
	if instance.SignaledAt != nil {
		resp["signaled_at"] = instance.SignaledAt
	}
	if instance.Failure != nil {
		resp["failure"] = instance.Failure
	}
	c.JSON(http.StatusOK, resp)
}

var confirmationPage = fmt.Sprintf(page,
	"Resource Group Expiration Extended",
	"Your extension request has been received.",
	"If it arrived before the response deadline your resource group expiration will be extended, and you will receive another notification prior to the next scheduled deletion.")

var notFoundPage = fmt.Sprintf(page,
	"Extension Request Not Found",
	"We could not find a pending extension request for this link.",
	"The request may have already been resolved, or the link may be incorrect.")

var badRequestPage = fmt.Sprintf(page,
	"Invalid Extension Link",
	"This extension link is missing its request identifier.",
	"Please use the link from your notification email.")

var errorPage = fmt.Sprintf(page,
	"Something Went Wrong",
	"We could not process your extension request right now.",
	"Please try the link from your notification email again in a few minutes.")

const page = `<html>
<head><title>%s</title></head>
<body>
<h2>%s</h2>
<p>%s</p>
</body>
</html>`
