package httpapi

import (
	"net/http"

	"estate-inbox/internal/property"

	"github.com/gin-gonic/gin"
)

// PublicProperties serves the landing page grid. A backend failure renders
// as an empty list.
func (h Handlers) PublicProperties(c *gin.Context) {
	if h.Properties == nil {
		unavailable(c, "properties")
		return
	}
	items, err := h.Properties.ListPublic(c.Request.Context())
	if err != nil {
		items = []property.Property{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h Handlers) ListProperties(c *gin.Context) {
	if h.Properties == nil {
		unavailable(c, "properties")
		return
	}
	items, err := h.Properties.List(c.Request.Context())
	resp := gin.H{"items": items, "error": nil}
	if err != nil {
		resp["error"] = errorMessage(err)
	}
	c.JSON(http.StatusOK, resp)
}

func (h Handlers) GetProperty(c *gin.Context) {
	if h.Properties == nil {
		unavailable(c, "properties")
		return
	}
	p, err := h.Properties.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) CreateProperty(c *gin.Context) {
	if h.Properties == nil {
		unavailable(c, "properties")
		return
	}
	var form property.Form
	if !bind(c, &form) {
		return
	}
	p, err := h.Properties.Create(c.Request.Context(), form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h Handlers) UpdateProperty(c *gin.Context) {
	if h.Properties == nil {
		unavailable(c, "properties")
		return
	}
	var form property.Form
	if !bind(c, &form) {
		return
	}
	p, err := h.Properties.Update(c.Request.Context(), c.Param("id"), form)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) DeleteProperty(c *gin.Context) {
	if h.Properties == nil {
		unavailable(c, "properties")
		return
	}
	if err := h.Properties.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
