package api

import (
	"net/http"

	"github.com/celerix-dev/celerix-hr/pkg/schema"
	"github.com/gin-gonic/gin"
)

// SaveBiometric enrolls or replaces the template of one type.
func (h *Handler) SaveBiometric(c *gin.Context) {
	var in struct {
		Data string `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	b, err := h.Repos.Biometrics().Save(c.Request.Context(), &schema.Biometric{
		EmployeeID: c.Param("id"),
		Type:       c.Param("type"),
		Data:       in.Data,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBiometric(c *gin.Context) {
	b, err := h.Repos.Biometrics().GetByEmployeeAndType(c.Request.Context(), c.Param("id"), c.Param("type"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if b == nil {
		notFound(c, "biometric")
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBiometricByID(c *gin.Context) {
	b, err := h.Repos.Biometrics().GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if b == nil {
		notFound(c, "biometric")
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) GetEmployeeBiometrics(c *gin.Context) {
	list, err := h.Repos.Biometrics().GetByEmployee(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListBiometricsByType serves GET /biometrics?type=face.
func (h *Handler) ListBiometricsByType(c *gin.Context) {
	typ := c.Query("type")
	if typ == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type query parameter is required"})
		return
	}
	list, err := h.Repos.Biometrics().GetByType(c.Request.Context(), typ)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) DeleteBiometric(c *gin.Context) {
	ok, err := h.Repos.Biometrics().Delete(c.Request.Context(), c.Param("id"), c.Param("type"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		notFound(c, "biometric")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) DeleteEmployeeBiometrics(c *gin.Context) {
	n, err := h.Repos.Biometrics().DeleteByEmployee(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "deleted": n})
}
