package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/celerix-dev/celerix-hr/pkg/schema"
	"github.com/gin-gonic/gin"
)

// mergeBody reads a JSON object body for a partial update. The returned
// function overlays the present fields onto a stored record.
func mergeBody[T any](c *gin.Context) (func(*T), bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, err)
		return nil, false
	}
	var shape T
	if err := json.Unmarshal(body, &shape); err != nil {
		badRequest(c, err)
		return nil, false
	}
	return func(v *T) {
		// Validated above.
		_ = json.Unmarshal(body, v)
	}, true
}

func (h *Handler) CreateEmployee(c *gin.Context) {
	var e schema.Employee
	if err := c.ShouldBindJSON(&e); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.Repos.Employees().Create(c.Request.Context(), &e)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetEmployee(c *gin.Context) {
	e, err := h.Repos.Employees().GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if e == nil {
		notFound(c, "employee")
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) ListEmployees(c *gin.Context) {
	list, err := h.Repos.Employees().List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetDepartmentEmployees(c *gin.Context) {
	list, err := h.Repos.Employees().GetByDepartment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) UpdateEmployee(c *gin.Context) {
	apply, ok := mergeBody[schema.Employee](c)
	if !ok {
		return
	}
	e, err := h.Repos.Employees().Update(c.Request.Context(), c.Param("id"), apply)
	if err != nil {
		h.fail(c, err)
		return
	}
	if e == nil {
		notFound(c, "employee")
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteEmployee(c *gin.Context) {
	ok, err := h.Repos.Employees().Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		notFound(c, "employee")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
