package api

import (
	"net/http"

	"github.com/celerix-dev/celerix-hr/pkg/schema"
	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateAttendance(c *gin.Context) {
	var a schema.Attendance
	if err := c.ShouldBindJSON(&a); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.Repos.Attendance().Create(c.Request.Context(), &a)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetAttendance(c *gin.Context) {
	a, err := h.Repos.Attendance().GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if a == nil {
		notFound(c, "attendance record")
		return
	}
	c.JSON(http.StatusOK, a)
}

// ListAttendanceByDate serves GET /attendance?date=YYYY-MM-DD.
func (h *Handler) ListAttendanceByDate(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter is required"})
		return
	}
	list, err := h.Repos.Attendance().GetByDate(c.Request.Context(), date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetEmployeeAttendance serves either ?date= or an inclusive ?from=&to= range.
func (h *Handler) GetEmployeeAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	var (
		list []*schema.Attendance
		err  error
	)
	switch from, to := c.Query("from"), c.Query("to"); {
	case c.Query("date") != "":
		list, err = h.Repos.Attendance().GetByEmployeeAndDate(ctx, id, c.Query("date"))
	case from != "" && to != "":
		list, err = h.Repos.Attendance().GetByEmployeeRange(ctx, id, from, to)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "date or from and to query parameters are required"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) UpdateAttendance(c *gin.Context) {
	apply, ok := mergeBody[schema.Attendance](c)
	if !ok {
		return
	}
	a, err := h.Repos.Attendance().Update(c.Request.Context(), c.Param("id"), apply)
	if err != nil {
		h.fail(c, err)
		return
	}
	if a == nil {
		notFound(c, "attendance record")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAttendance(c *gin.Context) {
	ok, err := h.Repos.Attendance().Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		notFound(c, "attendance record")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
