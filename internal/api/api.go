// Package api exposes the HR repositories over JSON HTTP with gin.
package api

import (
	"errors"
	"net/http"

	"github.com/celerix-dev/celerix-hr/internal/index"
	"github.com/celerix-dev/celerix-hr/internal/logging"
	"github.com/celerix-dev/celerix-hr/internal/repositories/attendance"
	"github.com/celerix-dev/celerix-hr/internal/repositories/repomanager"
	"github.com/celerix-dev/celerix-hr/pkg/engine"
	"github.com/celerix-dev/celerix-hr/pkg/schema"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	Repos *repomanager.Manager
	Log   logging.Logger
}

func NewHandler(repos *repomanager.Manager, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	return &Handler{Repos: repos, Log: log}
}

// Register mounts every route on g, normally the /api group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/health", h.Health)
	g.POST("/admin/reindex", h.Reindex)

	g.GET("/users", h.ListUsers)
	g.POST("/users", h.CreateUser)
	g.GET("/users/by-email/:email", h.GetUserByEmail)
	g.GET("/users/:id", h.GetUser)
	g.PUT("/users/:id", h.UpdateUser)
	g.DELETE("/users/:id", h.DeleteUser)

	g.GET("/employees", h.ListEmployees)
	g.POST("/employees", h.CreateEmployee)
	g.GET("/employees/:id", h.GetEmployee)
	g.PUT("/employees/:id", h.UpdateEmployee)
	g.DELETE("/employees/:id", h.DeleteEmployee)
	g.GET("/employees/:id/attendance", h.GetEmployeeAttendance)
	g.GET("/employees/:id/biometrics", h.GetEmployeeBiometrics)
	g.PUT("/employees/:id/biometrics/:type", h.SaveBiometric)
	g.GET("/employees/:id/biometrics/:type", h.GetBiometric)
	g.DELETE("/employees/:id/biometrics/:type", h.DeleteBiometric)
	g.DELETE("/employees/:id/biometrics", h.DeleteEmployeeBiometrics)
	g.GET("/departments/:id/employees", h.GetDepartmentEmployees)

	g.POST("/attendance", h.CreateAttendance)
	g.GET("/attendance", h.ListAttendanceByDate)
	g.GET("/attendance/:id", h.GetAttendance)
	g.PUT("/attendance/:id", h.UpdateAttendance)
	g.DELETE("/attendance/:id", h.DeleteAttendance)

	g.GET("/biometrics", h.ListBiometricsByType)
	g.GET("/biometrics/:id", h.GetBiometricByID)
}

// statusOf maps repository errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, index.ErrPartialWrite):
		return http.StatusInternalServerError
	case errors.Is(err, engine.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, index.ErrUniqueTaken),
		errors.Is(err, index.ErrExists),
		errors.Is(err, index.ErrGroupFull):
		return http.StatusConflict
	case errors.Is(err, index.ErrInvalidID),
		errors.Is(err, schema.ErrInvalidDay),
		errors.Is(err, attendance.ErrRangeTooLong):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error(c.Request.Context(), "request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *Handler) Health(c *gin.Context) {
	if _, err := h.Repos.Env().Store.List(c.Request.Context(), "", 1); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "layout": h.Repos.Env().Keys.Name()})
}

func (h *Handler) Reindex(c *gin.Context) {
	rep, err := h.Repos.Reindex(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
