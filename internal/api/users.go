package api

import (
	"net/http"
	"strconv"

	"github.com/celerix-dev/celerix-hr/internal/repositories/users"
	"github.com/celerix-dev/celerix-hr/pkg/schema"
	"github.com/gin-gonic/gin"
)

type userInput struct {
	Email      *string        `json:"email"`
	Password   *string        `json:"password"`
	Role       *string        `json:"role"`
	Name       *string        `json:"name"`
	Phone      *string        `json:"phone"`
	Attributes map[string]any `json:"attributes"`
}

// hash returns the bcrypt hash of a supplied password.
func (in *userInput) hash() (string, error) {
	if in.Password == nil {
		return "", nil
	}
	return users.HashPassword(*in.Password)
}

// apply copies the set fields onto u.
func (in *userInput) apply(u *schema.User, hash string) {
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.Attributes != nil {
		u.Attributes = in.Attributes
	}
	if in.Password != nil {
		u.PasswordHash = hash
	}
}

// public strips the password hash from responses.
func public(u *schema.User) *schema.User {
	out := *u
	out.PasswordHash = ""
	return &out
}

func (h *Handler) CreateUser(c *gin.Context) {
	var in userInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if in.Email == nil || *in.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	hash, err := in.hash()
	if err != nil {
		h.fail(c, err)
		return
	}
	u := &schema.User{Role: schema.RoleEmployee}
	in.apply(u, hash)
	created, err := h.Repos.Users().Create(c.Request.Context(), u)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, public(created))
}

func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.Repos.Users().GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if u == nil {
		notFound(c, "user")
		return
	}
	c.JSON(http.StatusOK, public(u))
}

func (h *Handler) GetUserByEmail(c *gin.Context) {
	u, err := h.Repos.Users().GetByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if u == nil {
		notFound(c, "user")
		return
	}
	c.JSON(http.StatusOK, public(u))
}

func (h *Handler) ListUsers(c *gin.Context) {
	limit := users.DefaultListLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	list, err := h.Repos.Users().List(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]*schema.User, len(list))
	for i, u := range list {
		out[i] = public(u)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var in userInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	// Hash outside the callback, which runs under the record lock.
	hash, err := in.hash()
	if err != nil {
		h.fail(c, err)
		return
	}
	u, err := h.Repos.Users().Update(c.Request.Context(), c.Param("id"), func(u *schema.User) {
		in.apply(u, hash)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if u == nil {
		notFound(c, "user")
		return
	}
	c.JSON(http.StatusOK, public(u))
}

func (h *Handler) DeleteUser(c *gin.Context) {
	ok, err := h.Repos.Users().Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		notFound(c, "user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
