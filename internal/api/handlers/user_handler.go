// server/internal/api/handlers/user_handler.go
package handlers

import (
	"net/http"

	"requisition-api-server/internal/backend"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	Backend *backend.Backend
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials and returns the user profile with a signed token.
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result := h.Backend.Invoke(c.Request.Context(), "login", backend.Params{
		"email":    req.Email,
		"password": req.Password,
	})
	if result["result"] == "error" {
		c.JSON(http.StatusUnauthorized, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Me returns the profile of the token owner.
func (h *UserHandler) Me(c *gin.Context) {
	email := c.GetString("user_email")
	result := h.Backend.Invoke(c.Request.Context(), "get_my_profile", backend.Params{
		"email": email,
	})
	if result["result"] == "error" {
		c.JSON(http.StatusNotFound, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
