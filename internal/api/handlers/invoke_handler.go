// server/internal/api/handlers/invoke_handler.go
package handlers

import (
	"net/http"
	"strings"

	"requisition-api-server/internal/auth"
	"requisition-api-server/internal/backend"

	"github.com/gin-gonic/gin"
)

// Actions callable without a token. Everything else on /invoke needs a valid
// bearer token.
var publicActions = map[string]bool{
	"login":           true,
	"test_connection": true,
	"test":            true,
}

type InvokeHandler struct {
	Backend *backend.Backend
}

type InvokeRequest struct {
	Action string         `json:"action" binding:"required"`
	Params map[string]any `json:"params"`
}

// Invoke is the single RPC entry point. The body names an action and its
// parameters; the response is always the result envelope. HTTP status mirrors
// the envelope: 409 for version conflicts, 400 for other errors.
func (h *InvokeHandler) Invoke(c *gin.Context) {
	var req InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"result": "error", "error": err.Error()})
		return
	}
	params := backend.Params(req.Params)
	if params == nil {
		params = backend.Params{}
	}

	if !publicActions[req.Action] {
		claims, err := bearerClaims(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"result": "error", "error": "Invalid or missing token"})
			return
		}
		// The token is the identity; clients cannot act as someone else.
		params["email"] = claims.Email
		if _, ok := params["user"]; !ok {
			params["user"] = claims.Email
		}
	}

	result := h.Backend.Invoke(c.Request.Context(), req.Action, params)
	c.JSON(statusFor(result), result)
}

func bearerClaims(c *gin.Context) (*auth.JWTClaims, error) {
	header := c.GetHeader("Authorization")
	tokenString := strings.TrimPrefix(header, "Bearer ")
	return auth.ParseJWT(tokenString)
}

func statusFor(result backend.Result) int {
	if result["result"] != "error" {
		return http.StatusOK
	}
	if result["code"] == "CONFLICT" {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}
