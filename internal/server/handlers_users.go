package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleListUsers(c *gin.Context) {
	directory, err := h.usersService.ListActive(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, "list_users_failed", err)
		return
	}
	c.JSON(http.StatusOK, directory)
}

func (h *httpHandler) handleGetUser(c *gin.Context) {
	user, err := h.usersService.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.respondServiceError(c, "get_user_failed", err)
		return
	}
	c.JSON(http.StatusOK, user)
}
