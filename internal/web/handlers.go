package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/diogo/muralguide/internal/conversation"
	"github.com/diogo/muralguide/internal/session"
)

type submitRequest struct {
	Text string `json:"text"`
}

func (s *Server) withRoom(h func(*gin.Context, *room)) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := s.store.get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h(c, r)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.store.Len()})
}

func (s *Server) handleCreate(c *gin.Context) {
	id := s.store.Create()
	r, _ := s.store.get(id)
	c.JSON(http.StatusCreated, r.state())
}

func (s *Server) handleGet(c *gin.Context, r *room) {
	c.JSON(http.StatusOK, r.state())
}

func (s *Server) handleDelete(c *gin.Context) {
	if !s.store.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStart(c *gin.Context, r *room) {
	st, err := r.start()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleExit(c *gin.Context, r *room) {
	c.JSON(http.StatusOK, r.exit())
}

func (s *Server) handleSubmit(c *gin.Context, r *room) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	st, err := r.submit(c.Request.Context(), req.Text)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "state": st})
		return
	}
	c.JSON(http.StatusAccepted, st)
}

// statusFor maps intent rejections onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, conversation.ErrBusy),
		errors.Is(err, conversation.ErrClosed),
		errors.Is(err, session.ErrNotChatting):
		return http.StatusConflict
	case errors.Is(err, errRoomClosed):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}
