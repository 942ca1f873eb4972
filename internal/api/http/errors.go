package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/huddle/internal/domain"
	"github.com/immxrtalbeast/huddle/internal/repository"
	"github.com/immxrtalbeast/huddle/internal/service"
	"github.com/immxrtalbeast/huddle/lib/logger/sl"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrValidation, http.StatusBadRequest},
	{service.ErrInvalidCredentials, http.StatusBadRequest},
	{service.ErrNoFile, http.StatusBadRequest},
	{domain.ErrInvalidMessage, http.StatusBadRequest},
	{service.ErrRoomForbidden, http.StatusForbidden},
	{repository.ErrUserNotFound, http.StatusNotFound},
	{repository.ErrRoomNotFound, http.StatusNotFound},
	{repository.ErrMessageNotFound, http.StatusNotFound},
	{repository.ErrUserExists, http.StatusConflict},
	{repository.ErrRoomNameExists, http.StatusConflict},
	{service.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
}

// respondError maps service and store errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a bare 500.
func respondError(ctx *gin.Context, log *slog.Logger, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			ctx.JSON(e.status, gin.H{"error": publicMessage(err, e.err)})
			return
		}
	}

	if log != nil {
		log.Error("request failed",
			slog.String("method", ctx.Request.Method),
			slog.String("path", ctx.FullPath()),
			sl.Err(err),
		)
	}
	ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// publicMessage drops the operation prefix so clients only see the sentinel
// and whatever detail was wrapped after it.
func publicMessage(err, sentinel error) string {
	full, msg := err.Error(), sentinel.Error()
	if idx := strings.Index(full, msg); idx >= 0 {
		return full[idx:]
	}
	return msg
}
