package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/huddle/internal/api/http/converter"
	"github.com/immxrtalbeast/huddle/internal/service"
)

type RoomController struct {
	rooms    service.RoomInteractor
	messages service.MessageInteractor
	log      *slog.Logger
}

func NewRoomController(rooms service.RoomInteractor, messages service.MessageInteractor, log *slog.Logger) *RoomController {
	return &RoomController{rooms: rooms, messages: messages, log: log}
}

func (c *RoomController) CreateRoom(ctx *gin.Context) {
	type request struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		IsPrivate   bool   `json:"isPrivate"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	room, err := c.rooms.CreateRoom(ctx.Request.Context(), currentUserID(ctx), req.Name, req.Description, req.IsPrivate)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, converter.RoomToApi(room))
}

func (c *RoomController) ListRooms(ctx *gin.Context) {
	rooms, err := c.rooms.ListRooms(ctx.Request.Context(), currentUserID(ctx))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, converter.RoomsToApi(rooms))
}

func (c *RoomController) JoinRoom(ctx *gin.Context) {
	roomID, ok := roomIDParam(ctx)
	if !ok {
		return
	}

	room, err := c.rooms.JoinRoom(ctx.Request.Context(), currentUserID(ctx), roomID)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, converter.RoomToApi(room))
}

func (c *RoomController) AddMember(ctx *gin.Context) {
	roomID, ok := roomIDParam(ctx)
	if !ok {
		return
	}

	type request struct {
		UserID string `json:"userId" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	room, err := c.rooms.AddMember(ctx.Request.Context(), currentUserID(ctx), roomID, userID)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, converter.RoomToApi(room))
}

func (c *RoomController) History(ctx *gin.Context) {
	roomID, ok := roomIDParam(ctx)
	if !ok {
		return
	}

	msgs, err := c.messages.History(ctx.Request.Context(), currentUserID(ctx), roomID)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, converter.MessagesToApi(msgs))
}

func roomIDParam(ctx *gin.Context) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return uuid.Nil, false
	}
	return roomID, true
}
