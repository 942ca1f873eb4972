package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/huddle/internal/api/http/converter"
	"github.com/immxrtalbeast/huddle/internal/service"
)

type UserController struct {
	users service.UserInteractor
	log   *slog.Logger
}

func NewUserController(users service.UserInteractor, log *slog.Logger) *UserController {
	return &UserController{users: users, log: log}
}

func (c *UserController) Register(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	user, err := c.users.Register(ctx.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "user created successfully",
		"user":    converter.UserToApi(user),
	})
}

func (c *UserController) Login(ctx *gin.Context) {
	type request struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	session, err := c.users.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"token":    session.Token,
		"userId":   session.User.ID,
		"username": session.User.Username,
	})
}

func (c *UserController) Me(ctx *gin.Context) {
	user, err := c.users.GetUser(ctx.Request.Context(), currentUserID(ctx))
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": converter.UserToApi(user)})
}
