package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Origins    *OriginPolicy
	Auth       gin.HandlerFunc
	UploadsDir string
	Users      *UserController
	Rooms      *RoomController
	Uploads    *UploadController
	RTC        *RTCController
	Socket     *SocketController
}

func SetupRouter(deps RouterDeps) *gin.Engine {
	router := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOriginFunc = deps.Origins.Allowed
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	config.MaxAge = 12 * time.Hour
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.UploadsDir != "" {
		router.Static("/uploads", deps.UploadsDir)
	}
	if deps.Socket != nil {
		router.GET("/ws", deps.Socket.Serve)
	}

	api := router.Group("/api")

	if deps.RTC != nil {
		api.GET("/rtc/ice-servers", deps.RTC.ICEServers)
	}

	if deps.Users != nil {
		api.POST("/register", deps.Users.Register)
		api.POST("/login", deps.Users.Login)
	}

	protected := api.Group("")
	if deps.Auth != nil {
		protected.Use(deps.Auth)
	}

	if deps.Users != nil {
		protected.GET("/me", deps.Users.Me)
	}

	if deps.Rooms != nil {
		rooms := protected.Group("/rooms")
		rooms.POST("", deps.Rooms.CreateRoom)
		rooms.GET("", deps.Rooms.ListRooms)
		rooms.POST("/:roomID/join", deps.Rooms.JoinRoom)
		rooms.POST("/:roomID/members", deps.Rooms.AddMember)

		protected.GET("/messages/:roomID", deps.Rooms.History)
	}

	if deps.Uploads != nil {
		protected.POST("/upload", deps.Uploads.Upload)
	}

	return router
}
