package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
)

// RTCController hands browsers the ICE servers they should use for calls.
type RTCController struct {
	iceServers []webrtc.ICEServer
}

func NewRTCController(iceServers []webrtc.ICEServer) *RTCController {
	if iceServers == nil {
		iceServers = []webrtc.ICEServer{}
	}
	return &RTCController{iceServers: iceServers}
}

func (c *RTCController) ICEServers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"iceServers": c.iceServers})
}
