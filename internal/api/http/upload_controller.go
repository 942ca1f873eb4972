package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/huddle/internal/service"
)

type UploadController struct {
	uploads       service.UploadInteractor
	maxSize       int64
	publicBaseURL string
	log           *slog.Logger
}

// NewUploadController builds absolute file URLs from publicBaseURL, or from
// the request's own scheme and host when it is empty.
func NewUploadController(uploads service.UploadInteractor, maxSize int64, publicBaseURL string, log *slog.Logger) *UploadController {
	return &UploadController{
		uploads:       uploads,
		maxSize:       maxSize,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		log:           log,
	}
}

func (c *UploadController) Upload(ctx *gin.Context) {
	// multipart overhead on top of the file itself
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.maxSize+1<<20)

	header, err := ctx.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(ctx, c.log, service.ErrFileTooLarge)
			return
		}
		respondError(ctx, c.log, service.ErrNoFile)
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	defer file.Close()

	stored, err := c.uploads.Save(ctx.Request.Context(), header.Filename, header.Size, file)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"fileUrl":  c.baseURL(ctx) + stored.Path,
		"fileName": stored.OriginalName,
	})
}

func (c *UploadController) baseURL(ctx *gin.Context) string {
	if c.publicBaseURL != "" {
		return c.publicBaseURL
	}
	scheme := "http"
	if ctx.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := ctx.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + ctx.Request.Host
}
