package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/photo-describer/internal/auth"
	"github.com/example/photo-describer/internal/inference"
	"github.com/example/photo-describer/internal/logging"
)

const (
	// ImageField is the multipart part that carries the photo.
	ImageField = "image"

	// MaxUploadSize is the default cap on an upload request body.
	MaxUploadSize = 10 << 20

	// RequestIDHeader echoes the id the gateway logged the upload under.
	RequestIDHeader = "X-Request-ID"

	msgImageRequired = "Image is required."
	msgImageTooLarge = "Image too large."
	msgInternal      = "Internal Server Error"
)

// Gateway relays uploaded photos to an inference service. It holds no state
// between requests.
type Gateway struct {
	describer      inference.Service
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewGateway builds a Gateway. A non-positive maxUploadBytes selects
// MaxUploadSize.
func NewGateway(describer inference.Service, logger *zap.Logger, maxUploadBytes int64) *Gateway {
	if maxUploadBytes <= 0 {
		maxUploadBytes = MaxUploadSize
	}
	return &Gateway{
		describer:      describer,
		logger:         logger.Named("gateway"),
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router. authMiddleware
// guards /upload when non-nil.
func RegisterRoutes(router *gin.Engine, gw *Gateway, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	uploadChain := []gin.HandlerFunc{gw.upload}
	if authMiddleware != nil {
		uploadChain = append([]gin.HandlerFunc{authMiddleware}, uploadChain...)
	}
	router.POST("/upload", uploadChain...)
}

func (g *Gateway) upload(c *gin.Context) {
	requestID := uuid.NewString()
	c.Header(RequestIDHeader, requestID)
	opLogger := logging.WithOperation(g.logger, "handlers.upload", requestID)
	if subject, ok := auth.GetSubject(c.Request.Context()); ok {
		opLogger = opLogger.With(zap.String("subject", subject))
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, g.maxUploadBytes)

	file, err := c.FormFile(ImageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			opLogger.Info("upload rejected", zap.Int64("limit_bytes", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": msgImageTooLarge})
			return
		}
		opLogger.Info("upload rejected", zap.String("reason", "missing image part"), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": msgImageRequired})
		return
	}

	src, err := file.Open()
	if err != nil {
		opLogger.Error("failed to open image part", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		opLogger.Error("failed to read image part", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}
	if len(data) == 0 {
		opLogger.Info("upload rejected", zap.String("reason", "empty image part"))
		c.JSON(http.StatusBadRequest, gin.H{"error": msgImageRequired})
		return
	}

	mimeType := partMIMEType(file.Header.Get("Content-Type"), data)
	start := time.Now()
	description, err := g.describer.Describe(c.Request.Context(), data, mimeType)
	if err != nil {
		fields := []zap.Field{zap.Error(logging.NewOperationError("handlers.describe", requestID, err))}
		var upstream *inference.Error
		if errors.As(err, &upstream) {
			fields = append(fields,
				zap.Int("upstream_status", upstream.StatusCode),
				zap.String("upstream_body", upstream.Body),
			)
		}
		opLogger.Error("describe failed", fields...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}

	opLogger.Info("image described",
		zap.String("mime_type", mimeType),
		zap.Int("image_bytes", len(data)),
		zap.Duration("latency", time.Since(start)),
	)
	c.JSON(http.StatusOK, gin.H{"description": description})
}

// partMIMEType trusts the part header when it names an image type, sniffs
// the bytes otherwise and falls back to JPEG.
func partMIMEType(header string, data []byte) string {
	if mediaType, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mediaType, "image/") {
		return mediaType
	}
	if detected := mimetype.Detect(data); strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	return inference.DefaultMIMEType
}
