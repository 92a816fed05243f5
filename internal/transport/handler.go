package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-medical-image-analyzer/internal/config"
	apperrors "go-medical-image-analyzer/internal/errors"
	"go-medical-image-analyzer/internal/logger"
	"go-medical-image-analyzer/internal/observer"
	"go-medical-image-analyzer/internal/service"
	"go-medical-image-analyzer/internal/vision"
)

// AnalyzeURLRequest asks for analysis of a remotely stored image
type AnalyzeURLRequest struct {
	URL      string `json:"url" binding:"required,url"`
	Question string `json:"question,omitempty"`
}

// ModelResultEntry is one model's slot in the response, in configured
// order. Content and Error are mutually exclusive.
type ModelResultEntry struct {
	Model   string `json:"model"`
	ModelID string `json:"model_id"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ImageMeta describes the validated image
type ImageMeta struct {
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int    `json:"size_bytes"`
}

// AnalysisResponse is the outcome of one consultation
type AnalysisResponse struct {
	Question  string             `json:"question"`
	Image     ImageMeta          `json:"image"`
	Results   []ModelResultEntry `json:"results"`
	ElapsedMs int64              `json:"elapsed_ms"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewHandler builds the HTTP API around the analysis service
func NewHandler(svc service.AnalysisService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	r := gin.Default()

	r.Use(
		requestSizeLimiter(cfg.MaxUploadSize),
		errorHandler(),
	)

	r.GET("/health", healthCheck)

	v1 := r.Group("/v1")
	v1.POST("/analyze", analyzeUpload(svc, cfg))
	v1.POST("/analyze-url", analyzeURL(svc, cfg))
	v1.GET("/models", listModels(svc, cfg))
	v1.GET("/metrics", showMetrics(metrics))

	return r
}

func analyzeUpload(svc service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"ip":     c.ClientIP(),
		}).Info("Processing image analysis request")

		fileHeader, err := c.FormFile("image")
		if err != nil {
			respondError(c, http.StatusBadRequest, "missing image file", err)
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "unreadable image file", err)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			respondError(c, http.StatusBadRequest, "unreadable image file", err)
			return
		}

		question := questionOrDefault(c.PostForm("question"), cfg)
		outcome, err := svc.AnalyzeImage(ctx, data, question, fileHeader.Filename)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "analysis failed", err)
			return
		}

		c.JSON(http.StatusOK, toAnalysisResponse(question, outcome))
	}
}

func analyzeURL(svc service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req AnalyzeURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		if err := validateImageURL(req.URL); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid image URL", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"url":    req.URL,
			"ip":     c.ClientIP(),
		}).Info("Processing image analysis request")

		question := questionOrDefault(req.Question, cfg)
		outcome, err := svc.AnalyzeImageURL(ctx, req.URL, question)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "analysis failed", err)
			return
		}

		c.JSON(http.StatusOK, toAnalysisResponse(question, outcome))
	}
}

func listModels(svc service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"models":           svc.Models(),
			"default_question": cfg.DefaultQuestion,
		})
	}
}

func showMetrics(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// questionOrDefault substitutes the configured default question for an
// omitted one. The runner itself still rejects empty questions; the
// default is a UI convenience applied only at this boundary.
func questionOrDefault(question string, cfg *config.Config) string {
	if strings.TrimSpace(question) == "" {
		return cfg.DefaultQuestion
	}
	return question
}

func toAnalysisResponse(question string, outcome *service.AnalysisOutcome) AnalysisResponse {
	resp := AnalysisResponse{
		Question: question,
		Image: ImageMeta{
			Format:    outcome.Image.Format,
			Width:     outcome.Image.Width,
			Height:    outcome.Image.Height,
			SizeBytes: len(outcome.Image.Data),
		},
		Results:   make([]ModelResultEntry, 0, len(outcome.Results)),
		ElapsedMs: outcome.Elapsed.Milliseconds(),
	}
	for _, result := range outcome.Results {
		resp.Results = append(resp.Results, toResultEntry(result))
	}
	return resp
}

func toResultEntry(result vision.ModelResult) ModelResultEntry {
	entry := ModelResultEntry{
		Model:   result.Spec.Label,
		ModelID: result.Spec.ID,
	}
	if result.OK() {
		entry.Content = result.Content
	} else {
		entry.Error = result.ErrorText()
	}
	return entry
}

func validateImageURL(imageURL string) error {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("invalid URL format", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return apperrors.NewValidationError("URL scheme must be http or https", nil)
	}
	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	return nil
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, apperrors.GetStatusCode(err.Err), "request processing failed", err)
		}
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
