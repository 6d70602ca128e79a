package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"Briefcaster/internal/domain"
	"Briefcaster/internal/ports"
)

// Generator produces one briefing on demand.
type Generator interface {
	Generate(ctx context.Context, req domain.BriefingRequest) (domain.Briefing, error)
}

// Defaults fill request fields the caller leaves out.
type Defaults struct {
	Topic           string
	DurationMinutes float64
	LookbackHours   int
	WeekendAware    bool
}

// Handler serves the briefing endpoints.
type Handler struct {
	generator  Generator
	repository ports.BriefingRepository
	defaults   Defaults
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandler wires the generator and repository; repository may be nil when storage is off.
func NewHandler(generator Generator, repository ports.BriefingRepository, defaults Defaults, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		generator:  generator,
		repository: repository,
		defaults:   defaults,
		logger:     logger.With("component", "api"),
		now:        time.Now,
	}
}

// NewServer creates the gin engine with all routes configured.
func NewServer(handler *Handler, apiKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(handler.logger))

	r.GET("/health", handler.Health)

	api := r.Group("/api")
	if apiKey != "" {
		api.Use(authMiddleware(apiKey))
	} else {
		handler.logger.Warn("api key not set; briefing endpoints are unauthenticated")
	}
	api.POST("/briefings", handler.CreateBriefing)
	api.GET("/briefings", handler.ListBriefings)
	api.GET("/briefings/:id", handler.GetBriefing)

	return r
}

type createRequest struct {
	Topic           string  `json:"topic"`
	DurationMinutes float64 `json:"duration_minutes"`
	LookbackHours   int     `json:"lookback_hours"`
	Audio           bool    `json:"audio"`
}

type sectionResponse struct {
	Name        string `json:"name"`
	Text        string `json:"text"`
	TargetWords int    `json:"target_words"`
	ItemCount   int    `json:"item_count"`
}

type briefingResponse struct {
	ID              string            `json:"id"`
	Topic           string            `json:"topic"`
	Tier            string            `json:"tier"`
	Status          string            `json:"status"`
	Text            string            `json:"text,omitempty"`
	Sections        []sectionResponse `json:"sections,omitempty"`
	WordCount       int               `json:"word_count"`
	DurationSeconds float64           `json:"duration_seconds"`
	AudioKey        string            `json:"audio_key,omitempty"`
	SectionCounts   map[string]int    `json:"section_counts"`
	Sources         string            `json:"sources"`
	Escalations     int               `json:"escalations"`
	CoveredEntities []string          `json:"covered_entities,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// CreateBriefing runs the pipeline synchronously and returns the result.
func (h *Handler) CreateBriefing(c *gin.Context) {
	var body createRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
			return
		}
	}

	req := h.buildRequest(body)
	briefing, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toResponse(briefing, true))
}

// GetBriefing returns one stored briefing.
func (h *Handler) GetBriefing(c *gin.Context) {
	if h.repository == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage disabled"})
		return
	}

	briefing, err := h.repository.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(briefing, true))
}

// ListBriefings returns recent briefings without their text.
func (h *Handler) ListBriefings(c *gin.Context) {
	if h.repository == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}

	briefings, err := h.repository.List(c.Request.Context(), c.Query("topic"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]briefingResponse, 0, len(briefings))
	for _, b := range briefings {
		out = append(out, toResponse(b, false))
	}
	c.JSON(http.StatusOK, gin.H{"briefings": out, "total": len(out)})
}

func (h *Handler) buildRequest(body createRequest) domain.BriefingRequest {
	topic := strings.TrimSpace(body.Topic)
	if topic == "" {
		topic = h.defaults.Topic
	}
	duration := body.DurationMinutes
	if duration == 0 {
		duration = h.defaults.DurationMinutes
	}
	hours := body.LookbackHours
	if hours <= 0 {
		hours = h.defaults.LookbackHours
	}

	window := domain.LookbackWindow(h.now(), hours, h.defaults.WeekendAware)
	return domain.BriefingRequest{
		Topic:           topic,
		DurationMinutes: duration,
		Window:          &window,
		ProduceAudio:    body.Audio,
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		budgetErr    *domain.BudgetError
		noContentErr *domain.NoContentError
	)
	switch {
	case errors.As(err, &budgetErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid duration", "message": err.Error()})
	case errors.As(err, &noContentErr):
		c.JSON(http.StatusNotFound, gin.H{"error": "no content", "message": err.Error(), "attempts": noContentErr.Attempts})
	case errors.Is(err, domain.ErrBriefingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "briefing not found"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "timed out", "message": err.Error()})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func toResponse(b domain.Briefing, withText bool) briefingResponse {
	resp := briefingResponse{
		ID:              b.ID,
		Topic:           b.Topic,
		Tier:            string(b.Tier),
		Status:          string(b.Status),
		WordCount:       b.WordCount,
		DurationSeconds: b.Duration.Seconds(),
		AudioKey:        b.AudioKey,
		SectionCounts:   b.SectionCounts,
		Sources:         "sources used: " + strconv.Itoa(b.SourcesUsed) + " of " + strconv.Itoa(b.SourcesTotal),
		Escalations:     b.Escalations,
		CoveredEntities: b.CoveredEntities,
		CreatedAt:       b.CreatedAt,
	}
	if withText {
		resp.Text = b.Text
		for _, s := range b.Sections {
			resp.Sections = append(resp.Sections, sectionResponse{
				Name:        s.Name,
				Text:        s.Text,
				TargetWords: s.TargetWords,
				ItemCount:   s.ItemCount,
			})
		}
	}
	return resp
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// authMiddleware accepts the key in X-API-Key or as a bearer token.
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-API-Key")
		if provided == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				provided = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}
		if provided != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}
		c.Next()
	}
}
