// Package api exposes the assessment engine over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server holds the HTTP handlers.
type Server struct {
	engine   Assessor
	gatherer prometheus.Gatherer
	log      zerolog.Logger
}

// NewServer builds a Server. gatherer may be nil to disable /metrics.
func NewServer(engine Assessor, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	return &Server{
		engine:   engine,
		gatherer: gatherer,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// Router returns a gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.health)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	v1.POST("/ask", s.ask)
	v1.GET("/users/:userID/inventory", s.currentInventory)
	v1.GET("/users/:userID/history/:inventory", s.history)
	v1.GET("/users/:userID/assessments", s.assessments)
	v1.DELETE("/users/:userID", s.reset)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	resp, err := s.engine.Handle(c.Request.Context(), req.UserID, req.Text)
	if err != nil {
		s.fail(c, err, "ask")
		return
	}
	c.JSON(http.StatusOK, AskResponse{
		Type:     resp.Kind,
		Text:     resp.Text,
		Scores:   resp.Scores,
		Degraded: resp.Degraded,
	})
}

func (s *Server) currentInventory(c *gin.Context) {
	userID := c.Param("userID")
	id, err := s.engine.CurrentInventory(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err, "current inventory")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "inventory": id})
}

func (s *Server) history(c *gin.Context) {
	userID := c.Param("userID")
	turns, err := s.engine.History(c.Request.Context(), userID, inventory.ID(c.Param("inventory")))
	if err != nil {
		s.fail(c, err, "history")
		return
	}
	out := make([]TurnView, 0, len(turns))
	for _, t := range turns {
		out = append(out, TurnView{Role: t.Role, Content: t.Content, CreatedAt: t.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "turns": out})
}

func (s *Server) assessments(c *gin.Context) {
	userID := c.Param("userID")
	list, err := s.engine.Assessments(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err, "assessments")
		return
	}
	out := make([]AssessmentView, 0, len(list))
	for _, a := range list {
		out = append(out, AssessmentView{
			Inventory:  a.Inventory,
			VersionID:  a.VersionID,
			Scores:     a.Scores,
			Confidence: a.Confidence,
			Finished:   a.Finished,
			UpdatedAt:  a.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "assessments": out})
}

func (s *Server) reset(c *gin.Context) {
	userID := c.Param("userID")
	if err := s.engine.Reset(c.Request.Context(), userID); err != nil {
		s.fail(c, err, "reset")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset", "user_id": userID})
}

// fail maps engine errors to status codes. Internal details stay in the log.
func (s *Server) fail(c *gin.Context, err error, op string) {
	if errors.Is(err, inventory.ErrUnknownInventory) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	s.log.Error().Err(err).Str("op", op).Msg("request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
