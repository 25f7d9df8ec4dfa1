package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/kindred/internal/apperror"
	"github.com/agenthands/kindred/internal/auth"
	"github.com/agenthands/kindred/internal/core"
	"github.com/agenthands/kindred/internal/core/common"
	"github.com/agenthands/kindred/internal/core/model"
	"github.com/agenthands/kindred/internal/events"
	"github.com/agenthands/kindred/internal/metrics"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	relationTypeKey = "relationType"
)

type Server struct {
	Relations *core.Relations
	Hub       *events.Hub
	Tokens    *auth.TokenService
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func NewServer(relations *core.Relations, hub *events.Hub, tokens *auth.TokenService, m *metrics.Metrics, logger *zap.Logger) *Server {
	return &Server{
		Relations: relations,
		Hub:       hub,
		Tokens:    tokens,
		Metrics:   m,
		Logger:    logger,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	authed := r.Group("/", auth.RequireAuth(s.Tokens))
	authed.POST("/relations/add", s.AddRelation)
	authed.GET("/ws", s.Websocket)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) AddRelation(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		s.fail(c, apperror.Validation("Invalid request body").WithInternal(err))
		return
	}
	req, err := common.ParseJSON[model.AddRelationRequest](body)
	if err != nil {
		s.fail(c, apperror.Validation("Invalid request body").WithInternal(err))
		return
	}
	c.Set(relationTypeKey, string(req.RelationType))

	out, err := s.Relations.AddRelation(c.Request.Context(), auth.CurrentUserID(c), c.GetHeader(IdempotencyHeader), &req)
	if err != nil {
		s.fail(c, err)
		return
	}

	if out.Replayed {
		c.Header(ReplayedHeader, "true")
	}
	c.Data(out.Status, "application/json; charset=utf-8", out.Body)
}

func (s *Server) Websocket(c *gin.Context) {
	s.Hub.ServeWS(c.Writer, c.Request, auth.CurrentUserID(c))
}

func (s *Server) fail(c *gin.Context, err error) {
	status, payload := apperror.ToHTTPError(err)
	_ = c.Error(err)
	c.JSON(status, payload)
}
