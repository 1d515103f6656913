package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaos-io/rembg-tool/imaging"
	"github.com/chaos-io/rembg-tool/rembg"
	"github.com/chaos-io/rembg-tool/tool"
)

// Server 通过 HTTP 暴露已注册的工具
type Server struct {
	registry *tool.Registry
	health   *Health
	engine   *gin.Engine
}

func New(registry *tool.Registry, health *Health) *Server {
	s := &Server{
		registry: registry,
		health:   health,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.engine.GET("/tools", s.listTools)
	s.engine.POST("/tools/:name", s.callTool)
	s.engine.GET("/healthz", s.healthz)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 阻塞直到 ctx 结束或监听失败
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) listTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.registry.Definitions()})
}

func (s *Server) callTool(c *gin.Context) {
	name := c.Param("name")
	args, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.registry.Execute(c.Request.Context(), name, args)
	if err != nil {
		status := statusOf(err)
		slog.Warn("tool call failed", "tool", name, "status", status, "error", err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) healthz(c *gin.Context) {
	st := s.health.Status()
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}

// statusOf 错误到 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, tool.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, imaging.ErrNoForeground):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rembg.ErrRemoval):
		return http.StatusBadGateway
	case errors.Is(err, tool.ErrInvalidArguments),
		errors.Is(err, imaging.ErrInvalidBase64),
		errors.Is(err, imaging.ErrInvalidImage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}
