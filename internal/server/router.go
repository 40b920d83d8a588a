package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/artasov/speechd/internal/config"
	"github.com/artasov/speechd/internal/lifecycle"
	"github.com/artasov/speechd/internal/metrics"
	"github.com/artasov/speechd/internal/models"
	"github.com/artasov/speechd/internal/status"
)

// Router provides embeddable HTTP handlers for driving the managed server.
// Endpoints:
//   POST {basePath}/install
//   POST {basePath}/start
//   POST {basePath}/stop
//   POST {basePath}/restart
//   POST {basePath}/reinstall
//   GET  {basePath}/status
//   GET  {basePath}/status/stream   (server-sent events)
//   GET  {basePath}/health          (one-shot probe, reconciles status)
//   GET  {basePath}/models/downloaded?name=...
//   GET  {basePath}/metrics
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	orc      *lifecycle.Orchestrator
	cfg      *config.Config
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/install, /api/status, etc.
func NewRouter(orc *lifecycle.Orchestrator, cfg *config.Config, basePath string) *Router {
	return &Router{orc: orc, cfg: cfg, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/install", r.handleOp(r.orc.Install))
	group.POST("/start", r.handleOp(r.orc.StartExisting))
	group.POST("/stop", r.handleOp(r.orc.Stop))
	group.POST("/restart", r.handleOp(r.orc.Restart))
	group.POST("/reinstall", r.handleOp(r.orc.Reinstall))
	group.GET("/status", r.handleStatus)
	group.GET("/status/stream", r.handleStatusStream)
	group.GET("/health", r.handleHealth)
	group.GET("/models/downloaded", r.handleModelDownloaded)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// No write timeout: a lifecycle operation can hold its response open for
// minutes while the managed server boots, and the status stream is
// long-lived by nature.
func NewServer(addr, basePath string, orc *lifecycle.Orchestrator, cfg *config.Config) *http.Server {
	r := NewRouter(orc, cfg, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Handlers ---

type errorResp struct {
	Error  string         `json:"error"`
	Status *status.Status `json:"status,omitempty"`
}

type modelResp struct {
	Name       string `json:"name"`
	Downloaded bool   `json:"downloaded"`
}

func (r *Router) handleOp(fn func(context.Context) (status.Status, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := fn(c.Request.Context())
		if err != nil {
			writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error(), Status: &st})
			return
		}
		writeJSON(c, http.StatusOK, st)
	}
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.orc.Status())
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.orc.CheckHealth(c.Request.Context()))
}

func (r *Router) handleModelDownloaded(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	writeJSON(c, http.StatusOK, modelResp{
		Name:       name,
		Downloaded: models.Downloaded(r.cfg.RepoDir(), name),
	})
}

// handleStatusStream pushes every status change as a server-sent event.
// The current snapshot is sent first so a late subscriber starts consistent.
func (r *Router) handleStatusStream(c *gin.Context) {
	ch, cancel := r.orc.Store().Subscribe(16)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	if !writeEvent(c, r.orc.Status()) {
		return
	}
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return
			}
			if !writeEvent(c, st) {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeEvent(c *gin.Context, st status.Status) bool {
	b, err := json.Marshal(st)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", b); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}
