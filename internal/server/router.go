package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/hostprep/internal/history"
	"github.com/loykin/hostprep/internal/status"
)

// Router exposes read-only HTTP handlers over the orchestration state.
// Endpoints:
//
//	GET {basePath}/healthz   liveness probe, always 200
//	GET {basePath}/status    current status record
//	GET {basePath}/ready     200 when the readiness predicate holds, 503 otherwise
//	GET {basePath}/history   recent transition events (requires a SQL sink)
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	status   *status.Reporter
	history  *history.SQLSink
	ready    func() bool
	basePath string
}

// NewRouter constructs a Router. history and ready may be nil; the
// corresponding endpoints then report 404 and 200 respectively.
func NewRouter(st *status.Reporter, hist *history.SQLSink, ready func() bool, basePath string) *Router {
	return &Router{status: st, history: hist, ready: ready, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/status", r.handleStatus)
	group.GET("/ready", r.handleReady)
	group.GET("/history", r.handleHistory)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, r *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.status.Read())
}

func (r *Router) handleReady(c *gin.Context) {
	if r.ready != nil && !r.ready() {
		writeJSON(c, http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ready": true})
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.history == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "no history sink configured"})
		return
	}
	limit := 50
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	events, err := r.history.Recent(ctx, limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, events)
}
