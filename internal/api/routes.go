package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ANSSI-FR/route-leaks/internal/classifier"
	"github.com/ANSSI-FR/route-leaks/internal/db"
	"github.com/ANSSI-FR/route-leaks/internal/detect"
	"github.com/ANSSI-FR/route-leaks/internal/enginelog"
	"github.com/ANSSI-FR/route-leaks/internal/fitter"
	"github.com/ANSSI-FR/route-leaks/pkg/models"
)

// APIHandler wraps the detection, fitting and classification engines so
// they are reachable over HTTP in addition to the CLI. Grounded on
// internal/api/routes.go's APIHandler, with the Bitcoin RPC client and
// block scanner replaced by the engine components this domain actually
// needs.
type APIHandler struct {
	dbStore       *db.PostgresStore
	wsHub         *Hub
	model         *classifier.Model
	defaultParams models.Params
	workerCount   int
}

// detectRequest is the body of POST /api/v1/detect.
type detectRequest struct {
	Prefixes  models.Store   `json:"prefixes"`
	Conflicts models.Store   `json:"conflicts"`
	StartDate string         `json:"startDate,omitempty"`
	Params    *models.Params `json:"params,omitempty"`
}

// classifyRequest is the body of POST /api/v1/classify.
type classifyRequest struct {
	Prefixes  models.Store `json:"prefixes"`
	Conflicts models.Store `json:"conflicts"`
}

// fitRequest is the body of POST /api/v1/fit.
type fitRequest struct {
	Prefixes  models.Store `json:"prefixes"`
	Conflicts models.Store `json:"conflicts"`
}

// SetupRouter wires the route-leak engine's HTTP surface: detection,
// classification and fitting as synchronous requests, plus a websocket
// stream of freshly detected leaks. CORS handling, the public/protected
// group split and the static dashboard mount are kept as-is from the
// teacher's router.
func SetupRouter(dbStore *db.PostgresStore, wsHub *Hub, model *classifier.Model, defaultParams models.Params, workerCount int) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var.
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		dbStore:       dbStore,
		wsHub:         wsHub,
		model:         model,
		defaultParams: defaultParams,
		workerCount:   workerCount,
	}

	// ── Public endpoints (no auth) ─────────────────────────────
	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
	}

	// ── Protected endpoints (require bearer token if API_AUTH_TOKEN set) ──
	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	auth.Use(NewRateLimiter(30, 5).Middleware())
	{
		auth.POST("/detect", handler.handleDetect)
		auth.POST("/classify", handler.handleClassify)
		auth.POST("/fit", handler.handleFit)
		auth.GET("/runs", handler.handleRecentRuns)
	}

	// Serve static dashboard, if present.
	r.Static("/dashboard", "./public")

	return r
}

// handleHealth returns engine status and capabilities for service discovery.
func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "route-leak detection engine",
		"capabilities": gin.H{
			"detect":   true,
			"fit":      true,
			"classify": h.model != nil,
		},
		"dbConnected": h.dbStore != nil,
	})
}

// handleDetect runs the Leak Detector over a submitted pair of stores and
// broadcasts the result over the websocket hub, mirroring the teacher's
// BroadcastCoinJoinAlert pattern for this domain's own alert: a freshly
// detected leak.
func (h *APIHandler) handleDetect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	params := h.defaultParams
	if req.Params != nil {
		params = *req.Params
	}

	leaks, err := detect.Detect(req.Prefixes, req.Conflicts, params, req.StartDate)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	runID := fitter.NewRunID()
	if h.dbStore != nil {
		if err := h.dbStore.SaveDetectionRun(c.Request.Context(), string(runID), params, leaks); err != nil {
			enginelog.Warn("api: failed to persist detection run %s: %v", runID, err)
		}
	}

	if h.wsHub != nil && len(leaks) > 0 {
		h.broadcastLeaks(string(runID), leaks)
	}

	c.JSON(http.StatusOK, gin.H{
		"runId": runID,
		"leaks": leaks,
	})
}

// handleClassify runs the Model Runner's prediction step over a
// submitted pair of stores.
func (h *APIHandler) handleClassify(c *gin.Context) {
	if h.model == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no classification model loaded"})
		return
	}

	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result := classifier.Classify(h.model, req.Prefixes, req.Conflicts)

	if h.dbStore != nil {
		runID := fitter.NewRunID()
		if err := h.dbStore.SaveClassificationRun(c.Request.Context(), string(runID), result); err != nil {
			enginelog.Warn("api: failed to persist classification run %s: %v", runID, err)
		}
	}

	c.JSON(http.StatusOK, result)
}

// handleFit runs the Parameter Fitter's grid sweep over a submitted pair
// of stores and persists the chosen value for each of the five
// parameters.
func (h *APIHandler) handleFit(c *gin.Context) {
	var req fitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	results, err := fitter.Sweep(req.Prefixes, req.Conflicts, h.workerCount)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if h.dbStore != nil {
		runID := fitter.NewRunID()
		for _, r := range results {
			if err := h.dbStore.SaveFitResult(c.Request.Context(), string(runID), r); err != nil {
				enginelog.Warn("api: failed to persist fit result for %s: %v", r.Param, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"runId": runID, "results": results})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// handleRecentRuns lists the most recently persisted detection runs.
func (h *APIHandler) handleRecentRuns(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not connected"})
		return
	}
	runs, err := h.dbStore.GetRecentRuns(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// broadcastLeaks sends a newly detected leak set to every connected
// websocket client. Wired as the live-alert counterpart of the teacher's
// BroadcastCoinJoinAlert, for this domain's own alert: an AS newly
// flagged as leaking routes.
func (h *APIHandler) broadcastLeaks(runID string, leaks map[uint32]models.LeakRecord) {
	payload := gin.H{
		"type":  "leak_alert",
		"runId": runID,
		"leaks": leaks,
	}
	if data, err := json.Marshal(payload); err == nil {
		h.wsHub.Broadcast(data)
	}
}
