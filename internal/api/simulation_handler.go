package api

import (
	"net/http"
	"strconv"
	"time"

	"gocoalesce/adapters/stats/sitepattern"
	"gocoalesce/app"
	"gocoalesce/domain/coalescent"
	"gocoalesce/domain/core"
	"gocoalesce/domain/simulation"
	"gocoalesce/internal"
	"gocoalesce/internal/config"
	"gocoalesce/internal/errors"
	"gocoalesce/internal/metrics"
	"gocoalesce/internal/summary"
	"gocoalesce/ports"

	"github.com/gin-gonic/gin"
)

// SimulationHandler exposes simulation, hypothesis-test and power-curve runs
type SimulationHandler struct {
	simulations *app.SimulationService
	hypotheses  *app.HypothesisService
	runRepo     ports.RunRepository // nil disables persistence endpoints
	defaults    config.SimulationConfig
	metrics     *metrics.Metrics
	logger      *internal.Logger
}

// NewSimulationHandler creates a new simulation handler
func NewSimulationHandler(
	simulations *app.SimulationService,
	hypotheses *app.HypothesisService,
	runRepo ports.RunRepository,
	defaults config.SimulationConfig,
	logger *internal.Logger,
) *SimulationHandler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SimulationHandler{
		simulations: simulations,
		hypotheses:  hypotheses,
		runRepo:     runRepo,
		defaults:    defaults,
		logger:      logger.With("api"),
	}
}

// WithMetrics records completed runs into m
func (h *SimulationHandler) WithMetrics(m *metrics.Metrics) *SimulationHandler {
	h.metrics = m
	return h
}

// RunRequest carries the shared run options. Zero values take the
// configured defaults.
type RunRequest struct {
	Trials     int     `json:"trials"`
	Replicates int     `json:"replicates"`
	Seed       *uint64 `json:"seed"`
	Workers    int     `json:"workers"`
	Confidence float64 `json:"confidence"`
}

// SimulationRequest is the body of POST /api/simulations
type SimulationRequest struct {
	Tau0  float64 `json:"tau0"`
	Tau1  float64 `json:"tau1"`
	Theta float64 `json:"theta" binding:"required"`
	RunRequest
}

// TestRequest is the body of POST /api/tests
type TestRequest struct {
	Tau0  float64 `json:"tau0"` // zero means the configured reference depth
	Tau1  float64 `json:"tau1"`
	Theta float64 `json:"theta" binding:"required"`
	RunRequest
}

// PowerRequest is the body of POST /api/power
type PowerRequest struct {
	Tau0  float64   `json:"tau0"`
	Theta float64   `json:"theta" binding:"required"`
	Grid  []float64 `json:"grid" binding:"required,min=1"`
	RunRequest
}

// PowerResponse pairs a curve with its stored identifier
type PowerResponse struct {
	CurveID core.ID                `json:"curve_id,omitempty"`
	Curve   *simulation.PowerCurve `json:"curve"`
}

// RegisterRoutes mounts the handler under /api
func (h *SimulationHandler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/model", h.GetModel)
	api.POST("/simulations", h.RunSimulation)
	api.POST("/tests", h.RunTest)
	api.POST("/power", h.RunPowerCurve)
	api.GET("/runs", h.ListRuns)
	api.GET("/runs/:runId", h.GetRun)
	api.GET("/power/:curveId", h.GetPowerCurve)
}

// GetModel returns the site-pattern probabilities for query parameters
// tau0, tau1 and theta
func (h *SimulationHandler) GetModel(c *gin.Context) {
	var params coalescent.Parameters
	for name, dst := range map[string]*float64{"tau0": &params.Tau0, "tau1": &params.Tau1, "theta": &params.Theta} {
		v, err := strconv.ParseFloat(c.Query(name), 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter " + name + " must be a number"})
			return
		}
		*dst = v
	}

	probs, err := sitepattern.Probabilities(params)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"params":        params,
		"probabilities": probs,
		"ordered":       params.Ordered(),
	})
}

// RunSimulation runs one coverage study and returns its summary
func (h *SimulationHandler) RunSimulation(c *gin.Context) {
	var req SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings := simulation.Settings{
		Params: coalescent.Parameters{Tau0: req.Tau0, Tau1: req.Tau1, Theta: req.Theta},
	}
	settings.Trials, settings.Replicates, settings.Seed, settings.Workers, settings.Confidence = h.resolve(req.RunRequest)

	result, err := h.simulations.Run(c.Request.Context(), settings)
	if err != nil {
		h.fail(c, err)
		return
	}
	digest, err := summary.Summarize(result)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.metrics.ObserveRun(digest)
	if h.runRepo != nil {
		if err := h.runRepo.SaveRun(c.Request.Context(), digest); err != nil {
			h.logger.Error("failed to store run %s: %v", digest.RunID, err)
		}
	}
	c.JSON(http.StatusOK, digest)
}

// RunTest runs one hypothesis-test setting and returns its summary
func (h *SimulationHandler) RunTest(c *gin.Context) {
	var req TestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings := simulation.TestSettings{Tau0: h.referenceTau0(req.Tau0), Tau1: req.Tau1, Theta: req.Theta}
	settings.Trials, settings.Replicates, settings.Seed, settings.Workers, settings.Confidence = h.resolve(req.RunRequest)

	result, err := h.hypotheses.Test(c.Request.Context(), settings)
	if err != nil {
		h.fail(c, err)
		return
	}
	digest, err := summary.SummarizeTest(result)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.metrics.ObserveTest(digest)
	c.JSON(http.StatusOK, digest)
}

// RunPowerCurve traces power over the requested τ1 grid
func (h *SimulationHandler) RunPowerCurve(c *gin.Context) {
	var req PowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	base := simulation.TestSettings{Tau0: h.referenceTau0(req.Tau0), Theta: req.Theta}
	base.Trials, base.Replicates, base.Seed, base.Workers, base.Confidence = h.resolve(req.RunRequest)

	start := time.Now()
	curve, err := h.hypotheses.PowerCurve(c.Request.Context(), base, req.Grid)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.metrics.ObservePowerCurve(curve, time.Since(start))

	resp := PowerResponse{Curve: curve}
	if h.runRepo != nil {
		id, err := h.runRepo.SavePowerCurve(c.Request.Context(), curve)
		if err != nil {
			h.logger.Error("failed to store power curve: %v", err)
		} else {
			resp.CurveID = id
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ListRuns returns stored run summaries, newest first
func (h *SimulationHandler) ListRuns(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	runs, err := h.runRepo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns one stored run summary
func (h *SimulationHandler) GetRun(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	runID, err := core.ParseRunID(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	run, err := h.runRepo.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetPowerCurve returns one stored power curve
func (h *SimulationHandler) GetPowerCurve(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	curveID, err := core.ParseID("curve", c.Param("curveId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	curve, err := h.runRepo.GetPowerCurve(c.Request.Context(), curveID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if curve == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Power curve not found"})
		return
	}
	c.JSON(http.StatusOK, curve)
}

func (h *SimulationHandler) resolve(req RunRequest) (trials, replicates int, seed uint64, workers int, confidence float64) {
	trials, replicates, seed = h.defaults.Trials, h.defaults.Replicates, h.defaults.Seed
	workers, confidence = h.defaults.Workers, h.defaults.Confidence
	if req.Trials != 0 {
		trials = req.Trials
	}
	if req.Replicates != 0 {
		replicates = req.Replicates
	}
	if req.Seed != nil {
		seed = *req.Seed
	}
	if req.Workers != 0 {
		workers = req.Workers
	}
	if req.Confidence != 0 {
		confidence = req.Confidence
	}
	return trials, replicates, seed, workers, confidence
}

func (h *SimulationHandler) referenceTau0(tau0 float64) float64 {
	if tau0 == 0 {
		return h.defaults.ReferenceTau0
	}
	return tau0
}

func (h *SimulationHandler) requireRepo(c *gin.Context) bool {
	if h.runRepo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence is not configured"})
		return false
	}
	return true
}

func (h *SimulationHandler) fail(c *gin.Context, err error) {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": errors.CodeInvalidInput})
	default:
		h.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
	}
}
