package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gocoalesce/adapters/rng"
	"gocoalesce/app"
	"gocoalesce/domain/core"
	"gocoalesce/domain/simulation"
	"gocoalesce/internal"
	"gocoalesce/internal/config"
	"gocoalesce/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	runs   map[core.RunID]*simulation.RunSummary
	curves map[core.ID]*simulation.PowerCurve
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		runs:   make(map[core.RunID]*simulation.RunSummary),
		curves: make(map[core.ID]*simulation.PowerCurve),
	}
}

func (m *memoryRepo) SaveRun(ctx context.Context, s *simulation.RunSummary) error {
	m.runs[s.RunID] = s
	return nil
}

func (m *memoryRepo) GetRun(ctx context.Context, id core.RunID) (*simulation.RunSummary, error) {
	return m.runs[id], nil
}

func (m *memoryRepo) ListRuns(ctx context.Context, limit int) ([]*simulation.RunSummary, error) {
	out := make([]*simulation.RunSummary, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryRepo) SavePowerCurve(ctx context.Context, c *simulation.PowerCurve) (core.ID, error) {
	id := core.NewID()
	m.curves[id] = c
	return id, nil
}

func (m *memoryRepo) GetPowerCurve(ctx context.Context, id core.ID) (*simulation.PowerCurve, error) {
	return m.curves[id], nil
}

func newTestRouter(repo *memoryRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := internal.NewLoggerTo(&bytes.Buffer{}, internal.LogLevelError)
	port := rng.NewPCGAdapter()
	defaults := config.SimulationConfig{
		Seed:          3,
		Replicates:    20,
		Trials:        50000,
		Workers:       1,
		Confidence:    0.95,
		ReferenceTau0: 0.001,
	}

	var runRepo ports.RunRepository
	if repo != nil {
		runRepo = repo
	}
	h := NewSimulationHandler(app.NewSimulationService(port, logger), app.NewHypothesisService(port, logger), runRepo, defaults, logger)

	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetModel(t *testing.T) {
	r := newTestRouter(nil)

	w := do(r, http.MethodGet, "/api/model?tau0=0.002&tau1=0.001&theta=0.001", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Probabilities []float64 `json:"probabilities"`
		Ordered       bool      `json:"ordered"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Probabilities, 5)
	var sum float64
	for _, p := range resp.Probabilities {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.True(t, resp.Ordered)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/model?tau0=0.002&tau1=0.001", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/model?tau0=0.002&tau1=0.001&theta=-1", nil).Code)
}

func TestRunSimulationEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	r := newTestRouter(repo)

	w := do(r, http.MethodPost, "/api/simulations", gin.H{"tau0": 0.002, "tau1": 0.001, "theta": 0.001, "replicates": 15})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var digest simulation.RunSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &digest))
	assert.Equal(t, 15, digest.Settings.Replicates)
	assert.Equal(t, 50000, digest.Settings.Trials)
	assert.Equal(t, uint64(3), digest.Settings.Seed)
	assert.Equal(t, 15, digest.Tau0.Usable+digest.Tau0.Excluded)
	assert.Len(t, repo.runs, 1)

	w = do(r, http.MethodGet, "/api/runs/"+digest.RunID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/runs/"+core.NewRunID().String(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/runs/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/runs?limit=5", nil).Code)
}

func TestRunSimulationRejectsBadInput(t *testing.T) {
	r := newTestRouter(nil)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/simulations", gin.H{"tau0": 0.002}).Code)

	w := do(r, http.MethodPost, "/api/simulations", gin.H{"tau0": 0.002, "tau1": 0.001, "theta": -0.1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INPUT")

	w = do(r, http.MethodPost, "/api/simulations", gin.H{"tau0": 0.002, "tau1": 0.001, "theta": 0.001, "trials": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunTestEndpoint(t *testing.T) {
	r := newTestRouter(nil)

	w := do(r, http.MethodPost, "/api/tests", gin.H{"tau1": 0, "theta": 0.005, "replicates": 10})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var digest simulation.TestSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &digest))
	assert.Equal(t, 0.001, digest.Settings.Tau0)
	assert.Equal(t, 10, digest.Usable+digest.Excluded)
}

func TestRunPowerCurveEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	r := newTestRouter(repo)

	w := do(r, http.MethodPost, "/api/power", gin.H{"theta": 0.005, "grid": []float64{0.001, 0}, "replicates": 10})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PowerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Curve.Points, 2)
	assert.Equal(t, 0.0, resp.Curve.Points[0].Tau1)
	assert.False(t, resp.CurveID.IsEmpty())

	w = do(r, http.MethodGet, "/api/power/"+resp.CurveID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/power/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/power/"+core.NewID().String(), nil).Code)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/power", gin.H{"theta": 0.005, "grid": []float64{}}).Code)
}

func TestPersistenceEndpointsWithoutRepository(t *testing.T) {
	r := newTestRouter(nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/runs", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/runs/"+core.NewRunID().String(), nil).Code)
}
