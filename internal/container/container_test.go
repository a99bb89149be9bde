package container

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gocoalesce/internal"
	"gocoalesce/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Simulation: config.SimulationConfig{
			Seed: 11, Replicates: 5, Trials: 20000, Workers: 1, Confidence: 0.95, ReferenceTau0: 0.001,
		},
		Server: config.ServerConfig{Port: "0", GinMode: gin.TestMode},
	}
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestNewWiresServicesWithoutDatabase(t *testing.T) {
	c, err := New(testConfig(), internal.NewLoggerTo(&bytes.Buffer{}, internal.LogLevelError))
	require.NoError(t, err)

	assert.NotNil(t, c.Simulations)
	assert.NotNil(t, c.Hypotheses)
	assert.NotNil(t, c.Sweeps)
	assert.NotNil(t, c.Workbooks)
	assert.Nil(t, c.RunRepo)
	assert.NoError(t, c.Connect(context.Background()))
	assert.Nil(t, c.DB)
	assert.Error(t, c.InitWithDatabase(nil))
	assert.NoError(t, c.Shutdown(context.Background()))
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, err := New(testConfig(), internal.NewLoggerTo(&bytes.Buffer{}, internal.LogLevelError))
	require.NoError(t, err)
	r := c.Router()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"persistence":false`)

	body := `{"tau0":0.002,"tau1":0.001,"theta":0.001}`
	req := httptest.NewRequest(http.MethodPost, "/api/simulations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `gocoalesce_runs_total{kind="simulation"} 1`)
}
