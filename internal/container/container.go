package container

import (
	"context"
	"fmt"
	"net/http"

	"gocoalesce/adapters/excel"
	"gocoalesce/adapters/postgres"
	"gocoalesce/adapters/rng"
	"gocoalesce/app"
	"gocoalesce/internal"
	"gocoalesce/internal/api"
	"gocoalesce/internal/config"
	"gocoalesce/internal/errors"
	"gocoalesce/internal/metrics"
	"gocoalesce/internal/migration"
	"gocoalesce/ports"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB      *sqlx.DB
	RNG     ports.RNGPort
	Metrics *metrics.Metrics

	// Repositories (nil when persistence is disabled)
	RunRepo ports.RunRepository

	// Services
	Simulations *app.SimulationService
	Hypotheses  *app.HypothesisService
	Sweeps      *app.SweepService
	Workbooks   *excel.WorkbookWriter
}

// New creates a new dependency injection container without persistence
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		RNG:     rng.NewPCGAdapter(),
		Metrics: metrics.New(),
	}
	c.initServices()
	return c, nil
}

// InitWithDatabase attaches a database and rebuilds the services that
// persist run summaries
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	// Test database connection
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.DB = db
	c.RunRepo = postgres.NewRunRepository(db)
	c.initServices()

	c.Logger.Info("Container initialized with database connection")
	return nil
}

// Connect opens the configured PostgreSQL database, runs the migrations and
// attaches it. It is a no-op when DATABASE_URL is empty.
func (c *Container) Connect(ctx context.Context) error {
	if !c.Config.Database.Enabled() {
		c.Logger.Warn("DATABASE_URL not set, run summaries will not be stored")
		return nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		return errors.DatabaseError("failed to connect to database", err)
	}
	if err := migration.NewRunner(c.Logger).Run(ctx, db); err != nil {
		db.Close()
		return errors.Wrap(err, "database migration failed")
	}
	return c.InitWithDatabase(db)
}

func (c *Container) initServices() {
	c.Simulations = app.NewSimulationService(c.RNG, c.Logger)
	c.Hypotheses = app.NewHypothesisService(c.RNG, c.Logger)
	c.Sweeps = app.NewSweepService(c.Simulations, c.RunRepo, c.Logger)
	c.Workbooks = excel.NewWorkbookWriter(c.Logger)
}

// Router builds the HTTP engine serving the simulation API, /health and
// /metrics
func (c *Container) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(ctx *gin.Context) {
		status := gin.H{"status": "ok", "persistence": c.RunRepo != nil}
		if c.DB != nil {
			if err := c.DB.PingContext(ctx.Request.Context()); err != nil {
				status["status"] = "degraded"
				status["error"] = err.Error()
				ctx.JSON(http.StatusServiceUnavailable, status)
				return
			}
		}
		ctx.JSON(http.StatusOK, status)
	})
	r.GET("/metrics", gin.WrapH(c.Metrics.Handler()))

	handler := api.NewSimulationHandler(c.Simulations, c.Hypotheses, c.RunRepo, c.Config.Simulation, c.Logger).
		WithMetrics(c.Metrics)
	handler.RegisterRoutes(r)
	return r
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
