package remote

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/TFMV/sqlfold/pkg/errors"
)

// PoolConfig configures the connection pool.
type PoolConfig struct {
	DSN                string        `json:"dsn"`
	MaxOpenConnections int           `json:"max_open_connections"`
	MaxIdleConnections int           `json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `json:"conn_max_idle_time"`
	HealthCheckPeriod  time.Duration `json:"health_check_period"`
	ConnectionTimeout  time.Duration `json:"connection_timeout"`
}

func (c *PoolConfig) applyDefaults() {
	if c.MaxOpenConnections <= 0 {
		c.MaxOpenConnections = 16
	}
	if c.MaxIdleConnections <= 0 {
		c.MaxIdleConnections = 4
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 15 * time.Minute
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 30 * time.Second
	}
}

// PoolStats is a snapshot of pool state.
type PoolStats struct {
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"wait_count"`
	WaitDuration    time.Duration `json:"wait_duration"`
	LastHealthCheck time.Time     `json:"last_health_check"`
	Healthy         bool          `json:"healthy"`
}

// Pool manages database connections for one endpoint.
type Pool struct {
	db     *sql.DB
	config PoolConfig
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	lastCheck atomic.Int64
	healthy   atomic.Bool
}

// NewPool opens a pooled database handle and verifies connectivity. A
// positive HealthCheckPeriod starts a background ping loop.
func NewPool(driver string, cfg PoolConfig, logger zerolog.Logger) (*Pool, error) {
	cfg.applyDefaults()

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "open database")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		db:     db,
		config: cfg,
		logger: logger.With().Str("component", "pool").Str("driver", driver).Logger(),
		ctx:    ctx,
		cancel: cancel,
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CodeConnectionFailed, "ping database")
	}
	p.healthy.Store(true)
	p.lastCheck.Store(time.Now().Unix())

	if cfg.HealthCheckPeriod > 0 {
		go p.healthLoop()
	}

	p.logger.Debug().
		Int("max_open", cfg.MaxOpenConnections).
		Int("max_idle", cfg.MaxIdleConnections).
		Msg("connection pool ready")
	return p, nil
}

// DB returns the pooled handle.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Ping checks connection liveness.
func (p *Pool) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.ConnectionTimeout)
	defer cancel()
	if err := p.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.CodeConnectionFailed, "ping database")
	}
	return nil
}

// Stats returns a snapshot of pool state.
func (p *Pool) Stats() PoolStats {
	s := p.db.Stats()
	return PoolStats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		WaitCount:       s.WaitCount,
		WaitDuration:    s.WaitDuration,
		LastHealthCheck: time.Unix(p.lastCheck.Load(), 0),
		Healthy:         p.healthy.Load(),
	}
}

// Close stops the health loop and closes the handle.
func (p *Pool) Close() error {
	p.cancel()
	return p.db.Close()
}

func (p *Pool) healthLoop() {
	ticker := time.NewTicker(p.config.HealthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			err := p.Ping(p.ctx)
			p.lastCheck.Store(time.Now().Unix())
			p.healthy.Store(err == nil)
			if err != nil {
				p.logger.Warn().Err(err).Msg("health check failed")
			}
		}
	}
}
