package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/taskpulse/internal/infrastructure/outbox"
)

// BreakerState reports the state of an outbound circuit breaker.
type BreakerState interface {
	State() string
}

type Monitor struct {
	pg       *pgxpool.Pool
	redis    *redislib.Client
	outbox   *outbox.Store
	telegram BreakerState

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(pg *pgxpool.Pool, redis *redislib.Client, store *outbox.Store, telegram BreakerState, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		pg:       pg,
		redis:    redis,
		outbox:   store,
		telegram: telegram,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Start runs a first check synchronously, then refreshes in the background.
func (m *Monitor) Start() {
	m.Refresh(context.Background())
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.PostgreSQL && m.status.Redis
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs all checks concurrently and publishes the combined status.
func (m *Monitor) Refresh(ctx context.Context) Status {
	var status Status
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		status.PostgreSQL = m.checkPostgres(gctx)
		return nil
	})
	g.Go(func() error {
		status.Redis = m.checkRedis(gctx)
		return nil
	})
	g.Go(func() error {
		status.Outbox, status.OutboxSize = m.checkOutbox()
		return nil
	})
	_ = g.Wait()

	status.Telegram = "disabled"
	if m.telegram != nil {
		status.Telegram = m.telegram.State()
	}
	status.LastCheck = time.Now()

	m.mu.Lock()
	prev := m.status
	m.status = status
	m.mu.Unlock()

	if !prev.LastCheck.IsZero() && (prev.PostgreSQL != status.PostgreSQL || prev.Redis != status.Redis) {
		m.logger.Warn("connection state changed",
			zap.Bool("postgresql", status.PostgreSQL),
			zap.Bool("redis", status.Redis))
	}
	return status
}

func (m *Monitor) checkPostgres(ctx context.Context) bool {
	if m.pg == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return m.pg.Ping(ctx) == nil
}

func (m *Monitor) checkRedis(ctx context.Context) bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.redis.Ping(ctx).Err() == nil
}

func (m *Monitor) checkOutbox() (bool, int) {
	if m.outbox == nil {
		return false, 0
	}
	size, err := m.outbox.Size()
	if err != nil {
		m.logger.Warn("outbox size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
