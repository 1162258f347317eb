package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownFunc stops one component.
type ShutdownFunc func(ctx context.Context) error

type component struct {
	name string
	stop ShutdownFunc
}

// Manager stops registered components in reverse registration order, once.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu         sync.Mutex
	components []component
	once       sync.Once
	result     error
}

func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a component. Components registered later stop first.
func (m *Manager) Register(name string, stop ShutdownFunc) {
	if stop == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component{name: name, stop: stop})
}

// Shutdown stops every component within the configured timeout. Failures
// do not interrupt the sequence; they are joined and tagged with the
// component name. Subsequent calls return the first result.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.once.Do(func() {
		m.result = m.stopAll(ctx)
	})
	return m.result
}

func (m *Manager) stopAll(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	components := make([]component, len(m.components))
	copy(components, m.components)
	m.mu.Unlock()

	var result error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		started := time.Now()
		if err := c.stop(ctx); err != nil {
			m.logger.Error("component shutdown failed", zap.String("component", c.name), zap.Error(err))
			result = errors.Join(result, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		m.logger.Info("component stopped",
			zap.String("component", c.name),
			zap.Duration("elapsed", time.Since(started)))
	}
	return result
}

// Listen cancels the application context on SIGINT or SIGTERM. The returned
// function stops listening.
func (m *Manager) Listen(cancel context.CancelFunc) func() {
	if cancel == nil {
		return func() {}
	}
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
			cancel()
		case <-done:
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
