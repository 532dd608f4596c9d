package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"channel-scout/internal/config"
	"channel-scout/internal/logging"
	"channel-scout/internal/logging/types"
	"channel-scout/pkg/models"
	"channel-scout/pkg/utils"
)

// Manager owns the configured provider and serves the pipeline's expansion and
// classification calls
type Manager struct {
	config   *config.Config
	factory  *LLMFactory
	provider LLMProvider
	logger   types.Logger
	mu       sync.RWMutex
	healthy  bool
}

// NewManager creates a new LLM manager instance
func NewManager(cfg *config.Config, logger types.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithField("component", "llm_manager")
	return &Manager{
		config:  cfg,
		factory: NewLLMFactory(cfg, logger),
		logger:  logger,
	}
}

// NewManagerWithProvider wraps an existing provider, marking it healthy
func NewManagerWithProvider(cfg *config.Config, provider LLMProvider, logger types.Logger) *Manager {
	m := NewManager(cfg, logger)
	m.provider = provider
	m.healthy = true
	return m
}

// Start creates the provider and checks it. A failed check is logged and the
// manager still starts; calls are then refused until CheckHealth succeeds.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("starting LLM manager", map[string]interface{}{"provider": m.config.LLM.Provider})

	provider, err := m.factory.CreateProvider()
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}
	m.provider = provider

	timeout := m.config.LLM.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := m.provider.IsHealthy(ctx); err != nil {
		m.logger.WithError(err).Warn("LLM provider health check failed, expansion and classification will fail")
		m.healthy = false
	} else {
		m.healthy = true
		m.logger.Info("LLM manager started", map[string]interface{}{"provider": m.provider.GetProviderName()})
	}
	return nil
}

// Stop shuts down the LLM manager
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("stopping LLM manager")
	m.provider = nil
	m.healthy = false
	return nil
}

func (m *Manager) current() (LLMProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.provider == nil {
		return nil, fmt.Errorf("LLM manager not started or provider not available")
	}
	if !m.healthy {
		return nil, fmt.Errorf("LLM provider is not available - check API key configuration (set LLM_API_KEY environment variable)")
	}
	return m.provider, nil
}

// ExpandQuery returns related search phrases for query
func (m *Manager) ExpandQuery(ctx context.Context, query string) ([]string, error) {
	provider, err := m.current()
	if err != nil {
		return nil, err
	}
	return provider.ExpandQuery(ctx, query)
}

// Classify judges one channel. Failures come back as ClassificationFailure.
func (m *Manager) Classify(ctx context.Context, description, channelText string) (models.Classification, error) {
	provider, err := m.current()
	if err != nil {
		return models.Classification{}, utils.NewClassificationFailure("classify", err)
	}
	verdict, err := provider.Classify(ctx, description, channelText)
	if err != nil && !utils.IsKind(err, utils.KindClassification) {
		err = utils.NewClassificationFailure("classify", err)
	}
	return verdict, err
}

// IsHealthy checks if the LLM manager and provider are healthy
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy && m.provider != nil
}

// GetProviderName returns the name of the current LLM provider
func (m *Manager) GetProviderName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.provider != nil {
		return m.provider.GetProviderName()
	}
	return "none"
}

// CheckHealth performs a health check on the LLM provider
func (m *Manager) CheckHealth(ctx context.Context) error {
	m.mu.RLock()
	provider := m.provider
	m.mu.RUnlock()

	if provider == nil {
		return fmt.Errorf("LLM provider not available")
	}

	err := provider.IsHealthy(ctx)

	m.mu.Lock()
	m.healthy = (err == nil)
	m.mu.Unlock()

	return err
}
