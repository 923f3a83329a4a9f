package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"github.com/xeleb-ai/xeleb/pkg/metrics"
	"github.com/xeleb-ai/xeleb/pkg/persona"
	"github.com/xeleb-ai/xeleb/pkg/profile"
)

// ProfileFinder loads agent profiles by name. profile.Store implements it.
type ProfileFinder interface {
	FindOne(ctx context.Context, field profile.Field, value string) (*profile.Profile, error)
}

// ManagerConfig holds what every managed agent shares.
type ManagerConfig struct {
	Model     model.ToolCallingChatModel
	Retriever Retriever
	Profiles  ProfileFinder

	// DefaultName is the agent used when a request names none. It is
	// built with the default prompt when it has no stored profile.
	DefaultName string
	MaxSteps    int

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Manager builds agents from stored profiles on first use and keeps them by
// name. It is safe for concurrent use.
type Manager struct {
	cfg ManagerConfig

	mu      sync.RWMutex
	agents  map[string]*Agent
	current string
}

// NewManager creates a Manager with no agents loaded.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		cfg:     cfg,
		agents:  map[string]*Agent{},
		current: cfg.DefaultName,
	}
}

// Initialize loads the agent called name, makes it current and reports
// whether it was newly built.
func (m *Manager) Initialize(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, fmt.Errorf("%w: empty name", ErrUnknownAgent)
	}

	if _, ok := m.lookup(name); ok {
		m.SetCurrent(name)
		return false, nil
	}

	a, isNew, err := m.build(ctx, name)
	if err != nil {
		return false, err
	}
	m.SetCurrent(a.Name())
	return isNew, nil
}

// Get returns the agent called name, building it when needed. An empty name
// selects the default agent.
func (m *Manager) Get(ctx context.Context, name string) (*Agent, error) {
	if name == "" {
		name = m.cfg.DefaultName
	}
	if a, ok := m.lookup(name); ok {
		return a, nil
	}
	a, _, err := m.build(ctx, name)
	return a, err
}

// Names lists the loaded agents in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.agents))
	for name := range m.agents {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultName returns the agent used when a request names none.
func (m *Manager) DefaultName() string {
	return m.cfg.DefaultName
}

// Current returns the name of the agent last initialized. It is reported by
// /list_agents and never used to route requests.
func (m *Manager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SetCurrent changes the current agent.
func (m *Manager) SetCurrent(name string) {
	m.mu.Lock()
	m.current = name
	m.mu.Unlock()
}

func (m *Manager) lookup(name string) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[name]
	return a, ok
}

func (m *Manager) build(ctx context.Context, name string) (*Agent, bool, error) {
	var p *profile.Profile
	if m.cfg.Profiles != nil {
		found, err := m.cfg.Profiles.FindOne(ctx, profile.FieldAgentName, name)
		switch {
		case err == nil:
			p = found
		case errors.Is(err, profile.ErrNotFound):
		default:
			return nil, false, fmt.Errorf("loading profile for %s: %w", name, err)
		}
	}
	if p == nil && name != m.cfg.DefaultName {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}

	a, err := New(ctx, Config{
		Name:         name,
		SystemPrompt: persona.SystemPrompt(p),
		MaxSteps:     m.cfg.MaxSteps,
		Model:        m.cfg.Model,
		Retriever:    m.cfg.Retriever,
		Metrics:      m.cfg.Metrics,
		Logger:       m.cfg.Logger,
	})
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have built the same agent meanwhile.
	if existing, ok := m.agents[name]; ok {
		return existing, false, nil
	}
	m.agents[name] = a
	m.cfg.Logger.Info("agent initialized", "agent", name, "profile", p != nil)
	return a, true, nil
}
