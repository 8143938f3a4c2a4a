package contexts

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/bridge"
	"github.com/GriffinCanCode/scriptbridge/internal/logging"
)

var (
	ErrNotFound = errors.New("context not found")
	ErrLimit    = errors.New("context limit reached")
)

// Info is a read-only view of a managed context.
type Info struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Config    bridge.Config  `json:"-"`
	Options   map[string]any `json:"options"`
	Installed []string       `json:"installed,omitempty"`
}

// Manager owns the contexts it creates.
type Manager struct {
	mu       sync.RWMutex
	contexts map[string]*bridge.Context // Protected by mu
	defaults map[string]any
	max      int
	opts     []bridge.Option
	logger   *logging.Logger
}

// NewManager creates a manager. defaults is the option bag applied under
// every Create call; max <= 0 means unlimited. opts are passed to every
// bridge.New call (engine, recorder, natives).
func NewManager(defaults map[string]any, max int, logger *logging.Logger, opts ...bridge.Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := make(map[string]any, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	return &Manager{
		contexts: make(map[string]*bridge.Context),
		defaults: d,
		max:      max,
		opts:     opts,
		logger:   logger,
	}
}

// Create builds a context from raw layered over the defaults.
func (m *Manager) Create(raw map[string]any) (*bridge.Context, error) {
	merged := make(map[string]any, len(m.defaults)+len(raw))
	for k, v := range m.defaults {
		merged[k] = v
	}
	for k, v := range raw {
		merged[k] = v
	}
	cfg, err := bridge.ParseConfig(merged)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.max > 0 && len(m.contexts) >= m.max {
		return nil, fmt.Errorf("%w (%d)", ErrLimit, m.max)
	}

	opts := append([]bridge.Option{bridge.WithLogger(m.logger.Logger)}, m.opts...)
	c, err := bridge.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	m.contexts[c.ID()] = c
	m.logger.ForContext(c.ID()).Debug("context managed", zap.Int("live", len(m.contexts)))
	return c, nil
}

// Get retrieves a context by id.
func (m *Manager) Get(id string) (*bridge.Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Destroy removes a context and releases its engine reference.
func (m *Manager) Destroy(id string) error {
	m.mu.Lock()
	c, ok := m.contexts[id]
	delete(m.contexts, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := c.Destroy(); err != nil {
		return err
	}
	m.logger.ForContext(id).Debug("context released")
	return nil
}

// List returns all contexts, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	live := make([]*bridge.Context, 0, len(m.contexts))
	for _, c := range m.contexts {
		live = append(live, c)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(live))
	for _, c := range live {
		infos = append(infos, describe(c))
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Describe returns the Info of one context.
func (m *Manager) Describe(id string) (Info, error) {
	c, err := m.Get(id)
	if err != nil {
		return Info{}, err
	}
	return describe(c), nil
}

// Len returns the number of live contexts.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.contexts)
}

// CloseAll destroys every context and returns how many were closed.
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	all := m.contexts
	m.contexts = make(map[string]*bridge.Context)
	m.mu.Unlock()

	closed := 0
	for id, c := range all {
		if err := c.Destroy(); err != nil {
			m.logger.ForContext(id).Warn("destroy failed", zap.Error(err))
			continue
		}
		closed++
	}
	if closed > 0 {
		m.logger.Info("contexts closed", zap.Int("count", closed))
	}
	return closed
}

func describe(c *bridge.Context) Info {
	cfg := c.Config()
	return Info{
		ID:        c.ID(),
		CreatedAt: c.CreatedAt(),
		Config:    cfg,
		Options:   cfg.Options(),
		Installed: c.Installed(),
	}
}
