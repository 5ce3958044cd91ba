package config

import "sync"

// Runtime is the set of per-instance toggles that may change without restart.
type Runtime struct {
	// MetricsEnabled gates aggregate metric recording. When false, readers
	// receive nil readouts - "never measured", not "measured and idle".
	MetricsEnabled bool

	// KeyMetricsEnabled gates per-key metric recording, independently of
	// MetricsEnabled. Either may be on while the other is off.
	KeyMetricsEnabled bool

	// TenantAware, UserAware, and LocaleAware control whether key derivation
	// folds the corresponding ambient dimension into request-based keys.
	TenantAware bool
	UserAware   bool
	LocaleAware bool
}

// DefaultRuntime returns the default toggle set: metrics on, key metrics
// off, all awareness dimensions off.
func DefaultRuntime() Runtime {
	return Runtime{MetricsEnabled: true}
}

// Loader supplies a Runtime from an external source (config file, flags,
// an annotation scanner front-end). Manager.Reload re-reads it.
type Loader func() Runtime

// Manager owns the live Runtime for one cache instance.
//
// Contract:
// - Concurrency: safe for concurrent use; Current is a cheap read.
// - Liveness: dependents must call Current per operation, never cache it.
type Manager struct {
	mu      sync.RWMutex
	current Runtime
	loader  Loader
}

// NewManager creates a Manager seeded with the given Runtime.
func NewManager(initial Runtime) *Manager {
	return &Manager{current: initial}
}

// NewManagerWithLoader creates a Manager that re-reads from loader on Reload.
func NewManagerWithLoader(loader Loader) *Manager {
	m := &Manager{loader: loader}
	if loader != nil {
		m.current = loader()
	}
	return m
}

// Current returns the live Runtime value.
func (m *Manager) Current() Runtime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reload re-applies the loader, if any. Setters take effect immediately;
// Reload exists for front-ends that stage changes in an external source.
func (m *Manager) Reload() {
	if m.loader == nil {
		return
	}
	next := m.loader()
	m.mu.Lock()
	m.current = next
	m.mu.Unlock()
}

// SetMetricsEnabled toggles aggregate metric recording.
func (m *Manager) SetMetricsEnabled(enabled bool) {
	m.mu.Lock()
	m.current.MetricsEnabled = enabled
	m.mu.Unlock()
}

// SetKeyMetricsEnabled toggles per-key metric recording.
func (m *Manager) SetKeyMetricsEnabled(enabled bool) {
	m.mu.Lock()
	m.current.KeyMetricsEnabled = enabled
	m.mu.Unlock()
}

// SetTenantAware toggles tenant folding in request key derivation.
func (m *Manager) SetTenantAware(enabled bool) {
	m.mu.Lock()
	m.current.TenantAware = enabled
	m.mu.Unlock()
}

// SetUserAware toggles user folding in request key derivation.
func (m *Manager) SetUserAware(enabled bool) {
	m.mu.Lock()
	m.current.UserAware = enabled
	m.mu.Unlock()
}

// SetLocaleAware toggles locale folding in request key derivation.
func (m *Manager) SetLocaleAware(enabled bool) {
	m.mu.Lock()
	m.current.LocaleAware = enabled
	m.mu.Unlock()
}
