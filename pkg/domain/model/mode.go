package model

import "sync/atomic"

// OperationMode is the process-wide degradation state shared by the memory
// manager and the model client. It is set from configuration and connectivity
// probing at startup, and may later flip to degraded when a dependency
// becomes unreachable. Degradation is sticky for the process lifetime.
//
// It is an explicit shared-state object passed to constructors, not a
// package-level singleton, so tests can inject their own instance.
type OperationMode struct {
	fallbackEnabled bool
	storeDegraded   atomic.Bool
	modelDegraded   atomic.Bool
}

// NewOperationMode creates an OperationMode. fallbackEnabled controls whether
// model-service failures produce canned content (true) or surface as
// ErrModelUnavailable (false).
func NewOperationMode(fallbackEnabled bool) *OperationMode {
	return &OperationMode{fallbackEnabled: fallbackEnabled}
}

// FallbackEnabled reports whether canned fallback content is allowed.
func (m *OperationMode) FallbackEnabled() bool {
	return m.fallbackEnabled
}

// DegradeStore marks the vector store as unreachable. It returns true only
// for the call that performed the transition, so the caller can log the
// switch exactly once.
func (m *OperationMode) DegradeStore() bool {
	return m.storeDegraded.CompareAndSwap(false, true)
}

// StoreDegraded reports whether the process has switched to the fallback
// store.
func (m *OperationMode) StoreDegraded() bool {
	return m.storeDegraded.Load()
}

// DegradeModel marks the model service as unreachable. It returns true only
// for the call that performed the transition.
func (m *OperationMode) DegradeModel() bool {
	return m.modelDegraded.CompareAndSwap(false, true)
}

// ModelDegraded reports whether the model service has been marked
// unreachable.
func (m *OperationMode) ModelDegraded() bool {
	return m.modelDegraded.Load()
}
