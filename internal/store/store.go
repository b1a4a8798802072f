// Package store keeps the active set of creator funnels. The store runs in
// one of two modes: demo, serving built-in sample funnels, and real, serving
// funnels built from uploaded data. Real funnels survive restarts through a
// pluggable persistence backend.
package store

import (
	"fmt"
	"sync"

	"funneldash/internal/funnel"
	"funneldash/internal/logging"
)

// Store modes.
const (
	ModeDemo = "demo"
	ModeReal = "real"
)

// Persistence is the backend contract for durable funnel storage.
type Persistence interface {
	// Load returns all persisted funnels, or an empty slice when none exist.
	Load() ([]funnel.CreatorFunnel, error)
	// Save replaces the persisted set with the given funnels.
	Save(funnels []funnel.CreatorFunnel) error
	// Clear removes all persisted funnels.
	Clear() error
	// Close releases backend resources.
	Close() error
}

// FunnelStore is the single source of truth for funnel data. All methods
// are safe for concurrent use; a single mutex serializes every read and
// write so merges can never interleave with reads.
type FunnelStore struct {
	mu                sync.Mutex
	persistence       Persistence
	funnels           []funnel.CreatorFunnel
	mode              string
	selectedCreatorID string
}

// New builds a store over the given persistence backend and loads any
// previously persisted funnels. Non-empty persisted data puts the store
// straight into real mode.
func New(p Persistence) (*FunnelStore, error) {
	s := &FunnelStore{persistence: p, mode: ModeDemo}
	persisted, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("loading persisted funnels: %w", err)
	}
	if len(persisted) > 0 {
		s.funnels = persisted
		s.mode = ModeReal
		logging.Logf(logging.Info, "Loaded %d persisted funnel(s)", len(persisted))
	}
	return s, nil
}

// Merge upserts the given funnels into the real set, keyed by creator ID.
// An existing creator's record is replaced whole, never summed, so
// re-ingesting the same files is idempotent. A non-empty merge persists the
// result and switches the store to real mode; an empty merge is a no-op.
func (s *FunnelStore) Merge(incoming []funnel.CreatorFunnel) error {
	if len(incoming) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]funnel.CreatorFunnel, len(s.funnels))
	copy(merged, s.funnels)
	for _, in := range incoming {
		replaced := false
		for i := range merged {
			if merged[i].CreatorID == in.CreatorID {
				merged[i] = in
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, in)
		}
	}

	if err := s.persistence.Save(merged); err != nil {
		return fmt.Errorf("persisting merged funnels: %w", err)
	}
	s.funnels = merged
	s.mode = ModeReal
	logging.Logf(logging.Info, "Merged %d funnel(s), store now holds %d", len(incoming), len(merged))
	return nil
}

// Active returns the funnels the API should serve: the real set when real
// data exists and the store is in real mode, the demo set otherwise. The
// returned slice is a copy.
func (s *FunnelStore) Active() []funnel.CreatorFunnel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeReal && len(s.funnels) > 0 {
		out := make([]funnel.CreatorFunnel, len(s.funnels))
		copy(out, s.funnels)
		return out
	}
	return DemoFunnels()
}

// HasReal reports whether any real funnels exist, regardless of mode.
func (s *FunnelStore) HasReal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.funnels) > 0
}

// Mode returns the current store mode.
func (s *FunnelStore) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches between demo and real. Switching to real without real
// data is rejected.
func (s *FunnelStore) SetMode(mode string) error {
	if mode != ModeDemo && mode != ModeReal {
		return fmt.Errorf("unknown mode '%s'", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == ModeReal && len(s.funnels) == 0 {
		return fmt.Errorf("no real funnels available")
	}
	s.mode = mode
	return nil
}

// SelectedCreator returns the currently selected creator ID, or "" when no
// selection has been made.
func (s *FunnelStore) SelectedCreator() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedCreatorID
}

// SelectCreator records the creator the dashboard is focused on.
func (s *FunnelStore) SelectCreator(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedCreatorID = id
}

// Primary returns the funnel for the selected creator, falling back to the
// first active funnel. The second return is false when no funnels exist.
func (s *FunnelStore) Primary() (funnel.CreatorFunnel, bool) {
	active := s.Active()
	if len(active) == 0 {
		return funnel.CreatorFunnel{}, false
	}
	s.mu.Lock()
	selected := s.selectedCreatorID
	s.mu.Unlock()
	if selected != "" {
		for _, f := range active {
			if f.CreatorID == selected {
				return f, true
			}
		}
	}
	return active[0], true
}

// ByCreator returns the active funnel for one creator.
func (s *FunnelStore) ByCreator(id string) (funnel.CreatorFunnel, bool) {
	for _, f := range s.Active() {
		if f.CreatorID == id {
			return f, true
		}
	}
	return funnel.CreatorFunnel{}, false
}

// Reset drops all real funnels, clears persistence, and returns the store
// to demo mode.
func (s *FunnelStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persistence.Clear(); err != nil {
		return fmt.Errorf("clearing persisted funnels: %w", err)
	}
	s.funnels = nil
	s.mode = ModeDemo
	s.selectedCreatorID = ""
	logging.Logf(logging.Info, "Store reset to demo mode")
	return nil
}

// Close releases the persistence backend.
func (s *FunnelStore) Close() error {
	return s.persistence.Close()
}
