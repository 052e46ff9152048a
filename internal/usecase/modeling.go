package usecase

import (
	"sync"

	"qlmodel/internal/domain"
)

// ModelingStore holds the merged signature-to-model mapping for one
// editing session. Merges are serialized; observers are notified after
// every mutation.
type ModelingStore struct {
	mu        sync.Mutex
	models    map[string]domain.ModeledMethod
	observers map[int]func()
	nextObs   int
}

// NewModelingStore creates an empty store.
func NewModelingStore() *ModelingStore {
	return &ModelingStore{
		models:    make(map[string]domain.ModeledMethod),
		observers: make(map[int]func()),
	}
}

// OnChanged subscribes to store mutations. The returned function removes
// the subscription.
func (s *ModelingStore) OnChanged(fn func()) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Models returns a copy of the current mapping.
func (s *ModelingStore) Models() map[string]domain.ModeledMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.ModeledMethod, len(s.models))
	for k, v := range s.models {
		out[k] = v
	}
	return out
}

// Model returns the model for one signature.
func (s *ModelingStore) Model(signature string) (domain.ModeledMethod, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[signature]
	return m, ok
}

// SetModel records an explicit user edit for one signature.
func (s *ModelingStore) SetModel(signature string, m domain.ModeledMethod) {
	s.mu.Lock()
	s.models[signature] = m
	s.mu.Unlock()
	s.notify()
}

// ApplyFresh installs freshly generated candidates as the new base and
// overlays the session's existing non-"none" entries on top, so user work
// is never discarded by re-running analysis.
func (s *ModelingStore) ApplyFresh(candidates map[string]domain.ModeledMethod) {
	s.mu.Lock()
	s.models = mergeModeledMethods(candidates, s.models)
	s.mu.Unlock()
	s.notify()
}

// ApplyExisting overlays previously persisted entries on the current
// mapping; non-"none" incoming entries win over what is held locally.
func (s *ModelingStore) ApplyExisting(loaded map[string]domain.ModeledMethod) {
	s.mu.Lock()
	s.models = mergeModeledMethods(s.models, loaded)
	s.mu.Unlock()
	s.notify()
}

func (s *ModelingStore) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// mergeModeledMethods overlays one mapping on another. Only overlay
// entries that actually model something (type other than "none") apply;
// none-typed overlay entries are ignored, so they neither clobber a
// modeled base entry nor resurrect signatures the base no longer has.
func mergeModeledMethods(base, overlay map[string]domain.ModeledMethod) map[string]domain.ModeledMethod {
	out := make(map[string]domain.ModeledMethod, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		if v.Type != domain.ModelNone {
			out[k] = v
		}
	}
	return out
}

// FreshCandidates builds the default candidate mapping for a usage list:
// one "none" entry per signature, marked as generated.
func FreshCandidates(usages []domain.ExternalAPIUsage) map[string]domain.ModeledMethod {
	out := make(map[string]domain.ModeledMethod, len(usages))
	for _, u := range usages {
		out[u.Signature] = domain.ModeledMethod{
			Type:       domain.ModelNone,
			Provenance: "generated",
		}
	}
	return out
}
