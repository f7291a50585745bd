package actions

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

// Factory builds one action instance bound to the shared handles.
type Factory func(deps Deps) Action

// Registry maps action names to factories. The process-wide registry is
// immutable after startup; tests build their own via NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[types.ActionName]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[types.ActionName]Factory)}
}

// Register binds a name to a factory. Empty names and duplicates are errors.
func (r *Registry) Register(name types.ActionName, factory Factory) error {
	if name == "" {
		return errors.New("action name cannot be empty")
	}
	if factory == nil {
		return errors.Errorf("action %s has no factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return errors.Errorf("action %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates the named action with the shared handles. Unknown
// names return nil; the executor folds that into a step failure.
func (r *Registry) Create(name types.ActionName, deps Deps) Action {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return factory(deps)
}

// List returns the registered names, sorted.
func (r *Registry) List() []types.ActionName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]types.ActionName, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

var (
	global     *Registry
	globalOnce sync.Once
)

// Global returns the process-wide registry with the full catalog registered.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
		registerCatalog(global)
	})
	return global
}

func registerCatalog(r *Registry) {
	register := func(name types.ActionName, factory Factory) {
		if err := r.Register(name, factory); err != nil {
			panic(err)
		}
	}

	register(types.ActionSemanticSearch, newSemanticSearch)
	register(types.ActionEntitySearch, newEntitySearch)
	register(types.ActionHierarchicalSearch, newHierarchicalSearch)
	register(types.ActionTimeRangeNotes, newTimeRangeNotes)
	register(types.ActionAggregatesQuery, newAggregatesQuery)
	register(types.ActionGraphExpand, newGraphExpand)
	register(types.ActionFindConnections, newFindConnections)
	register(types.ActionGetCoOccurrences, newGetCoOccurrences)
	register(types.ActionGetEntityContext, newGetEntityContext)
	register(types.ActionExtractPatterns, newExtractPatterns)
	register(types.ActionComparePeriods, newComparePeriods)
	register(types.ActionTemporalSequence, newTemporalSequence)
	register(types.ActionMergeResults, newMergeResults)
	register(types.ActionFilterByEdgeType, newFilterByEdgeType)
	register(types.ActionWebSearch, newWebSearch)
}
