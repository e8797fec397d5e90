package core

import "sync"

// ProjectionMode selects how attribute keys cross a scope boundary.
type ProjectionMode int

const (
	// ProjectAll copies every key.
	ProjectAll ProjectionMode = iota
	// ProjectNone copies nothing.
	ProjectNone
	// ProjectKeys copies exactly the named keys.
	ProjectKeys
)

// Projection is a pull or push specification: ALL, NONE, or an explicit
// KeySet of names to copy.
type Projection struct {
	Mode ProjectionMode
	Keys KeySet
}

// AllKeys returns the ALL projection.
func AllKeys() Projection { return Projection{Mode: ProjectAll} }

// NoKeys returns the NONE projection.
func NoKeys() Projection { return Projection{Mode: ProjectNone} }

// OnlyKeys returns an explicit projection over the named keys.
func OnlyKeys(keys KeySet) Projection { return Projection{Mode: ProjectKeys, Keys: keys} }

// AttributeScope is a node-local key/value store with an explicit copy-in /
// copy-out relationship to the owning graph's scope. Scopes never alias
// parent storage: each execution performs a Pull (copy-in) pass before the
// forward step and a Push (copy-out) pass after it, so concurrent executions
// cannot silently corrupt one another's view. All methods are safe for
// concurrent use.
type AttributeScope struct {
	mu     sync.RWMutex
	values map[string]any
	parent *AttributeScope
}

// NewAttributeScope creates an empty, parentless scope.
func NewAttributeScope() *AttributeScope {
	return &AttributeScope{values: map[string]any{}}
}

// SetParent attaches the scope to its owning graph's scope. Called by the
// graph container at build time.
func (s *AttributeScope) SetParent(parent *AttributeScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parent = parent
}

// Parent returns the parent scope, or nil for a root scope.
func (s *AttributeScope) Parent() *AttributeScope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parent
}

// Get returns the locally stored value for key. Parent values are only
// visible after a Pull; there is no live chain lookup.
func (s *AttributeScope) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value in the local scope.
func (s *AttributeScope) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Delete removes a key from the local scope.
func (s *AttributeScope) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Len returns the number of locally stored keys.
func (s *AttributeScope) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Snapshot returns a copy of the local store as a Message.
func (s *AttributeScope) Snapshot() Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Message, len(s.values))
	for k, v := range s.values {
		snap[k] = v
	}
	return snap
}

// Pull projects the parent scope into the local store per spec. ALL copies
// everything, NONE copies nothing, an explicit KeySet copies exactly the
// named keys and fails with a MissingKeyError when a required key is absent
// from the parent. A parentless scope pulls nothing.
func (s *AttributeScope) Pull(spec Projection) error {
	parent := s.Parent()
	if parent == nil || spec.Mode == ProjectNone {
		return nil
	}

	src := parent.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch spec.Mode {
	case ProjectAll:
		for k, v := range src {
			s.values[k] = v
		}
	case ProjectKeys:
		if missing := src.MissingKeys(spec.Keys); len(missing) > 0 {
			return &MissingKeyError{Subject: "attribute pull", Keys: missing}
		}
		for name := range spec.Keys {
			s.values[name] = src[name]
		}
	}

	return nil
}

// Push projects the local store back out to the parent scope.
//
// Precedence, by documented convention:
//   - push NONE writes back nothing
//   - an explicit push KeySet always wins and writes back exactly those
//     names, failing with a MissingKeyError when a name is absent locally
//   - push ALL with an explicit non-empty pull spec writes back exactly the
//     pulled names (names removed locally are skipped)
//   - push ALL otherwise writes back only the keys present in both the
//     forward output and the local store
func (s *AttributeScope) Push(pull, push Projection, output Message) error {
	parent := s.Parent()
	if parent == nil || push.Mode == ProjectNone {
		return nil
	}

	local := s.Snapshot()

	switch push.Mode {
	case ProjectKeys:
		if missing := local.MissingKeys(push.Keys); len(missing) > 0 {
			return &MissingKeyError{Subject: "attribute push", Keys: missing}
		}
		for name := range push.Keys {
			parent.Set(name, local[name])
		}
	case ProjectAll:
		if pull.Mode == ProjectKeys && len(pull.Keys) > 0 {
			for name := range pull.Keys {
				if v, ok := local[name]; ok {
					parent.Set(name, v)
				}
			}
			return nil
		}
		if pull.Mode == ProjectNone {
			return nil
		}
		for k, v := range local {
			if _, ok := output[k]; ok {
				parent.Set(k, v)
			}
		}
	}

	return nil
}
