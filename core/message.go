package core

import "sort"

// Message is the unit of exchange between nodes: a field-name to value
// mapping with no meaningful field ordering. Values are opaque to the kernel.
type Message map[string]any

// Clone returns a shallow copy of the message. Values are not deep-copied;
// nodes that mutate shared values must coordinate themselves.
func (m Message) Clone() Message {
	clone := make(Message, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

// Merge copies all fields of other into m, overwriting existing fields.
func (m Message) Merge(other Message) {
	for k, v := range other {
		m[k] = v
	}
}

// Project returns a new message containing only the fields named in keys.
// Fields absent from m are silently skipped; use MissingKeys to enforce the
// contract first. A nil KeySet means "no contract" and yields a full clone.
func (m Message) Project(keys KeySet) Message {
	if keys == nil {
		return m.Clone()
	}
	out := make(Message, len(keys))
	for name := range keys {
		if v, ok := m[name]; ok {
			out[name] = v
		}
	}
	return out
}

// MissingKeys returns the sorted key names required by keys but absent from m.
func (m Message) MissingKeys(keys KeySet) []string {
	var missing []string
	for name := range keys {
		if _, ok := m[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// KeySet maps field names to human-readable descriptions. It serves both as
// an edge transport contract and as an attribute projection specification;
// only the name set is operationally significant.
type KeySet map[string]string

// Names returns the sorted field names of the key set.
func (k KeySet) Names() []string {
	names := make([]string, 0, len(k))
	for name := range k {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Union returns a new KeySet containing the entries of k and other. On
// duplicate names the description from other wins.
func (k KeySet) Union(other KeySet) KeySet {
	out := make(KeySet, len(k)+len(other))
	for name, desc := range k {
		out[name] = desc
	}
	for name, desc := range other {
		out[name] = desc
	}
	return out
}
