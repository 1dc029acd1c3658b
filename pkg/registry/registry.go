// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry implements the hierarchical type/handler namespace
// used for codec, broker and plugin-handler lookup.
//
// A Registry is identified by its namespace string ('::'-separated,
// also accepting '.', ':', '/', '\'). Descriptors are looked up by a
// type identity (for polymorphic, identity-based dispatch) or by a
// short alias name. The namespace tree's lookup-or-create path uses an
// RLock fast path with a Lock+double-check slow path.
package registry

import (
	"strings"
	"sync"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
)

// TypeID identifies a registered type or handler for identity-based
// lookup, independent of its alias name.
type TypeID string

// Descriptor is {namespace, short-name, type identity, instance}.
type Descriptor struct {
	Namespace string
	Name      string
	ID        TypeID
	Instance  any
}

// Valid reports whether d is non-empty. Lookups that find nothing
// return an empty Descriptor rather than an error.
func (d Descriptor) Valid() bool {
	return d.ID != "" || d.Name != ""
}

// rootNamespace is the reserved namespace for built-in TMX types;
// registering into it directly is rejected.
const rootNamespace = ""

// node is one level of the namespace tree. Segments of a '::'-separated
// namespace each get their own node.
type node struct {
	byID   map[TypeID]Descriptor
	byName map[string]Descriptor
	children map[string]*node
	lock   sync.RWMutex
}

func newNode() *node {
	return &node{byID: map[TypeID]Descriptor{}, byName: map[string]Descriptor{}}
}

// Registry is an explicit, instance-owned namespace tree rather than a
// process-wide singleton: the plugin host owns one Registry and passes
// it to codec/broker constructors.
type Registry struct {
	root *node
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{root: newNode()}
}

// SplitNamespace normalizes a namespace string into its trimmed, non-
// empty segments, accepting '::', '.', ':', '/', '\' as separators.
func SplitNamespace(ns string) ([]string, *tmxerr.Error) {
	fields := strings.FieldsFunc(ns, func(r rune) bool {
		switch r {
		case ':', '.', '/', '\\':
			return true
		}
		return false
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			return nil, tmxerr.New(tmxerr.InvalidArgument, "registry: empty namespace segment")
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *Registry) findOrCreate(segments []string) *node {
	n := r.root
	for _, seg := range segments {
		n = n.childOrCreate(seg)
	}
	return n
}

func (n *node) childOrCreate(seg string) *node {
	n.lock.RLock()
	if n.children != nil {
		if c, ok := n.children[seg]; ok {
			n.lock.RUnlock()
			return c
		}
	}
	n.lock.RUnlock()

	n.lock.Lock()
	defer n.lock.Unlock()
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	if c, ok := n.children[seg]; ok {
		return c
	}
	c := newNode()
	n.children[seg] = c
	return c
}

func (n *node) find(segments []string) (*node, bool) {
	cur := n
	for _, seg := range segments {
		cur.lock.RLock()
		child, ok := cur.children[seg]
		cur.lock.RUnlock()
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

// RegisterType binds instance under both id (identity lookup) and name
// (alias lookup) in the given namespace. Registering into the reserved
// root namespace fails with InvalidArgument.
func (r *Registry) RegisterType(namespace string, id TypeID, name string, instance any) *tmxerr.Error {
	return r.register(namespace, id, name, instance)
}

// RegisterHandler binds a callable the same way RegisterType binds a
// type instance; the two share one namespace tree because type and
// handler descriptors have identical lookup semantics.
func (r *Registry) RegisterHandler(namespace string, id TypeID, name string, handler any) *tmxerr.Error {
	return r.register(namespace, id, name, handler)
}

func (r *Registry) register(namespace string, id TypeID, name string, instance any) *tmxerr.Error {
	segments, err := SplitNamespace(namespace)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return tmxerr.New(tmxerr.InvalidArgument, "registry: cannot register into the reserved root namespace")
	}
	if id == "" && name == "" {
		return tmxerr.New(tmxerr.InvalidArgument, "registry: must supply a type id or a name")
	}
	n := r.findOrCreate(segments)
	desc := Descriptor{Namespace: namespace, Name: name, ID: id, Instance: instance}

	n.lock.Lock()
	defer n.lock.Unlock()
	if id != "" {
		n.byID[id] = desc
	}
	if name != "" {
		n.byName[name] = desc
	}
	return nil
}

// Unregister removes a descriptor by id or by name from namespace.
func (r *Registry) Unregister(namespace string, id TypeID, name string) {
	segments, err := SplitNamespace(namespace)
	if err != nil {
		return
	}
	n, ok := r.root.find(segments)
	if !ok {
		return
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	if id != "" {
		delete(n.byID, id)
	}
	if name != "" {
		delete(n.byName, name)
	}
}

// Get looks up a descriptor by type id within namespace; only the
// identity map is consulted, never the alias map.
func (r *Registry) Get(namespace string, id TypeID) (Descriptor, bool) {
	segments, err := SplitNamespace(namespace)
	if err != nil {
		return Descriptor{}, false
	}
	n, ok := r.root.find(segments)
	if !ok {
		return Descriptor{}, false
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	d, ok := n.byID[id]
	return d, ok
}

// GetByName looks up a descriptor by short alias name within namespace.
func (r *Registry) GetByName(namespace string, name string) (Descriptor, bool) {
	segments, err := SplitNamespace(namespace)
	if err != nil {
		return Descriptor{}, false
	}
	n, ok := r.root.find(segments)
	if !ok {
		return Descriptor{}, false
	}
	n.lock.RLock()
	defer n.lock.RUnlock()
	d, ok := n.byName[name]
	return d, ok
}

// GetAll returns every descriptor at or below namespace, optionally
// filtered to a single type id.
func (r *Registry) GetAll(namespace string, id *TypeID) []Descriptor {
	segments, err := SplitNamespace(namespace)
	if err != nil {
		return nil
	}
	n, ok := r.root.find(segments)
	if !ok {
		return nil
	}
	var out []Descriptor
	n.collect(id, &out)
	return out
}

func (n *node) collect(id *TypeID, out *[]Descriptor) {
	n.lock.RLock()
	seen := make(map[TypeID]bool)
	for descID, d := range n.byID {
		if id != nil && descID != *id {
			continue
		}
		*out = append(*out, d)
		seen[descID] = true
	}
	for _, d := range n.byName {
		if d.ID != "" && seen[d.ID] {
			continue
		}
		if id != nil && (d.ID != *id) {
			continue
		}
		*out = append(*out, d)
	}
	children := make([]*node, 0, len(n.children))
	for _, c := range n.children {
		children = append(children, c)
	}
	n.lock.RUnlock()

	for _, c := range children {
		c.collect(id, out)
	}
}
