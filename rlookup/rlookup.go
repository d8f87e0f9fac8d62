// Copyright (c) 2020 The Bluge Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rlookup is the per-query schema directory: it maps textual
// field names to opaque Key handles, and backs the sparse per-result Row
// those keys index into.
package rlookup

import "context"

// Key identifies a field by name (a Row stores values by key name) and
// its creation position in the Lookup, and records whether the field
// has a precomputed sort-vector slot.
type Key struct {
	name        string
	pos         int
	hasSortable bool
}

// Name returns the field name this key was created for.
func (k *Key) Name() string { return k.name }

// HasSortable reports whether this field has a precomputed slot in the
// document's sort vector (as opposed to requiring a load-at-query-time
// fetch).
func (k *Key) HasSortable() bool { return k.hasSortable }

// Lookup is the per-query schema directory. Keys are created during query
// planning and live for the query's duration.
type Lookup struct {
	keys []*Key
	pos  map[string]*Key
}

// New builds an empty Lookup.
func New() *Lookup {
	return &Lookup{pos: map[string]*Key{}}
}

// GetKey returns the existing key for name, creating one if necessary.
// hasSortable should be true if the field has a precomputed sort-vector
// slot.
func (l *Lookup) GetKey(name string, hasSortable bool) *Key {
	if k, ok := l.pos[name]; ok {
		return k
	}
	k := &Key{name: name, pos: len(l.keys), hasSortable: hasSortable}
	l.keys = append(l.keys, k)
	l.pos[name] = k
	return k
}

// FindKey returns the key for name without creating one.
func (l *Lookup) FindKey(name string) (*Key, bool) {
	k, ok := l.pos[name]
	return k, ok
}

// Row is the per-result sparse mapping from key to value: a pointer to
// the document's precomputed sort vector (aliased, never owned — it is
// released with the dmd, not the row) plus a dynamic overlay for
// fields loaded at query time.
type Row struct {
	sv      SortVectorView
	overlay map[string]interface{}
}

// SortVectorView is the narrow read interface onto a document's
// precomputed sort vector; it decouples rlookup from the index package's
// concrete DocMetadata/SortVector types.
type SortVectorView interface {
	Get(key string) (interface{}, bool)
}

// NewRow builds an empty Row.
func NewRow() Row {
	return Row{}
}

// SetSortVector installs sv as the row's aliased view onto a document's
// precomputed sort-vector slots. It must not be freed by the row.
func (r *Row) SetSortVector(sv SortVectorView) {
	r.sv = sv
}

// WriteKey installs value for key in the dynamic overlay, used by the
// metrics loader and field loader to merge values the sort vector does
// not already carry.
func (r *Row) WriteKey(k *Key, value interface{}) {
	if r.overlay == nil {
		r.overlay = map[string]interface{}{}
	}
	r.overlay[k.name] = value
}

// Get resolves a key's value: the dynamic overlay takes precedence (it
// holds values loaded or computed at query time), falling back to the
// precomputed sort vector.
func (r *Row) Get(k *Key) (interface{}, bool) {
	if r.overlay != nil {
		if v, ok := r.overlay[k.name]; ok {
			return v, true
		}
	}
	if r.sv != nil {
		return r.sv.Get(k.name)
	}
	return nil, false
}

// HasSortVector reports whether the row has a precomputed sort vector
// aliased at all (as opposed to needing every key loaded, per the
// sorter's load-missing-fields policy, spec.md §4.5 step 5).
func (r *Row) HasSortVector() bool {
	return r.sv != nil
}

// Wipe clears the row's keys and dynamic overlay and drops the
// precomputed-sv pointer; it does not free the sort vector (that is
// released with the dmd).
func (r *Row) Wipe() {
	r.overlay = nil
	r.sv = nil
}

// Cleanup tears down the row's backing storage. For this sparse-map
// implementation that coincides with Wipe, but it is kept distinct from
// Wipe so a future row representation with separately-allocated backing
// storage (e.g. a pooled dense array) has a place to release it.
func (r *Row) Cleanup() {
	r.Wipe()
}

// LoadMode selects which fields the RLookup loader contract (spec.md §6
// item 4) fetches for a row.
type LoadMode int

const (
	// AllKeys loads every field the lookup knows about.
	AllKeys LoadMode = iota
	// KeyList loads exactly the keys named in LoadOptions.Keys.
	KeyList
)

// LoadOptions configures a single Loader.LoadDocument call.
type LoadOptions struct {
	Dmd          interface{} // opaque document handle, index.DocMetadata in practice
	Keys         []*Key
	Mode         LoadMode
	NoSortables  bool
	ForceString  bool
}

// Loader is the §6 item 4 contract: fetch field values from the
// document store (the keyspace, in the embedding server) into row.
type Loader interface {
	LoadDocument(ctx context.Context, lookup *Lookup, row *Row, opts LoadOptions) error
}
