// Copyright (c) 2020 Bluge Labs, LLC.
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

package index

import "sync"

// MemDocTable is a DocTable backed by an in-memory map, used by tests and
// by embedders that keep document metadata resident (e.g. small indexes).
type MemDocTable struct {
	mu   sync.Mutex
	docs map[uint64]*DocMetadata
}

// NewMemDocTable builds an empty MemDocTable.
func NewMemDocTable() *MemDocTable {
	return &MemDocTable{docs: map[uint64]*DocMetadata{}}
}

// Put installs (or replaces) the metadata for docID. Flags and
// SortVector are copied by reference; the refcount starts at zero.
func (t *MemDocTable) Put(docID uint64, dmd *DocMetadata) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.docs[docID] = dmd
}

// Delete marks docID as deleted without removing it, matching the
// tombstone semantics the pipeline expects from a real doc table.
func (t *MemDocTable) Delete(docID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.docs[docID]; ok {
		d.Flags |= DocDeleted
	}
}

// Borrow implements DocTable.
func (t *MemDocTable) Borrow(docID uint64) *DocMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.docs[docID]
	if !ok {
		return nil
	}
	d.refs++
	return d
}

// Release implements DocTable.
func (t *MemDocTable) Release(dmd *DocMetadata) {
	if dmd == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	dmd.refs--
}

// RefCount reports the current borrow count of a document's metadata,
// so a caller can check the dmd lifecycle invariant (spec.md §8,
// property 1).
func (d *DocMetadata) RefCount() int32 {
	if d == nil {
		return 0
	}
	return d.refs
}
