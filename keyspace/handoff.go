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

package keyspace

import "sync"

// Handoff tracks one query's GIL acquisition across the buffer-and-lock
// stage (which acquires it) and the unlocker stage (which, on the happy
// path, releases it). It is shared by both stages so the "released
// exactly once, and only if acquired" invariant (spec.md §4.10) holds
// regardless of which path a query takes: a normal EOF release, or a
// disposal-time release on a query that aborted before ever reaching
// the yield phase.
type Handoff struct {
	gil      GIL
	once     sync.Once
	acquired bool
}

// NewHandoff builds a Handoff around gil.
func NewHandoff(gil GIL) *Handoff {
	return &Handoff{gil: gil}
}

// TryAcquire attempts a non-blocking acquire, recording success.
func (h *Handoff) TryAcquire() LockResult {
	r := h.gil.TryLock()
	if r == LockAcquired {
		h.acquired = true
	}
	return r
}

// BlockingAcquire acquires the GIL, blocking until it can.
func (h *Handoff) BlockingAcquire() {
	h.gil.Lock()
	h.acquired = true
}

// Release unlocks the GIL if, and only if, this Handoff ever acquired
// it, and does so at most once.
func (h *Handoff) Release() {
	h.once.Do(func() {
		if h.acquired {
			h.gil.Unlock()
		}
	})
}
