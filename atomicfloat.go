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

package queryproc

import (
	"math"
	"sync/atomic"
)

// atomicFloat is a float64 that can be bumped upward concurrently
// without locking, backing Context.minScore (spec.md §3: "monotonically
// non-decreasing").
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) load() float64 {
	return math.Float64frombits(f.bits.Load())
}

// bumpUp raises the stored value to v if v is greater than the current
// value, retrying under concurrent writers.
func (f *atomicFloat) bumpUp(v float64) {
	for {
		cur := f.bits.Load()
		if v <= math.Float64frombits(cur) {
			return
		}
		if f.bits.CompareAndSwap(cur, math.Float64bits(v)) {
			return
		}
	}
}
