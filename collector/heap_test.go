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

package collector

import (
	"math/rand"
	"sort"
	"testing"
)

func intCompare(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func TestMinMaxHeapPopMinAscending(t *testing.T) {
	h := NewMinMaxHeap(intCompare, 8)
	values := []int{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}
	for _, v := range values {
		h.Push(v)
	}
	if h.Len() != len(values) {
		t.Fatalf("Len() = %d, want %d", h.Len(), len(values))
	}

	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	var popped []int
	for h.Len() > 0 {
		popped = append(popped, h.PopMin())
	}
	for i, v := range popped {
		if v != sorted[i] {
			t.Fatalf("PopMin order[%d] = %d, want %d (full: %v)", i, v, sorted[i], popped)
		}
	}
}

func TestMinMaxHeapPopMaxDescending(t *testing.T) {
	h := NewMinMaxHeap(intCompare, 8)
	values := []int{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}
	for _, v := range values {
		h.Push(v)
	}

	sorted := append([]int(nil), values...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	var popped []int
	for h.Len() > 0 {
		popped = append(popped, h.PopMax())
	}
	for i, v := range popped {
		if v != sorted[i] {
			t.Fatalf("PopMax order[%d] = %d, want %d (full: %v)", i, v, sorted[i], popped)
		}
	}
}

func TestMinMaxHeapRandomizedAgainstSortPackage(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(200)
		values := make([]int, n)
		for i := range values {
			values[i] = rng.Intn(1000)
		}

		h := NewMinMaxHeap(intCompare, n)
		for _, v := range values {
			h.Push(v)
		}
		if h.Len() != n {
			t.Fatalf("trial %d: Len() = %d, want %d", trial, h.Len(), n)
		}

		sorted := append([]int(nil), values...)
		sort.Ints(sorted)

		for i := 0; h.Len() > 0; i++ {
			got := h.PopMin()
			if got != sorted[i] {
				t.Fatalf("trial %d: PopMin[%d] = %d, want %d", trial, i, got, sorted[i])
			}
		}
	}
}

func TestMinMaxHeapPeekMinMatchesPopMin(t *testing.T) {
	h := NewMinMaxHeap(intCompare, 8)
	for _, v := range []int{10, 2, 7, 1, 5} {
		h.Push(v)
	}
	if got := h.PeekMin(); got != 1 {
		t.Fatalf("PeekMin() = %d, want 1", got)
	}
	if got := h.PopMin(); got != 1 {
		t.Fatalf("PopMin() = %d, want 1", got)
	}
}

func TestMinMaxHeapInterleavedPushAndPopMin(t *testing.T) {
	// Mirrors the sorter's admission pattern: push then immediately
	// evict the new minimum, as happens once a bounded heap is full.
	h := NewMinMaxHeap(intCompare, 4)
	for _, v := range []int{3, 1, 4, 1, 5, 9, 2, 6} {
		h.Push(v)
		if h.Len() > 3 {
			h.PopMin()
		}
	}
	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	var remaining []int
	for h.Len() > 0 {
		remaining = append(remaining, h.PopMax())
	}
	sort.Sort(sort.Reverse(sort.IntSlice(remaining)))
	want := []int{9, 6, 5}
	for i, v := range remaining {
		if v != want[i] {
			t.Fatalf("remaining[%d] = %d, want %d (full: %v)", i, v, want[i], remaining)
		}
	}
}
