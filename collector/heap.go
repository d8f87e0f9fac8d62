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

// Package collector holds the top-K sorter: a min-max heap (this file)
// plus the accumulate/yield state machine (sorter.go) built on top of
// it. It mirrors the original C implementation's util/minmax_heap.h,
// adapted to an idiomatic, generic Go container rather than a heap of
// owning raw pointers (§9 design note: "Heap of owning raw pointers" ->
// "a heap of owned result values; the heap's disposal drops all
// remaining contents").
package collector

// Compare orders two items; negative means a ranks below b, zero means
// equal, positive means a ranks above b. The heap's "min" end holds the
// lowest-ranked item, its "max" end the highest-ranked.
type Compare[T any] func(a, b T) int

// MinMaxHeap supports peek/pop at both the min and the max end in
// O(log n), which is exactly what top-K admission needs: evict the
// current worst (min) candidate on overflow, then finally drain from
// the best (max) end in ranked order. Levels of the implicit binary
// tree alternate: the root (level 0) and every even level hold a "min
// level" invariant (no smaller descendant anywhere below), odd levels
// hold a "max level" invariant.
type MinMaxHeap[T any] struct {
	items []T
	cmp   Compare[T]
}

// NewMinMaxHeap builds an empty heap using cmp to order items, with
// capacity preallocated for size elements.
func NewMinMaxHeap[T any](cmp Compare[T], size int) *MinMaxHeap[T] {
	return &MinMaxHeap[T]{items: make([]T, 0, size), cmp: cmp}
}

// Len returns the number of items currently in the heap.
func (h *MinMaxHeap[T]) Len() int { return len(h.items) }

func (h *MinMaxHeap[T]) lt(a, b T) bool { return h.cmp(a, b) < 0 }
func (h *MinMaxHeap[T]) gt(a, b T) bool { return h.cmp(a, b) > 0 }

func (h *MinMaxHeap[T]) swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

// Push inserts item, restoring the min-max heap property.
func (h *MinMaxHeap[T]) Push(item T) {
	h.items = append(h.items, item)
	h.trickleUp(len(h.items) - 1)
}

// PeekMin returns the lowest-ranked item without removing it. Panics if
// empty; callers must check Len first.
func (h *MinMaxHeap[T]) PeekMin() T { return h.items[0] }

// PopMin removes and returns the lowest-ranked item (always the root).
func (h *MinMaxHeap[T]) PopMin() T { return h.removeAt(0) }

// PopMax removes and returns the highest-ranked item: the larger of the
// root's two children (level 1, a max level), the root's only child for
// a heap of size 2, or the root itself for a heap of size 1.
func (h *MinMaxHeap[T]) PopMax() T { return h.removeAt(h.maxIndex()) }

func (h *MinMaxHeap[T]) maxIndex() int {
	switch len(h.items) {
	case 1:
		return 0
	case 2:
		return 1
	default:
		if h.gt(h.items[2], h.items[1]) {
			return 2
		}
		return 1
	}
}

// removeAt deletes the item at index i, moves the last item into its
// place, and restores the heap property from there.
func (h *MinMaxHeap[T]) removeAt(i int) T {
	removed := h.items[i]
	last := len(h.items) - 1
	if i != last {
		h.items[i] = h.items[last]
	}
	var zero T
	h.items[last] = zero
	h.items = h.items[:last]
	if i < len(h.items) {
		h.trickleDown(i)
	}
	return removed
}

// isMinLevel reports whether index i sits on an even (min) level of the
// implicit binary tree.
func isMinLevel(i int) bool {
	level := 0
	for i > 0 {
		i = (i - 1) / 2
		level++
	}
	return level%2 == 0
}

// trickleUp restores the heap property after appending a new item at
// index i, following Atkinson et al.'s push-up algorithm: the first
// comparison is against the immediate parent regardless of level, and
// only a swap there continues the walk up through grandparents on the
// opposite level family.
func (h *MinMaxHeap[T]) trickleUp(i int) {
	if i == 0 {
		return
	}
	parent := (i - 1) / 2
	if isMinLevel(i) {
		if h.gt(h.items[i], h.items[parent]) {
			h.swap(i, parent)
			h.trickleUpMax(parent)
		} else {
			h.trickleUpMin(i)
		}
	} else {
		if h.lt(h.items[i], h.items[parent]) {
			h.swap(i, parent)
			h.trickleUpMin(parent)
		} else {
			h.trickleUpMax(i)
		}
	}
}

func (h *MinMaxHeap[T]) trickleUpMin(i int) {
	for {
		parent := (i - 1) / 2
		if parent == 0 {
			return
		}
		gp := (parent - 1) / 2
		if h.lt(h.items[i], h.items[gp]) {
			h.swap(i, gp)
			i = gp
		} else {
			return
		}
	}
}

func (h *MinMaxHeap[T]) trickleUpMax(i int) {
	for {
		parent := (i - 1) / 2
		if parent == 0 {
			return
		}
		gp := (parent - 1) / 2
		if h.gt(h.items[i], h.items[gp]) {
			h.swap(i, gp)
			i = gp
		} else {
			return
		}
	}
}

func (h *MinMaxHeap[T]) trickleDown(i int) {
	if isMinLevel(i) {
		h.trickleDownMin(i)
	} else {
		h.trickleDownMax(i)
	}
}

func (h *MinMaxHeap[T]) trickleDownMin(i int) {
	for {
		m, isGrandchild := h.smallestDescendant(i)
		if m < 0 {
			return
		}
		if !h.lt(h.items[m], h.items[i]) {
			return
		}
		h.swap(m, i)
		if isGrandchild {
			parent := (m - 1) / 2
			if h.gt(h.items[m], h.items[parent]) {
				h.swap(m, parent)
			}
			i = m
			continue
		}
		return
	}
}

func (h *MinMaxHeap[T]) trickleDownMax(i int) {
	for {
		m, isGrandchild := h.largestDescendant(i)
		if m < 0 {
			return
		}
		if !h.gt(h.items[m], h.items[i]) {
			return
		}
		h.swap(m, i)
		if isGrandchild {
			parent := (m - 1) / 2
			if h.lt(h.items[m], h.items[parent]) {
				h.swap(m, parent)
			}
			i = m
			continue
		}
		return
	}
}

// smallestDescendant returns the index, among i's children and
// grandchildren, holding the smallest item, and whether that index is a
// grandchild (as opposed to a direct child) — trickleDownMin needs to
// know which, since only a grandchild demotion can violate the
// intervening parent's own min-level invariant.
func (h *MinMaxHeap[T]) smallestDescendant(i int) (idx int, isGrandchild bool) {
	n := len(h.items)
	idx = -1
	consider := func(j int, grandchild bool) {
		if j >= n {
			return
		}
		if idx == -1 || h.lt(h.items[j], h.items[idx]) {
			idx = j
			isGrandchild = grandchild
		}
	}
	consider(2*i+1, false)
	consider(2*i+2, false)
	for g := 4*i + 3; g <= 4*i+6; g++ {
		consider(g, true)
	}
	return idx, isGrandchild
}

// largestDescendant is smallestDescendant's max-level mirror.
func (h *MinMaxHeap[T]) largestDescendant(i int) (idx int, isGrandchild bool) {
	n := len(h.items)
	idx = -1
	consider := func(j int, grandchild bool) {
		if j >= n {
			return
		}
		if idx == -1 || h.gt(h.items[j], h.items[idx]) {
			idx = j
			isGrandchild = grandchild
		}
	}
	consider(2*i+1, false)
	consider(2*i+2, false)
	for g := 4*i + 3; g <= 4*i+6; g++ {
		consider(g, true)
	}
	return idx, isGrandchild
}
