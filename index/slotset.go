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

import (
	"hash/crc32"

	"github.com/RoaringBitmap/roaring"
)

// RoaringSlotOracle is a ShardingOracle backed by a compressed bitmap of
// locally-owned slots. Real cluster deployments routinely assign a node a
// non-contiguous set of hash slots (after rebalances, slot migrations,
// etc.); a roaring.Bitmap lets the source stage test membership directly
// instead of forcing every deployment into a single contiguous range.
//
// LocalSlotRange still answers the §6 contract (a contiguous [first,last]
// bound) by reporting the bitmap's min/max, so callers that only need the
// coarse bound keep working; Contains answers the precise question.
type RoaringSlotOracle struct {
	numSlots int
	local    *roaring.Bitmap
}

// NewRoaringSlotOracle builds an oracle with numSlots total hash slots and
// the given locally-owned slots.
func NewRoaringSlotOracle(numSlots int, localSlots []int) *RoaringSlotOracle {
	bm := roaring.New()
	for _, s := range localSlots {
		bm.Add(uint32(s))
	}
	return &RoaringSlotOracle{numSlots: numSlots, local: bm}
}

// KeyToSlot implements ShardingOracle using a CRC32 hash, mirroring the
// kind of stable, cheap hash a real key-to-slot mapping uses.
func (o *RoaringSlotOracle) KeyToSlot(key []byte) int {
	if o.numSlots <= 0 {
		return 0
	}
	return int(crc32.ChecksumIEEE(key)) % o.numSlots
}

// LocalSlotRange implements ShardingOracle by reporting the bitmap's
// bounds. An empty oracle reports an empty, never-matching range.
func (o *RoaringSlotOracle) LocalSlotRange() (first, last int) {
	if o.local.IsEmpty() {
		return 1, 0
	}
	return int(o.local.Minimum()), int(o.local.Maximum())
}

// Contains reports whether slot is one of the locally-owned slots,
// precise even when the local set is not contiguous.
func (o *RoaringSlotOracle) Contains(slot int) bool {
	return o.local.Contains(uint32(slot))
}
