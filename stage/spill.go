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

package stage

import (
	"encoding/binary"
	"math"
	"os"

	mmap "github.com/blevesearch/mmap-go"

	qp "github.com/blugelabs/queryproc"
	"github.com/blugelabs/queryproc/result"
)

// spillRecordSize is docID (uint64) + score (float64), the only two
// fields a spilled result keeps.
const spillRecordSize = 16

// spillGrowBy is how many records' worth of space a growth step maps.
const spillGrowBy = 4096

// spillFile backs the overflow portion of a buffer-and-lock stage's
// buffer once it crosses SpillThreshold: rather than holding every
// remaining *result.SearchResult (with its Dmd/IndexResult/Row) in
// memory, only the (docId, score) pair survives, written into an
// mmap-backed scratch file. On yield, a spilled record's document
// metadata is re-borrowed fresh from the doc table by docId; its
// IndexResult and loaded row fields are not recoverable — this is an
// explicit, documented degradation traded for bounded memory on very
// large result sets, not a silent one.
type spillFile struct {
	f       *os.File
	mapping mmap.MMap
	count   int
	mapped  int // records currently mapped
}

type spillRecord struct {
	docID uint64
	score float64
}

func newSpillFile() (*spillFile, error) {
	f, err := os.CreateTemp("", "queryproc-spill-*")
	if err != nil {
		return nil, err
	}
	// remove immediately: the fd keeps the storage alive for as long
	// as this process needs it, and nothing else should ever see the
	// file name.
	_ = os.Remove(f.Name())
	return &spillFile{f: f}, nil
}

func (s *spillFile) ensureCapacity(records int) error {
	if records <= s.mapped {
		return nil
	}
	if s.mapping != nil {
		if err := s.mapping.Unmap(); err != nil {
			return err
		}
	}
	newMapped := s.mapped + spillGrowBy
	for newMapped < records {
		newMapped += spillGrowBy
	}
	if err := s.f.Truncate(int64(newMapped) * spillRecordSize); err != nil {
		return err
	}
	m, err := mmap.Map(s.f, mmap.RDWR, 0)
	if err != nil {
		return err
	}
	s.mapping = m
	s.mapped = newMapped
	return nil
}

func (s *spillFile) append(rec spillRecord) error {
	if err := s.ensureCapacity(s.count + 1); err != nil {
		return err
	}
	off := s.count * spillRecordSize
	binary.LittleEndian.PutUint64(s.mapping[off:], rec.docID)
	binary.LittleEndian.PutUint64(s.mapping[off+8:], math.Float64bits(rec.score))
	s.count++
	return nil
}

func (s *spillFile) read(i int) spillRecord {
	off := i * spillRecordSize
	docID := binary.LittleEndian.Uint64(s.mapping[off:])
	score := math.Float64frombits(binary.LittleEndian.Uint64(s.mapping[off+8:]))
	return spillRecord{docID: docID, score: score}
}

func (s *spillFile) close() {
	if s.mapping != nil {
		_ = s.mapping.Unmap()
	}
	_ = s.f.Close()
}

// admitSpill writes res's (docId, score) into the spill file and
// releases everything else: IndexResult is already transient, the Row's
// dynamic overlay is dropped, and Dmd is released immediately (it will
// be re-borrowed on yield).
func (b *BufferLock) admitSpill(res *result.SearchResult, qctx *qp.Context) {
	if b.spill == nil {
		sf, err := newSpillFile()
		if err != nil {
			qctx.Logger.Printf("queryproc: spill file unavailable, falling back to resident buffer: %v", err)
			b.cfg.SpillThreshold = 0
			b.admit(res, qctx)
			return
		}
		b.spill = sf
	}
	if err := b.spill.append(spillRecord{docID: res.DocID, score: res.Score}); err != nil {
		qctx.Logger.Printf("queryproc: spill write failed, dropping result %d: %v", res.DocID, err)
	}
	if res.Dmd != nil && b.cfg.Docs != nil {
		b.cfg.Docs.Release(res.Dmd)
	}
	b.total++
}
