package ertrace

import (
	"sync/atomic"
)

const (
	segmentShift = 12
	segmentSize  = 1 << segmentShift
	segmentMask  = segmentSize - 1
	maxSegments  = 1 << 12

	// maxSlabNodes bounds a growable pool; index 0 is reserved for the sentinel.
	maxSlabNodes = maxSegments*segmentSize - 1
)

type segment [segmentSize]node

// slab is a growable, index-addressed node store. Segments are installed
// lazily with CAS and never move or shrink, so a Ref stays valid for the
// life of the slab and concurrent readers never see a reallocation.
type slab struct {
	segs [maxSegments]atomic.Pointer[segment]
	top  atomic.Uint32 // highest index handed out by grow
}

// at returns the node for a non-zero Ref.
func (s *slab) at(r Ref) *node {
	seg := s.segs[uint32(r)>>segmentShift].Load()
	return &seg[uint32(r)&segmentMask]
}

// grow reserves a never-used index. ok is false when the slab is full;
// newSeg is true when this call installed a segment.
func (s *slab) grow() (r Ref, newSeg bool, ok bool) {
	idx := s.top.Add(1)
	if idx > maxSlabNodes {
		// Keep top pinned so later callers fail the same way.
		s.top.Store(maxSlabNodes + 1)
		return 0, false, false
	}
	si := idx >> segmentShift
	if s.segs[si].Load() == nil {
		fresh := new(segment)
		newSeg = s.segs[si].CompareAndSwap(nil, fresh)
	}
	return Ref(idx), newSeg, true
}

// allocated reports how many indices have been handed out.
func (s *slab) allocated() uint64 {
	top := s.top.Load()
	if top > maxSlabNodes {
		top = maxSlabNodes
	}
	return uint64(top)
}
