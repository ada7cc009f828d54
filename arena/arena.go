// Package arena provides scoped, reference-counted byte buffers for
// transient index keys. A Slice either borrows from a longer-lived buffer
// (zero-copy, releasing is a no-op) or owns a pooled allocation that must be
// released exactly once on every exit path.
package arena

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

// Arena hands out owned slices of an exact length.
type Arena interface {
	Allocate(n int) Slice
}

type refBuf struct {
	data []byte
	refs atomic.Int32
	home *sync.Pool
}

// Slice is a bounded view over bytes. The zero Slice is an empty borrowed
// slice.
type Slice struct {
	buf   []byte
	owner *refBuf
}

// Borrowed wraps an existing buffer without taking ownership.
func Borrowed(b []byte) Slice {
	return Slice{buf: b}
}

func (s Slice) Bytes() []byte { return s.buf }
func (s Slice) Len() int      { return len(s.buf) }
func (s Slice) Owned() bool   { return s.owner != nil }

// Retain adds a reference so the slice survives an extra Release.
func (s Slice) Retain() Slice {
	if s.owner != nil {
		s.owner.refs.Add(1)
	}
	return s
}

// Release drops one reference and returns the backing buffer to its pool
// when the count hits zero. Releasing a borrowed slice is a no-op; releasing
// an owned slice more times than it was retained is a caller bug.
func (s Slice) Release() {
	if s.owner == nil {
		return
	}
	switch refs := s.owner.refs.Add(-1); {
	case refs == 0:
		if s.owner.home != nil {
			s.owner.home.Put(s.owner)
		}
	case refs < 0:
		panic("arena slice released twice")
	}
}

const (
	minClass = 5  // 32 bytes
	maxClass = 16 // 64 KiB; anything bigger is allocated directly
)

// Pool is a size-classed Arena. Buffers up to 64 KiB are recycled through
// per-class sync.Pools; larger requests fall through to the heap.
type Pool struct {
	classes [maxClass - minClass + 1]sync.Pool
}

func NewPool() *Pool {
	p := &Pool{}
	for i := range p.classes {
		size := 1 << (minClass + i)
		pool := &p.classes[i]
		pool.New = func() any {
			return &refBuf{data: make([]byte, size), home: pool}
		}
	}
	return p
}

func (p *Pool) Allocate(n int) Slice {
	if n < 0 {
		panic("arena allocation with negative length")
	}
	c := bits.Len(uint(n) - 1) // ceil(log2(n)), 0 for n<=1
	if n <= 1<<minClass {
		c = minClass
	}
	if c > maxClass {
		rb := &refBuf{data: make([]byte, n)}
		rb.refs.Store(1)
		return Slice{buf: rb.data[:n], owner: rb}
	}
	rb := p.classes[c-minClass].Get().(*refBuf)
	rb.refs.Store(1)
	return Slice{buf: rb.data[:n], owner: rb}
}
